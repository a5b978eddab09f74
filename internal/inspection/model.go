package inspection

import (
	"strings"
	"time"
)

// ReportType 报告类型枚举（持久化为字符串）。
type ReportType string

const (
	ReportTypePre  ReportType = "pre"  // 出车前检查
	ReportTypePost ReportType = "post" // 收车后检查
)

// IsValidReportType 判断报告类型是否合法。
func IsValidReportType(t string) bool {
	switch ReportType(strings.TrimSpace(strings.ToLower(t))) {
	case ReportTypePre, ReportTypePost:
		return true
	}
	return false
}

// Report 检查报告 GORM 模型。
type Report struct {
	ID        string     `gorm:"primaryKey;size:36"`
	VehicleID string     `gorm:"index;size:36;not null"`
	DriverID  string     `gorm:"index;size:36;not null"` // 提交人
	Type      ReportType `gorm:"type:varchar(8);not null"`
	Status    Status     `gorm:"type:varchar(16);index;not null"`
	Odometer  *int64     // 提交时的里程读数（可空）
	Summary   string     `gorm:"size:2048"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	ClosedAt  *time.Time

	Defects []Defect `gorm:"foreignKey:ReportID"`
	Notes   []Note   `gorm:"foreignKey:ReportID"`
}

// Defect 缺陷 GORM 模型。
// resolved / resolved_by_id / resolved_at 三者同进同退：
// resolved=true 时后两者必有，false 时必空。
type Defect struct {
	ID           string     `gorm:"primaryKey;size:36"`
	ReportID     string     `gorm:"index;size:36;not null"`
	Component    string     `gorm:"size:64;not null"`
	Severity     string     `gorm:"size:16;not null;default:'minor'"`
	Description  string     `gorm:"size:2048"`
	X            *float64   // 示意图坐标（可空）
	Y            *float64
	Resolved     bool       `gorm:"not null;default:false"`
	ResolvedByID *string    `gorm:"size:36"`
	ResolvedAt   *time.Time
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`

	Photos []Photo `gorm:"foreignKey:DefectID"`
}

// Photo 缺陷照片 GORM 模型；Path 是 blob 存储里的唯一引用。
type Photo struct {
	ID        string    `gorm:"primaryKey;size:36"`
	DefectID  string    `gorm:"index;size:36;not null"`
	Path      string    `gorm:"uniqueIndex;size:255;not null"`
	Caption   string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Note 报告备注 GORM 模型。
type Note struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ReportID  string    `gorm:"index;size:36;not null"`
	AuthorID  string    `gorm:"index;size:36;not null"`
	Text      string    `gorm:"size:2048;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
