package vehicle

import (
	"time"
)

// Vehicle 是 vehicles 表的 GORM 模型。
// Odometer 只增不减（见 Repo.RaiseOdometer），管理员改写除外。
type Vehicle struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Number    string    `gorm:"uniqueIndex;size:32;not null"`
	VIN       string    `gorm:"size:64"`
	Active    bool      `gorm:"not null;default:true"`
	Odometer  int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
