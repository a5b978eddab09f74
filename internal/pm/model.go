package pm

import (
	"fmt"
	"strings"
	"time"
)

// Category 保养类别枚举（持久化为字符串）。
type Category string

const (
	CategoryOil     Category = "oil"     // 机油保养
	CategoryChassis Category = "chassis" // 底盘保养
)

// ParseCategory 解析保养类别；非法值返回 false。
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryOil:
		return CategoryOil, true
	case CategoryChassis:
		return CategoryChassis, true
	}
	return "", false
}

// ServiceRecord 保养记录 GORM 模型。创建后不可修改，只能删除。
type ServiceRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	VehicleID string    `gorm:"index;size:36;not null"`
	Category  Category  `gorm:"type:varchar(16);index;not null"`
	Odometer  int64     `gorm:"not null"`
	Notes     string    `gorm:"size:1024"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ServiceRecord) TableName() string { return "service_records" }

// AppointmentStatus 预约状态枚举（持久化为字符串）。
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled" // 已预约，待执行
	AppointmentCompleted AppointmentStatus = "completed" // 已完成（含对账自动关闭）
	AppointmentCancelled AppointmentStatus = "cancelled" // 已取消
)

// ParseAppointmentStatus 解析预约状态；非法值返回 false。
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch AppointmentStatus(strings.ToLower(strings.TrimSpace(s))) {
	case AppointmentScheduled:
		return AppointmentScheduled, true
	case AppointmentCompleted:
		return AppointmentCompleted, true
	case AppointmentCancelled:
		return AppointmentCancelled, true
	}
	return "", false
}

// AllowAppointmentTransition 定义预约状态机的允许流转关系。
var AllowAppointmentTransition = map[AppointmentStatus][]AppointmentStatus{
	AppointmentScheduled: {AppointmentCompleted, AppointmentCancelled},
	// 终态：completed / cancelled 不再流转
	AppointmentCompleted: {},
	AppointmentCancelled: {},
}

// CanTransitionAppointment 判断 from -> to 是否允许。
func CanTransitionAppointment(from, to AppointmentStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := AllowAppointmentTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// PMAppointment 保养预约 GORM 模型。
type PMAppointment struct {
	ID          string            `gorm:"primaryKey;size:36"`
	VehicleID   string            `gorm:"index;size:36;not null"`
	Category    Category          `gorm:"type:varchar(16);index;not null"`
	Shop        string            `gorm:"size:128"`
	ScheduledAt time.Time         `gorm:"index;not null"`
	Status      AppointmentStatus `gorm:"type:varchar(16);index;not null"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime"`
	CompletedAt *time.Time
	CancelledAt *time.Time
}

func (PMAppointment) TableName() string { return "pm_appointments" }

// ApplyAppointmentTransition 对预约应用状态变更，并维护关键时间字段。
// 仅在 CanTransitionAppointment 返回 true 时调用。
func ApplyAppointmentTransition(a *PMAppointment, to AppointmentStatus, now time.Time) error {
	if a == nil {
		return fmt.Errorf("appointment is nil")
	}
	from := a.Status
	if !CanTransitionAppointment(from, to) {
		return fmt.Errorf("invalid appointment status transition: %s -> %s", from, to)
	}

	a.Status = to

	switch to {
	case AppointmentCompleted:
		if a.CompletedAt == nil {
			t := now
			a.CompletedAt = &t
		}
	case AppointmentCancelled:
		if a.CancelledAt == nil {
			t := now
			a.CancelledAt = &t
		}
	}
	return nil
}
