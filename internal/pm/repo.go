package pm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return r.db
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) CreateServiceRecord(ctx context.Context, rec *ServiceRecord) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Create(rec).Error
}

func (r *Repo) FindServiceRecordByID(ctx context.Context, id string) (*ServiceRecord, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rec ServiceRecord
	if err := r.withCtx(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListServiceByVehicle 按创建时间倒序列出某车辆的保养记录。
func (r *Repo) ListServiceByVehicle(ctx context.Context, vehicleID string) ([]ServiceRecord, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var recs []ServiceRecord
	if err := r.withCtx(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("created_at desc").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *Repo) DeleteServiceRecord(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Where("id = ?", id).Delete(&ServiceRecord{}).Error
}

// LastServiceOdometer 某车辆某类别最近一次保养的里程读数；
// 没有历史时返回 nil。
func (r *Repo) LastServiceOdometer(ctx context.Context, vehicleID string, category Category) (*int64, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rec ServiceRecord
	err := r.withCtx(ctx).
		Where("vehicle_id = ? AND category = ?", vehicleID, category).
		Order("odometer desc").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	odo := rec.Odometer
	return &odo, nil
}

func (r *Repo) CreateAppointment(ctx context.Context, a *PMAppointment) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Create(a).Error
}

func (r *Repo) UpdateAppointment(ctx context.Context, a *PMAppointment) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Save(a).Error
}

func (r *Repo) FindAppointmentByID(ctx context.Context, id string) (*PMAppointment, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var a PMAppointment
	if err := r.withCtx(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppointmentsByVehicle 按预约时间升序列出某车辆的预约。
func (r *Repo) ListAppointmentsByVehicle(ctx context.Context, vehicleID string) ([]PMAppointment, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var apps []PMAppointment
	if err := r.withCtx(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("scheduled_at asc").
		Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// EarliestScheduled 某车辆某类别预约时间最早的 scheduled 预约；
// 没有时返回 nil。
func (r *Repo) EarliestScheduled(ctx context.Context, vehicleID string, category Category) (*PMAppointment, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var a PMAppointment
	err := r.withCtx(ctx).
		Where("vehicle_id = ? AND category = ? AND status = ?", vehicleID, category, AppointmentScheduled).
		Order("scheduled_at asc").
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repo) DeleteAppointment(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Where("id = ?", id).Delete(&PMAppointment{}).Error
}
