package vehicle

import (
	"context"
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

func (r *Repo) Create(ctx context.Context, v *Vehicle) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Create(v).Error
}

func (r *Repo) Update(ctx context.Context, v *Vehicle) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Save(v).Error
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	if err := r.withCtx(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repo) FindByNumber(ctx context.Context, number string) (*Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	if err := r.withCtx(ctx).Where("number = ?", number).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repo) List(ctx context.Context) ([]Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var vehicles []Vehicle
	if err := r.withCtx(ctx).Order("number asc").Find(&vehicles).Error; err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (r *Repo) ListActive(ctx context.Context) ([]Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var vehicles []Vehicle
	if err := r.withCtx(ctx).Where("active = ?", true).Order("number asc").Find(&vehicles).Error; err != nil {
		return nil, err
	}
	return vehicles, nil
}

// RaiseOdometer 里程表只增不减：条件更新避免并发写丢失，
// 新读数不大于当前值时静默不动。
func (r *Repo) RaiseOdometer(ctx context.Context, id string, odometer int64) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Model(&Vehicle{}).
		Where("id = ? AND odometer < ?", id, odometer).
		Update("odometer", odometer).Error
}

// DeleteCascade 在一个事务里删掉车辆及其全部下级行
// （报告、缺陷、备注、照片、保养记录、预约），不留孤儿；
// 返回被删照片的 blob 引用，交由上层做尽力而为的清理。
// 表名须与 inspection / pm 包的模型一致。
func (r *Repo) DeleteCascade(ctx context.Context, id string) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	const reportIDs = "SELECT id FROM reports WHERE vehicle_id = ?"
	const defectIDs = "SELECT id FROM defects WHERE report_id IN (" + reportIDs + ")"

	var photoRefs []string
	err := r.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw("SELECT path FROM photos WHERE defect_id IN ("+defectIDs+")", id).
			Scan(&photoRefs).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM photos WHERE defect_id IN ("+defectIDs+")", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM defects WHERE report_id IN ("+reportIDs+")", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM notes WHERE report_id IN ("+reportIDs+")", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM reports WHERE vehicle_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM service_records WHERE vehicle_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM pm_appointments WHERE vehicle_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Vehicle{}).Error
	})
	if err != nil {
		return nil, err
	}
	return photoRefs, nil
}
