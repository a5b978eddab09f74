package inspection

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

func (r *Repo) CreateReport(ctx context.Context, rep *Report) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Create(rep).Error
}

func (r *Repo) UpdateReport(ctx context.Context, rep *Report) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Save(rep).Error
}

// FindReportByID 查询报告本体，不带下级实体。
func (r *Repo) FindReportByID(ctx context.Context, id string) (*Report, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rep Report
	if err := r.withCtx(ctx).Where("id = ?", id).First(&rep).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

// FindReportDetail 查询报告并预加载缺陷（含照片）和备注。
func (r *Repo) FindReportDetail(ctx context.Context, id string) (*Report, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rep Report
	if err := r.withCtx(ctx).
		Preload("Defects.Photos").
		Preload("Notes").
		Where("id = ?", id).First(&rep).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

// ListReportsByVehicle 按创建时间倒序列出某车辆的报告。
func (r *Repo) ListReportsByVehicle(ctx context.Context, vehicleID string) ([]Report, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var reports []Report
	if err := r.withCtx(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("created_at desc").
		Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *Repo) CreateDefect(ctx context.Context, d *Defect) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Create(d).Error
}

func (r *Repo) UpdateDefect(ctx context.Context, d *Defect) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Save(d).Error
}

func (r *Repo) FindDefectByID(ctx context.Context, id string) (*Defect, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var d Defect
	if err := r.withCtx(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDefectCascade 事务内删除缺陷及其照片行，
// 返回照片 blob 引用供上层尽力清理。
func (r *Repo) DeleteDefectCascade(ctx context.Context, id string) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var refs []string
	err := r.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Photo{}).Where("defect_id = ?", id).
			Pluck("path", &refs).Error; err != nil {
			return err
		}
		if err := tx.Where("defect_id = ?", id).Delete(&Photo{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Defect{}).Error
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *Repo) CreateNote(ctx context.Context, n *Note) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Create(n).Error
}

func (r *Repo) CreatePhoto(ctx context.Context, p *Photo) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Create(p).Error
}

func (r *Repo) FindPhotoByID(ctx context.Context, id string) (*Photo, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var p Photo
	if err := r.withCtx(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) DeletePhoto(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.withCtx(ctx).Where("id = ?", id).Delete(&Photo{}).Error
}
