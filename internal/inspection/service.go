package inspection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FleetDVCR/FleetDVCR/internal/blob"
	"github.com/FleetDVCR/FleetDVCR/internal/common/apperrors"
	"github.com/FleetDVCR/FleetDVCR/internal/common/logger"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/FleetDVCR/FleetDVCR/internal/vehicle"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service 检查报告与缺陷的生命周期。
// 写路径先过 Guard，里程读数通过 vehicle 仓储的条件更新回灌。
type Service struct {
	repo     *Repo
	vehicles *vehicle.Repo
	store    blob.Store
	log      logger.Logger
}

func NewService(repo *Repo, vehicles *vehicle.Repo, store blob.Store, log logger.Logger) *Service {
	return &Service{repo: repo, vehicles: vehicles, store: store, log: log}
}

func (s *Service) vehicleExists(ctx context.Context, vehicleID string) error {
	if _, err := s.vehicles.FindByID(ctx, vehicleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("vehicle not found")
		}
		return err
	}
	return nil
}

// CreateReportInput 创建报告入参。
type CreateReportInput struct {
	Type     string
	Odometer *int64
	Summary  string
}

// CreateReport 提交检查报告：任意已认证用户；提交人记为 driver。
// 带里程读数时按只增不减规则回灌车辆里程。
func (s *Service) CreateReport(ctx context.Context, p guard.Principal, vehicleID string, in CreateReportInput) (*Report, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionReportCreate); err != nil {
		return nil, err
	}
	if !IsValidReportType(in.Type) {
		return nil, apperrors.BadRequest("report type must be pre or post")
	}
	vehicleID = strings.TrimSpace(vehicleID)
	if err := s.vehicleExists(ctx, vehicleID); err != nil {
		return nil, err
	}

	rep := &Report{
		ID:        uuid.NewString(),
		VehicleID: vehicleID,
		DriverID:  p.ID,
		Type:      ReportType(strings.ToLower(strings.TrimSpace(in.Type))),
		Status:    StatusOpen,
		Odometer:  in.Odometer,
		Summary:   strings.TrimSpace(in.Summary),
	}
	if err := s.repo.CreateReport(ctx, rep); err != nil {
		return nil, err
	}
	if in.Odometer != nil && *in.Odometer > 0 {
		if err := s.vehicles.RaiseOdometer(ctx, vehicleID, *in.Odometer); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// ListReports 按创建时间倒序列出某车辆的报告。
func (s *Service) ListReports(ctx context.Context, vehicleID string) ([]Report, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	vehicleID = strings.TrimSpace(vehicleID)
	if err := s.vehicleExists(ctx, vehicleID); err != nil {
		return nil, err
	}
	return s.repo.ListReportsByVehicle(ctx, vehicleID)
}

// GetReport 查询报告详情（含缺陷、照片、备注）。
func (s *Service) GetReport(ctx context.Context, id string) (*Report, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	rep, err := s.repo.FindReportDetail(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("report not found")
		}
		return nil, err
	}
	return rep, nil
}

// ReportPatch 报告修改入参；nil 字段表示不修改。
// summary/odometer 不做作者校验（沿用现有的宽松语义），
// status 单独过 Guard。
type ReportPatch struct {
	Status   *string
	Summary  *string
	Odometer *int64
}

// PatchReport 修改报告；status 字段仅 mechanic/manager/admin 可改，
// 非法状态值或非法流转返回 BadRequest。
func (s *Service) PatchReport(ctx context.Context, p guard.Principal, id string, patch ReportPatch) (*Report, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if !p.Resolved() {
		return nil, apperrors.Unauthenticated("not authenticated")
	}
	rep, err := s.repo.FindReportByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("report not found")
		}
		return nil, err
	}

	if patch.Status != nil {
		if err := guard.Require(p, guard.ActionReportSetStatus); err != nil {
			return nil, err
		}
		to, ok := ParseStatus(*patch.Status)
		if !ok {
			return nil, apperrors.BadRequest("status must be OPEN or CLOSED")
		}
		if err := ApplyTransition(rep, to, time.Now()); err != nil {
			return nil, apperrors.BadRequest(err.Error())
		}
	}
	if patch.Summary != nil {
		rep.Summary = strings.TrimSpace(*patch.Summary)
	}
	if patch.Odometer != nil {
		rep.Odometer = patch.Odometer
	}

	if err := s.repo.UpdateReport(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// DefectInput 缺陷创建入参。
type DefectInput struct {
	Component   string
	Severity    string
	Description string
	X           *float64
	Y           *float64
}

// AddDefect 在报告下登记缺陷；父报告不存在返回 NotFound。
func (s *Service) AddDefect(ctx context.Context, p guard.Principal, reportID string, in DefectInput) (*Defect, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if !p.Resolved() {
		return nil, apperrors.Unauthenticated("not authenticated")
	}
	reportID = strings.TrimSpace(reportID)
	if _, err := s.repo.FindReportByID(ctx, reportID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("report not found")
		}
		return nil, err
	}
	component := strings.TrimSpace(in.Component)
	if component == "" {
		return nil, apperrors.BadRequest("component required")
	}
	severity := strings.TrimSpace(in.Severity)
	if severity == "" {
		severity = "minor"
	}

	d := &Defect{
		ID:          uuid.NewString(),
		ReportID:    reportID,
		Component:   component,
		Severity:    severity,
		Description: strings.TrimSpace(in.Description),
		X:           in.X,
		Y:           in.Y,
	}
	if err := s.repo.CreateDefect(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DefectPatch 缺陷修改入参；nil 字段表示不修改。
type DefectPatch struct {
	Description *string
	Resolved    *bool
}

// PatchDefect 修改缺陷。resolved 翻转仅 mechanic/manager/admin：
// 置 true 时同时盖上 resolved_by/resolved_at，置 false 时两者一并清空。
func (s *Service) PatchDefect(ctx context.Context, p guard.Principal, id string, patch DefectPatch) (*Defect, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if !p.Resolved() {
		return nil, apperrors.Unauthenticated("not authenticated")
	}
	d, err := s.repo.FindDefectByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("defect not found")
		}
		return nil, err
	}

	if patch.Description != nil {
		d.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Resolved != nil {
		if err := guard.Require(p, guard.ActionDefectResolve); err != nil {
			return nil, err
		}
		d.Resolved = *patch.Resolved
		if d.Resolved {
			by := p.ID
			now := time.Now()
			d.ResolvedByID = &by
			d.ResolvedAt = &now
		} else {
			d.ResolvedByID = nil
			d.ResolvedAt = nil
		}
	}

	if err := s.repo.UpdateDefect(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDefect 删除缺陷及其照片行（mechanic/manager/admin）；
// 照片 blob 清理尽力而为，失败只记日志。
func (s *Service) DeleteDefect(ctx context.Context, p guard.Principal, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionDefectDelete); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if _, err := s.repo.FindDefectByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("defect not found")
		}
		return err
	}

	refs, err := s.repo.DeleteDefectCascade(ctx, id)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := s.store.Delete(ctx, ref); err != nil && s.log != nil {
			s.log.Warnf("delete photo blob %s: %v", ref, err)
		}
	}
	return nil
}

// AddNote 给报告追加备注；父报告不存在返回 NotFound。
func (s *Service) AddNote(ctx context.Context, p guard.Principal, reportID, text string) (*Note, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if !p.Resolved() {
		return nil, apperrors.Unauthenticated("not authenticated")
	}
	reportID = strings.TrimSpace(reportID)
	if _, err := s.repo.FindReportByID(ctx, reportID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("report not found")
		}
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.BadRequest("note text required")
	}

	n := &Note{
		ID:       uuid.NewString(),
		ReportID: reportID,
		AuthorID: p.ID,
		Text:     text,
	}
	if err := s.repo.CreateNote(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// PhotoFile 待上传的单个照片负载。
type PhotoFile struct {
	Name string
	Data []byte
}

// AddPhotos 批量上传缺陷照片。整批共用一个 caption（沿用现有契约，
// 见 DESIGN.md）；引用名为 缺陷ID_时间戳_原始文件名。
// 中途失败不回滚：已写入的照片保留，错误原样上抛。
func (s *Service) AddPhotos(ctx context.Context, p guard.Principal, defectID string, files []PhotoFile, caption string) ([]Photo, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if !p.Resolved() {
		return nil, apperrors.Unauthenticated("not authenticated")
	}
	defectID = strings.TrimSpace(defectID)
	if _, err := s.repo.FindDefectByID(ctx, defectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("defect not found")
		}
		return nil, err
	}

	saved := make([]Photo, 0, len(files))
	for _, f := range files {
		now := time.Now().UTC()
		ts := now.Format("20060102150405") + fmt.Sprintf("%06d", now.Nanosecond()/1000)
		name := fmt.Sprintf("%s_%s_%s", defectID, ts, f.Name)

		ref, err := s.store.Put(ctx, f.Data, name)
		if err != nil {
			return saved, fmt.Errorf("store photo %s: %w", f.Name, err)
		}
		photo := Photo{
			ID:       uuid.NewString(),
			DefectID: defectID,
			Path:     ref,
			Caption:  strings.TrimSpace(caption),
		}
		if err := s.repo.CreatePhoto(ctx, &photo); err != nil {
			return saved, err
		}
		saved = append(saved, photo)
	}
	return saved, nil
}

// DeletePhoto 删除照片行（mechanic/manager/admin）；blob 清理尽力而为。
func (s *Service) DeletePhoto(ctx context.Context, p guard.Principal, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionPhotoDelete); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	photo, err := s.repo.FindPhotoByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("photo not found")
		}
		return err
	}
	if err := s.repo.DeletePhoto(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, photo.Path); err != nil && s.log != nil {
		s.log.Warnf("delete photo blob %s: %v", photo.Path, err)
	}
	return nil
}
