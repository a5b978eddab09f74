package vehicle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FleetDVCR/FleetDVCR/internal/blob"
	"github.com/FleetDVCR/FleetDVCR/internal/common/apperrors"
	"github.com/FleetDVCR/FleetDVCR/internal/common/logger"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service 车辆档案管理。删除时连带清理照片 blob（尽力而为）。
type Service struct {
	repo  *Repo
	store blob.Store
	log   logger.Logger
}

func NewService(repo *Repo, store blob.Store, log logger.Logger) *Service {
	return &Service{repo: repo, store: store, log: log}
}

// GetVehicle 按 ID 查询车辆。
func (s *Service) GetVehicle(ctx context.Context, id string) (*Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	v, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("vehicle not found")
		}
		return nil, err
	}
	return v, nil
}

// ListVehicles 按车牌号升序列出全部车辆。
func (s *Service) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.repo.List(ctx)
}

// CreateVehicleInput 创建车辆入参。
type CreateVehicleInput struct {
	Number   string
	VIN      string
	Odometer int64
}

// CreateVehicle 创建车辆（manager/admin）；车牌号重复返回 Conflict。
func (s *Service) CreateVehicle(ctx context.Context, p guard.Principal, in CreateVehicleInput) (*Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionVehicleManage); err != nil {
		return nil, err
	}
	number := strings.TrimSpace(in.Number)
	if number == "" {
		return nil, apperrors.BadRequest("vehicle number required")
	}
	if in.Odometer < 0 {
		return nil, apperrors.BadRequest("odometer must not be negative")
	}

	if _, err := s.repo.FindByNumber(ctx, number); err == nil {
		return nil, apperrors.Conflict("vehicle number already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	v := &Vehicle{
		ID:       uuid.NewString(),
		Number:   number,
		VIN:      strings.TrimSpace(in.VIN),
		Active:   true,
		Odometer: in.Odometer,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// VehiclePatch 车辆修改入参；nil 字段表示不修改。
// Odometer 在这里是管理员改写，不走只增不减的 ratchet。
type VehiclePatch struct {
	Number   *string
	VIN      *string
	Active   *bool
	Odometer *int64
}

// PatchVehicle 修改车辆（manager/admin）；改车牌号时重新校验唯一性。
func (s *Service) PatchVehicle(ctx context.Context, p guard.Principal, id string, patch VehiclePatch) (*Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionVehicleManage); err != nil {
		return nil, err
	}
	v, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("vehicle not found")
		}
		return nil, err
	}

	if patch.Number != nil {
		number := strings.TrimSpace(*patch.Number)
		if number != "" && number != v.Number {
			if _, err := s.repo.FindByNumber(ctx, number); err == nil {
				return nil, apperrors.Conflict("vehicle number already exists")
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			v.Number = number
		}
	}
	if patch.VIN != nil {
		v.VIN = strings.TrimSpace(*patch.VIN)
	}
	if patch.Active != nil {
		v.Active = *patch.Active
	}
	if patch.Odometer != nil {
		if *patch.Odometer < 0 {
			return nil, apperrors.BadRequest("odometer must not be negative")
		}
		v.Odometer = *patch.Odometer
	}

	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// DeleteVehicle 删除车辆（manager/admin）：事务内级联删元数据，
// 提交后再清理照片 blob，清理失败只记日志不报错。
func (s *Service) DeleteVehicle(ctx context.Context, p guard.Principal, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionVehicleManage); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("vehicle not found")
		}
		return err
	}

	photoRefs, err := s.repo.DeleteCascade(ctx, id)
	if err != nil {
		return err
	}
	for _, ref := range photoRefs {
		if err := s.store.Delete(ctx, ref); err != nil && s.log != nil {
			s.log.Warnf("delete photo blob %s: %v", ref, err)
		}
	}
	return nil
}
