package pm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/FleetDVCR/FleetDVCR/internal/common/apperrors"
	"github.com/FleetDVCR/FleetDVCR/internal/common/config"
	"github.com/FleetDVCR/FleetDVCR/internal/common/logger"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/FleetDVCR/FleetDVCR/internal/vehicle"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service 预防性保养：到期计算、保养记录、预约及对账、告警扫描。
type Service struct {
	repo     *Repo
	vehicles *vehicle.Repo
	cfg      config.PMConfig
	log      logger.Logger
}

func NewService(repo *Repo, vehicles *vehicle.Repo, cfg config.PMConfig, log logger.Logger) *Service {
	return &Service{repo: repo, vehicles: vehicles, cfg: cfg, log: log}
}

func (s *Service) findVehicle(ctx context.Context, id string) (*vehicle.Vehicle, error) {
	v, err := s.vehicles.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("vehicle not found")
		}
		return nil, err
	}
	return v, nil
}

func (s *Service) statusFor(ctx context.Context, v *vehicle.Vehicle) (PmStatus, error) {
	lastOil, err := s.repo.LastServiceOdometer(ctx, v.ID, CategoryOil)
	if err != nil {
		return PmStatus{}, err
	}
	lastChassis, err := s.repo.LastServiceOdometer(ctx, v.ID, CategoryChassis)
	if err != nil {
		return PmStatus{}, err
	}
	return ComputePmStatus(v.Odometer, lastOil, lastChassis), nil
}

// PmNext 单车的保养到期状态。
func (s *Service) PmNext(ctx context.Context, vehicleID string) (PmStatus, error) {
	if s == nil || s.repo == nil {
		return PmStatus{}, fmt.Errorf("service not initialized")
	}
	v, err := s.findVehicle(ctx, vehicleID)
	if err != nil {
		return PmStatus{}, err
	}
	return s.statusFor(ctx, v)
}

// ServiceInput 保养记录入参。
type ServiceInput struct {
	Category string
	Odometer int64
	Notes    string
}

// CreateServiceRecord 记录一次保养（mechanic/manager/admin）：
// 里程按只增不减规则回灌车辆，再做预约对账——同车同类别
// 预约时间最早的 scheduled 预约自动置为 completed，至多一条。
// 返回重算后的到期状态。
func (s *Service) CreateServiceRecord(ctx context.Context, p guard.Principal, vehicleID string, in ServiceInput) (PmStatus, error) {
	if s == nil || s.repo == nil {
		return PmStatus{}, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionServiceCreate); err != nil {
		return PmStatus{}, err
	}
	category, ok := ParseCategory(in.Category)
	if !ok {
		return PmStatus{}, apperrors.BadRequest("category must be oil or chassis")
	}
	if in.Odometer < 0 {
		return PmStatus{}, apperrors.BadRequest("odometer must not be negative")
	}
	v, err := s.findVehicle(ctx, vehicleID)
	if err != nil {
		return PmStatus{}, err
	}

	rec := &ServiceRecord{
		ID:        uuid.NewString(),
		VehicleID: v.ID,
		Category:  category,
		Odometer:  in.Odometer,
		Notes:     strings.TrimSpace(in.Notes),
	}
	if err := s.repo.CreateServiceRecord(ctx, rec); err != nil {
		return PmStatus{}, err
	}
	if in.Odometer > 0 {
		if err := s.vehicles.RaiseOdometer(ctx, v.ID, in.Odometer); err != nil {
			return PmStatus{}, err
		}
	}
	if err := s.reconcileAppointment(ctx, v.ID, category); err != nil {
		return PmStatus{}, err
	}

	fresh, err := s.findVehicle(ctx, v.ID)
	if err != nil {
		return PmStatus{}, err
	}
	return s.statusFor(ctx, fresh)
}

// reconcileAppointment 保养落账后的尽力关联：没有外键，
// 按“最早的 scheduled”启发式关闭，一次保养至多关一条。
func (s *Service) reconcileAppointment(ctx context.Context, vehicleID string, category Category) error {
	a, err := s.repo.EarliestScheduled(ctx, vehicleID, category)
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}
	if err := ApplyAppointmentTransition(a, AppointmentCompleted, time.Now()); err != nil {
		return err
	}
	return s.repo.UpdateAppointment(ctx, a)
}

// ListServiceRecords 按创建时间倒序列出某车辆的保养记录。
func (s *Service) ListServiceRecords(ctx context.Context, vehicleID string) ([]ServiceRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	v, err := s.findVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListServiceByVehicle(ctx, v.ID)
}

// DeleteServiceRecord 删除保养记录（mechanic/manager/admin）。
// 记录本身不可修改，删除是唯一的事后更正手段。
func (s *Service) DeleteServiceRecord(ctx context.Context, p guard.Principal, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionServiceDelete); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if _, err := s.repo.FindServiceRecordByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("service record not found")
		}
		return err
	}
	return s.repo.DeleteServiceRecord(ctx, id)
}

// AppointmentInput 预约创建入参。
type AppointmentInput struct {
	Category    string
	Shop        string
	ScheduledAt time.Time
}

// CreateAppointment 创建保养预约（manager/admin）。
func (s *Service) CreateAppointment(ctx context.Context, p guard.Principal, vehicleID string, in AppointmentInput) (*PMAppointment, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionAppointmentManage); err != nil {
		return nil, err
	}
	category, ok := ParseCategory(in.Category)
	if !ok {
		return nil, apperrors.BadRequest("category must be oil or chassis")
	}
	if in.ScheduledAt.IsZero() {
		return nil, apperrors.BadRequest("scheduled_at required")
	}
	v, err := s.findVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	a := &PMAppointment{
		ID:          uuid.NewString(),
		VehicleID:   v.ID,
		Category:    category,
		Shop:        strings.TrimSpace(in.Shop),
		ScheduledAt: in.ScheduledAt,
		Status:      AppointmentScheduled,
	}
	if err := s.repo.CreateAppointment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAppointments 按预约时间升序列出某车辆的预约。
func (s *Service) ListAppointments(ctx context.Context, vehicleID string) ([]PMAppointment, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	v, err := s.findVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAppointmentsByVehicle(ctx, v.ID)
}

// AppointmentPatch 预约修改入参；nil 字段表示不修改。
type AppointmentPatch struct {
	Shop        *string
	ScheduledAt *time.Time
	Status      *string
}

// PatchAppointment 修改预约（manager/admin）；状态走状态机，
// 非法值或非法流转返回 BadRequest。
func (s *Service) PatchAppointment(ctx context.Context, p guard.Principal, id string, patch AppointmentPatch) (*PMAppointment, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionAppointmentManage); err != nil {
		return nil, err
	}
	a, err := s.repo.FindAppointmentByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("appointment not found")
		}
		return nil, err
	}

	if patch.Shop != nil {
		a.Shop = strings.TrimSpace(*patch.Shop)
	}
	if patch.ScheduledAt != nil {
		if patch.ScheduledAt.IsZero() {
			return nil, apperrors.BadRequest("scheduled_at must not be zero")
		}
		a.ScheduledAt = *patch.ScheduledAt
	}
	if patch.Status != nil {
		to, ok := ParseAppointmentStatus(*patch.Status)
		if !ok {
			return nil, apperrors.BadRequest("status must be scheduled, completed or cancelled")
		}
		if err := ApplyAppointmentTransition(a, to, time.Now()); err != nil {
			return nil, apperrors.BadRequest(err.Error())
		}
	}

	if err := s.repo.UpdateAppointment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAppointment 删除预约（manager/admin）；不存在返回 NotFound。
func (s *Service) DeleteAppointment(ctx context.Context, p guard.Principal, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionAppointmentManage); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if _, err := s.repo.FindAppointmentByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("appointment not found")
		}
		return err
	}
	return s.repo.DeleteAppointment(ctx, id)
}

// AlertEntry 单车的到期告警。Urgency 是被标记类别剩余里程的最小值，
// 未标记的类别不参与取最小（用 MaxInt64 兜底）。
type AlertEntry struct {
	Vehicle            vehicle.Vehicle
	Status             PmStatus
	OilDueSoon         bool
	ChassisDueSoon     bool
	Urgency            int64
	OilAppointment     *PMAppointment
	ChassisAppointment *PMAppointment
}

// ListAlerts 扫描在用车辆并按紧迫度升序产出到期告警（manager/admin）。
// 阈值 <=0 时取配置默认；withAppointments 为 true 时给每个被标记
// 类别附上预约时间最近的 scheduled 预约。
func (s *Service) ListAlerts(ctx context.Context, p guard.Principal, oilThreshold, chassisThreshold int64, withAppointments bool) ([]AlertEntry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionAlertsView); err != nil {
		return nil, err
	}
	return s.listAlerts(ctx, oilThreshold, chassisThreshold, withAppointments)
}

func (s *Service) listAlerts(ctx context.Context, oilThreshold, chassisThreshold int64, withAppointments bool) ([]AlertEntry, error) {
	if oilThreshold <= 0 {
		oilThreshold = s.cfg.OilDueSoonMiles
	}
	if chassisThreshold <= 0 {
		chassisThreshold = s.cfg.ChassisDueSoonMiles
	}

	vehicles, err := s.vehicles.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]AlertEntry, 0)
	for i := range vehicles {
		v := vehicles[i]
		status, err := s.statusFor(ctx, &v)
		if err != nil {
			return nil, err
		}
		oilDue := status.OilMilesRemaining <= oilThreshold
		chassisDue := status.ChassisMilesRemaining <= chassisThreshold
		if !oilDue && !chassisDue {
			continue
		}

		urgency := int64(math.MaxInt64)
		if oilDue && status.OilMilesRemaining < urgency {
			urgency = status.OilMilesRemaining
		}
		if chassisDue && status.ChassisMilesRemaining < urgency {
			urgency = status.ChassisMilesRemaining
		}

		entry := AlertEntry{
			Vehicle:        v,
			Status:         status,
			OilDueSoon:     oilDue,
			ChassisDueSoon: chassisDue,
			Urgency:        urgency,
		}
		if withAppointments {
			if oilDue {
				if entry.OilAppointment, err = s.repo.EarliestScheduled(ctx, v.ID, CategoryOil); err != nil {
					return nil, err
				}
			}
			if chassisDue {
				if entry.ChassisAppointment, err = s.repo.EarliestScheduled(ctx, v.ID, CategoryChassis); err != nil {
					return nil, err
				}
			}
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Urgency < entries[j].Urgency
	})
	return entries, nil
}

// SweepAlerts 定时任务入口：扫一遍告警写日志，供巡检排班。
func (s *Service) SweepAlerts(ctx context.Context) {
	if s == nil || s.repo == nil {
		return
	}
	entries, err := s.listAlerts(ctx, 0, 0, false)
	if err != nil {
		if s.log != nil {
			s.log.Errorf("pm alert sweep: %v", err)
		}
		return
	}
	if s.log == nil {
		return
	}
	for _, e := range entries {
		s.log.Warnf("pm due soon: vehicle=%s oil_remaining=%d chassis_remaining=%d urgency=%d",
			e.Vehicle.Number, e.Status.OilMilesRemaining, e.Status.ChassisMilesRemaining, e.Urgency)
	}
}
