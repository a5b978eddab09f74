package pm

import (
	"context"
	"testing"
	"time"

	"github.com/FleetDVCR/FleetDVCR/internal/common/apperrors"
	"github.com/FleetDVCR/FleetDVCR/internal/common/config"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/FleetDVCR/FleetDVCR/internal/vehicle"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&vehicle.Vehicle{}, &ServiceRecord{}, &PMAppointment{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type testEnv struct {
	svc      *Service
	repo     *Repo
	vehicles *vehicle.Repo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testDB(t)
	repo := NewRepo(db)
	vehicles := vehicle.NewRepo(db)
	cfg := config.PMConfig{OilDueSoonMiles: 5000, ChassisDueSoonMiles: 3000}
	return &testEnv{svc: NewService(repo, vehicles, cfg, nil), repo: repo, vehicles: vehicles}
}

func (e *testEnv) seedVehicle(t *testing.T, number string, odometer int64) *vehicle.Vehicle {
	t.Helper()
	v := &vehicle.Vehicle{ID: uuid.NewString(), Number: number, Active: true, Odometer: odometer}
	if err := e.vehicles.Create(context.Background(), v); err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	return v
}

func mechanic() guard.Principal {
	return guard.Principal{ID: uuid.NewString(), Role: guard.RoleMechanic}
}

func manager() guard.Principal {
	return guard.Principal{ID: uuid.NewString(), Role: guard.RoleManager}
}

func TestPmNext(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVehicle(t, "TRK-101", 18000)

	got, err := env.svc.PmNext(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("pm next: %v", err)
	}
	if got.OilNextDue != 20000 || got.OilMilesRemaining != 2000 {
		t.Fatalf("oil: %+v", got)
	}
	if got.ChassisNextDue != 20000 || got.ChassisMilesRemaining != 2000 {
		t.Fatalf("chassis: %+v", got)
	}

	if _, err := env.svc.PmNext(context.Background(), uuid.NewString()); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("missing vehicle: want not found, got %v", err)
	}
}

func TestCreateServiceRecord(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVehicle(t, "TRK-101", 18000)
	driver := guard.Principal{ID: uuid.NewString(), Role: guard.RoleDriver}

	if _, err := env.svc.CreateServiceRecord(context.Background(), driver, v.ID, ServiceInput{Category: "oil", Odometer: 18500}); apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Fatalf("driver create service: want forbidden, got %v", err)
	}
	if _, err := env.svc.CreateServiceRecord(context.Background(), mechanic(), v.ID, ServiceInput{Category: "tires", Odometer: 18500}); apperrors.KindOf(err) != apperrors.KindBadRequest {
		t.Fatalf("bad category: want bad request, got %v", err)
	}

	status, err := env.svc.CreateServiceRecord(context.Background(), mechanic(), v.ID, ServiceInput{Category: "oil", Odometer: 18500, Notes: "5w-30"})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	// 里程回灌后有历史：下次到期是 18500+20000。
	if status.Odometer != 18500 || status.OilNextDue != 38500 {
		t.Fatalf("status after service: %+v", status)
	}
	// 无历史的底盘类别不受影响。
	if status.ChassisNextDue != 20000 {
		t.Fatalf("chassis untouched: %+v", status)
	}

	got, _ := env.vehicles.FindByID(context.Background(), v.ID)
	if got.Odometer != 18500 {
		t.Fatalf("vehicle odometer not raised: %d", got.Odometer)
	}

	// 更低的读数不回退里程。
	if _, err := env.svc.CreateServiceRecord(context.Background(), mechanic(), v.ID, ServiceInput{Category: "chassis", Odometer: 10000}); err != nil {
		t.Fatalf("create service: %v", err)
	}
	got, _ = env.vehicles.FindByID(context.Background(), v.ID)
	if got.Odometer != 18500 {
		t.Fatalf("vehicle odometer decreased: %d", got.Odometer)
	}
}

func TestReconcileEarliestAppointment(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVehicle(t, "TRK-101", 20000)
	mgr := manager()

	early, err := env.svc.CreateAppointment(context.Background(), mgr, v.ID, AppointmentInput{
		Category:    "oil",
		Shop:        "Shop A",
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	late, err := env.svc.CreateAppointment(context.Background(), mgr, v.ID, AppointmentInput{
		Category:    "oil",
		Shop:        "Shop B",
		ScheduledAt: time.Now().Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	if _, err := env.svc.CreateServiceRecord(context.Background(), mechanic(), v.ID, ServiceInput{Category: "oil", Odometer: 25000}); err != nil {
		t.Fatalf("create service: %v", err)
	}

	// 只有最早的那条被关闭，另一条保持 scheduled。
	gotEarly, _ := env.repo.FindAppointmentByID(context.Background(), early.ID)
	gotLate, _ := env.repo.FindAppointmentByID(context.Background(), late.ID)
	if gotEarly.Status != AppointmentCompleted || gotEarly.CompletedAt == nil {
		t.Fatalf("earliest not completed: %+v", gotEarly)
	}
	if gotLate.Status != AppointmentScheduled {
		t.Fatalf("later appointment touched: %+v", gotLate)
	}

	// 没有 scheduled 预约时对账是空操作。
	if _, err := env.svc.CreateServiceRecord(context.Background(), mechanic(), v.ID, ServiceInput{Category: "chassis", Odometer: 25000}); err != nil {
		t.Fatalf("create service without appointments: %v", err)
	}
}

func TestServiceRecordDelete(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVehicle(t, "TRK-101", 18000)

	if _, err := env.svc.CreateServiceRecord(context.Background(), mechanic(), v.ID, ServiceInput{Category: "oil", Odometer: 18500}); err != nil {
		t.Fatalf("create service: %v", err)
	}
	recs, err := env.svc.ListServiceRecords(context.Background(), v.ID)
	if err != nil || len(recs) != 1 {
		t.Fatalf("list service: n=%d err=%v", len(recs), err)
	}

	driver := guard.Principal{ID: uuid.NewString(), Role: guard.RoleDriver}
	if err := env.svc.DeleteServiceRecord(context.Background(), driver, recs[0].ID); apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Fatalf("driver delete service: want forbidden, got %v", err)
	}
	if err := env.svc.DeleteServiceRecord(context.Background(), mechanic(), recs[0].ID); err != nil {
		t.Fatalf("delete service: %v", err)
	}
	if err := env.svc.DeleteServiceRecord(context.Background(), mechanic(), recs[0].ID); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("double delete: want not found, got %v", err)
	}
}

func TestAppointmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVehicle(t, "TRK-101", 18000)
	mgr := manager()

	if _, err := env.svc.CreateAppointment(context.Background(), mechanic(), v.ID, AppointmentInput{Category: "oil", ScheduledAt: time.Now()}); apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Fatalf("mechanic create appointment: want forbidden, got %v", err)
	}
	if _, err := env.svc.CreateAppointment(context.Background(), mgr, v.ID, AppointmentInput{Category: "tires", ScheduledAt: time.Now()}); apperrors.KindOf(err) != apperrors.KindBadRequest {
		t.Fatalf("bad category: want bad request, got %v", err)
	}

	a, err := env.svc.CreateAppointment(context.Background(), mgr, v.ID, AppointmentInput{
		Category:    "chassis",
		Shop:        "Shop A",
		ScheduledAt: time.Now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	if a.Status != AppointmentScheduled {
		t.Fatalf("unexpected initial status: %s", a.Status)
	}

	bad := "done"
	if _, err := env.svc.PatchAppointment(context.Background(), mgr, a.ID, AppointmentPatch{Status: &bad}); apperrors.KindOf(err) != apperrors.KindBadRequest {
		t.Fatalf("bad status: want bad request, got %v", err)
	}

	cancelled := "cancelled"
	got, err := env.svc.PatchAppointment(context.Background(), mgr, a.ID, AppointmentPatch{Status: &cancelled})
	if err != nil {
		t.Fatalf("cancel appointment: %v", err)
	}
	if got.Status != AppointmentCancelled || got.CancelledAt == nil {
		t.Fatalf("not cancelled: %+v", got)
	}

	// 终态不再流转。
	completed := "completed"
	if _, err := env.svc.PatchAppointment(context.Background(), mgr, a.ID, AppointmentPatch{Status: &completed}); apperrors.KindOf(err) != apperrors.KindBadRequest {
		t.Fatalf("terminal transition: want bad request, got %v", err)
	}

	if err := env.svc.DeleteAppointment(context.Background(), mgr, a.ID); err != nil {
		t.Fatalf("delete appointment: %v", err)
	}
	if err := env.svc.DeleteAppointment(context.Background(), mgr, a.ID); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("double delete: want not found, got %v", err)
	}
}

func TestListAlerts(t *testing.T) {
	env := newTestEnv(t)
	mgr := manager()

	// 18200/有机油历史@0：油 1800 剩余（标记），底盘 20000-18200=1800？
	// 用保养历史把两类剩余里程摆到想要的位置。
	v1 := env.seedVehicle(t, "TRK-101", 18200)
	if _, err := env.svc.CreateServiceRecord(context.Background(), mechanic(), v1.ID, ServiceInput{Category: "oil", Odometer: 0}); err != nil {
		t.Fatalf("seed oil history: %v", err)
	}
	if _, err := env.svc.CreateServiceRecord(context.Background(), mechanic(), v1.ID, ServiceInput{Category: "chassis", Odometer: 17200}); err != nil {
		t.Fatalf("seed chassis history: %v", err)
	}
	// oil: 0+20000-18200=1800 (<=5000 标记)；chassis: 17200+10000-18200=9000 (>3000 不标记)。

	// 远未到期的车不出现在告警里。
	env.seedVehicle(t, "TRK-102", 1000)

	// 停用车辆不参与扫描。
	inactive := env.seedVehicle(t, "TRK-103", 19999)
	inactive.Active = false
	if err := env.vehicles.Update(context.Background(), inactive); err != nil {
		t.Fatalf("deactivate vehicle: %v", err)
	}

	if _, err := env.svc.ListAlerts(context.Background(), mechanic(), 0, 0, false); apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Fatalf("mechanic list alerts: want forbidden, got %v", err)
	}

	entries, err := env.svc.ListAlerts(context.Background(), mgr, 0, 0, false)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(entries))
	}
	e := entries[0]
	if e.Vehicle.ID != v1.ID || !e.OilDueSoon || e.ChassisDueSoon {
		t.Fatalf("unexpected entry: %+v", e)
	}
	// 紧迫度取被标记类别的最小剩余里程。
	if e.Urgency != 1800 {
		t.Fatalf("urgency: want 1800, got %d", e.Urgency)
	}
}

func TestListAlertsOrderingAndAppointments(t *testing.T) {
	env := newTestEnv(t)
	mgr := manager()

	closer := env.seedVehicle(t, "TRK-201", 19500)  // 无历史：油/底盘到期 20000，剩 500
	further := env.seedVehicle(t, "TRK-202", 16500) // 无历史：剩 3500（只有油标记）

	app, err := env.svc.CreateAppointment(context.Background(), mgr, closer.ID, AppointmentInput{
		Category:    "oil",
		Shop:        "Shop A",
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	entries, err := env.svc.ListAlerts(context.Background(), mgr, 0, 0, true)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(entries))
	}
	// 紧迫度升序：剩 500 的在前。
	if entries[0].Vehicle.ID != closer.ID || entries[1].Vehicle.ID != further.ID {
		t.Fatalf("wrong order: %s then %s", entries[0].Vehicle.Number, entries[1].Vehicle.Number)
	}
	if entries[0].OilAppointment == nil || entries[0].OilAppointment.ID != app.ID {
		t.Fatalf("oil appointment not attached: %+v", entries[0].OilAppointment)
	}
	if entries[1].OilAppointment != nil {
		t.Fatalf("unexpected appointment on second entry")
	}
}
