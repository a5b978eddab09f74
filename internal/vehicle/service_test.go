package vehicle

import (
	"context"
	"errors"
	"testing"

	"github.com/FleetDVCR/FleetDVCR/internal/common/apperrors"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 级联删除测试只关心行数和外键列，这里用最小表结构
// 对齐 inspection / pm 包模型的表名。
type testReport struct {
	ID        string `gorm:"primaryKey;size:36"`
	VehicleID string `gorm:"index;size:36"`
}

func (testReport) TableName() string { return "reports" }

type testDefect struct {
	ID       string `gorm:"primaryKey;size:36"`
	ReportID string `gorm:"index;size:36"`
}

func (testDefect) TableName() string { return "defects" }

type testNote struct {
	ID       string `gorm:"primaryKey;size:36"`
	ReportID string `gorm:"index;size:36"`
}

func (testNote) TableName() string { return "notes" }

type testPhoto struct {
	ID       string `gorm:"primaryKey;size:36"`
	DefectID string `gorm:"index;size:36"`
	Path     string `gorm:"size:255"`
}

func (testPhoto) TableName() string { return "photos" }

type testServiceRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	VehicleID string `gorm:"index;size:36"`
}

func (testServiceRecord) TableName() string { return "service_records" }

type testAppointment struct {
	ID        string `gorm:"primaryKey;size:36"`
	VehicleID string `gorm:"index;size:36"`
}

func (testAppointment) TableName() string { return "pm_appointments" }

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&Vehicle{},
		&testReport{},
		&testDefect{},
		&testNote{},
		&testPhoto{},
		&testServiceRecord{},
		&testAppointment{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fakeStore 记录 Delete 调用，可注入失败。
type fakeStore struct {
	deleted []string
	fail    bool
}

func (f *fakeStore) Put(ctx context.Context, data []byte, suggestedName string) (string, error) {
	return "/uploads/" + suggestedName, nil
}

func (f *fakeStore) Delete(ctx context.Context, ref string) error {
	f.deleted = append(f.deleted, ref)
	if f.fail {
		return errors.New("blob gone")
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeStore) {
	t.Helper()
	db := testDB(t)
	store := &fakeStore{}
	return NewService(NewRepo(db), store, nil), db, store
}

func TestCreateVehicle(t *testing.T) {
	svc, _, _ := newTestService(t)
	manager := guard.Principal{ID: uuid.NewString(), Role: guard.RoleManager}
	driver := guard.Principal{ID: uuid.NewString(), Role: guard.RoleDriver}

	in := CreateVehicleInput{Number: "TRK-101", VIN: "1FTSW21P", Odometer: 18000}
	if _, err := svc.CreateVehicle(context.Background(), driver, in); apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Fatalf("driver create vehicle: want forbidden, got %v", err)
	}

	v, err := svc.CreateVehicle(context.Background(), manager, in)
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	if !v.Active || v.Odometer != 18000 {
		t.Fatalf("unexpected vehicle: %+v", v)
	}

	if _, err := svc.CreateVehicle(context.Background(), manager, in); apperrors.KindOf(err) != apperrors.KindConflict {
		t.Fatalf("duplicate number: want conflict, got %v", err)
	}
	if _, err := svc.CreateVehicle(context.Background(), manager, CreateVehicleInput{Number: "TRK-102", Odometer: -1}); apperrors.KindOf(err) != apperrors.KindBadRequest {
		t.Fatalf("negative odometer: want bad request, got %v", err)
	}
}

func TestPatchVehicle(t *testing.T) {
	svc, _, _ := newTestService(t)
	admin := guard.Principal{ID: uuid.NewString(), Role: guard.RoleAdmin}

	a, err := svc.CreateVehicle(context.Background(), admin, CreateVehicleInput{Number: "TRK-101"})
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	if _, err := svc.CreateVehicle(context.Background(), admin, CreateVehicleInput{Number: "TRK-102"}); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}

	taken := "TRK-102"
	if _, err := svc.PatchVehicle(context.Background(), admin, a.ID, VehiclePatch{Number: &taken}); apperrors.KindOf(err) != apperrors.KindConflict {
		t.Fatalf("number collision: want conflict, got %v", err)
	}

	// 管理员改写里程，不受只增不减约束。
	lower := int64(100)
	inactive := false
	v, err := svc.PatchVehicle(context.Background(), admin, a.ID, VehiclePatch{Odometer: &lower, Active: &inactive})
	if err != nil {
		t.Fatalf("patch vehicle: %v", err)
	}
	if v.Odometer != 100 || v.Active {
		t.Fatalf("patch not applied: %+v", v)
	}

	if _, err := svc.PatchVehicle(context.Background(), admin, uuid.NewString(), VehiclePatch{}); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("missing vehicle: want not found, got %v", err)
	}
}

func TestRaiseOdometer(t *testing.T) {
	svc, db, _ := newTestService(t)
	repo := NewRepo(db)
	admin := guard.Principal{ID: uuid.NewString(), Role: guard.RoleAdmin}

	v, err := svc.CreateVehicle(context.Background(), admin, CreateVehicleInput{Number: "TRK-101", Odometer: 18000})
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}

	// 不大于当前读数：保持不动。
	if err := repo.RaiseOdometer(context.Background(), v.ID, 17000); err != nil {
		t.Fatalf("raise odometer: %v", err)
	}
	got, _ := repo.FindByID(context.Background(), v.ID)
	if got.Odometer != 18000 {
		t.Fatalf("odometer decreased: %d", got.Odometer)
	}

	// 更大的读数：推进。
	if err := repo.RaiseOdometer(context.Background(), v.ID, 25000); err != nil {
		t.Fatalf("raise odometer: %v", err)
	}
	got, _ = repo.FindByID(context.Background(), v.ID)
	if got.Odometer != 25000 {
		t.Fatalf("odometer not raised: %d", got.Odometer)
	}
}

func seedCascadeRows(t *testing.T, db *gorm.DB, vehicleID string) {
	t.Helper()
	report := testReport{ID: uuid.NewString(), VehicleID: vehicleID}
	defect := testDefect{ID: uuid.NewString(), ReportID: report.ID}
	rows := []interface{}{
		&report,
		&defect,
		&testNote{ID: uuid.NewString(), ReportID: report.ID},
		&testPhoto{ID: uuid.NewString(), DefectID: defect.ID, Path: "/uploads/" + defect.ID + "_1_brake.jpg"},
		&testServiceRecord{ID: uuid.NewString(), VehicleID: vehicleID},
		&testAppointment{ID: uuid.NewString(), VehicleID: vehicleID},
	}
	for _, row := range rows {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed cascade row: %v", err)
		}
	}
}

func TestDeleteVehicleCascade(t *testing.T) {
	svc, db, store := newTestService(t)
	admin := guard.Principal{ID: uuid.NewString(), Role: guard.RoleAdmin}

	v, err := svc.CreateVehicle(context.Background(), admin, CreateVehicleInput{Number: "TRK-101"})
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	seedCascadeRows(t, db, v.ID)

	if err := svc.DeleteVehicle(context.Background(), admin, v.ID); err != nil {
		t.Fatalf("delete vehicle: %v", err)
	}

	for _, table := range []string{"vehicles", "reports", "defects", "notes", "photos", "service_records", "pm_appointments"} {
		var n int64
		if err := db.Table(table).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("table %s still has %d rows", table, n)
		}
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected 1 blob delete, got %d", len(store.deleted))
	}

	if err := svc.DeleteVehicle(context.Background(), admin, v.ID); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("double delete: want not found, got %v", err)
	}
}

func TestDeleteVehicleBlobFailureIsNonFatal(t *testing.T) {
	svc, db, store := newTestService(t)
	store.fail = true
	admin := guard.Principal{ID: uuid.NewString(), Role: guard.RoleAdmin}

	v, err := svc.CreateVehicle(context.Background(), admin, CreateVehicleInput{Number: "TRK-101"})
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	seedCascadeRows(t, db, v.ID)

	if err := svc.DeleteVehicle(context.Background(), admin, v.ID); err != nil {
		t.Fatalf("blob failure should not block delete: %v", err)
	}
	var n int64
	if err := db.Table("vehicles").Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("vehicle metadata not deleted: n=%d err=%v", n, err)
	}
}
