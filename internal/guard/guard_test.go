package guard

import (
	"testing"

	"github.com/FleetDVCR/FleetDVCR/internal/common/apperrors"
)

func TestRequireUnauthenticated(t *testing.T) {
	err := Require(Principal{}, ActionVehicleManage)
	if err == nil {
		t.Fatalf("expected error for unresolved principal")
	}
	if apperrors.KindOf(err) != apperrors.KindUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestRequireForbidden(t *testing.T) {
	driver := Principal{ID: "u-1", Role: RoleDriver}
	err := Require(driver, ActionVehicleManage)
	if err == nil {
		t.Fatalf("expected driver to be forbidden from vehicle.manage")
	}
	if apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestPermissionMatrix(t *testing.T) {
	cases := []struct {
		role   string
		action Action
		allow  bool
	}{
		{RoleDriver, ActionReportCreate, true},
		{RoleMechanic, ActionReportCreate, true},
		{RoleDriver, ActionReportSetStatus, false},
		{RoleMechanic, ActionReportSetStatus, true},
		{RoleManager, ActionReportSetStatus, true},
		{RoleAdmin, ActionReportSetStatus, true},
		{RoleDriver, ActionDefectResolve, false},
		{RoleMechanic, ActionDefectResolve, true},
		{RoleMechanic, ActionServiceCreate, true},
		{RoleDriver, ActionServiceCreate, false},
		{RoleMechanic, ActionAlertsView, false},
		{RoleManager, ActionAlertsView, true},
		{RoleAdmin, ActionAlertsView, true},
		{RoleMechanic, ActionAppointmentManage, false},
		{RoleManager, ActionAppointmentManage, true},
		{RoleManager, ActionUserManage, true},
		{RoleMechanic, ActionUserManage, false},
		{RoleManager, ActionRoleManage, false},
		{RoleAdmin, ActionRoleManage, true},
	}
	for _, c := range cases {
		p := Principal{ID: "u-1", Role: c.role}
		if got := Allow(p, c.action); got != c.allow {
			t.Errorf("Allow(%s, %s) = %v, want %v", c.role, c.action, got, c.allow)
		}
	}
}

func TestAllowIsCaseInsensitiveOnRole(t *testing.T) {
	p := Principal{ID: "u-1", Role: "Manager"}
	if !Allow(p, ActionVehicleManage) {
		t.Fatalf("expected role match to be case-insensitive")
	}
}
