package guard

import (
	"context"
	"strings"

	"github.com/FleetDVCR/FleetDVCR/internal/common/apperrors"
)

// Resolver 把凭证中的用户 ID 解析为已知 Principal。
// 解析失败（含用户已删除）须返回 Unauthenticated 类错误。
type Resolver interface {
	ResolvePrincipal(ctx context.Context, userID string) (Principal, error)
}

// 固定角色标签。
const (
	RoleDriver   = "driver"
	RoleMechanic = "mechanic"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

// Principal 已解析的当前用户（由传输层从凭证解析得到）。
// 零值表示未认证。
type Principal struct {
	ID   string
	Role string
}

// Resolved 判断 principal 是否已由凭证解析为已知用户。
func (p Principal) Resolved() bool {
	return strings.TrimSpace(p.ID) != ""
}

// Action 权限表中的动作标识。
type Action string

const (
	ActionUserManage        Action = "user.manage"       // 用户增删改查
	ActionRoleManage        Action = "role.manage"       // 命名角色（权限串集合）管理
	ActionVehicleManage     Action = "vehicle.manage"    // 车辆创建/修改/删除
	ActionReportCreate      Action = "report.create"     // 提交检查报告
	ActionReportSetStatus   Action = "report.set_status" // 修改报告状态
	ActionDefectResolve     Action = "defect.resolve"    // 缺陷判定（resolved 翻转）
	ActionDefectDelete      Action = "defect.delete"     // 删除缺陷（连带照片）
	ActionPhotoDelete       Action = "photo.delete"      // 删除照片
	ActionServiceCreate     Action = "service.create"    // 记录保养
	ActionServiceDelete     Action = "service.delete"    // 删除保养记录
	ActionAlertsView        Action = "alerts.view"       // 查看PM告警
	ActionAppointmentManage Action = "appointment.manage" // 预约增删改
)

// permissions 动作 -> 允许角色 的固定权限表。
// 集中一处便于审计；动作未出现在表中表示仅要求已认证。
var permissions = map[Action][]string{
	ActionUserManage:        {RoleManager, RoleAdmin},
	ActionRoleManage:        {RoleAdmin},
	ActionVehicleManage:     {RoleManager, RoleAdmin},
	ActionReportCreate:      nil, // 任意已认证用户
	ActionReportSetStatus:   {RoleMechanic, RoleManager, RoleAdmin},
	ActionDefectResolve:     {RoleMechanic, RoleManager, RoleAdmin},
	ActionDefectDelete:      {RoleMechanic, RoleManager, RoleAdmin},
	ActionPhotoDelete:       {RoleMechanic, RoleManager, RoleAdmin},
	ActionServiceCreate:     {RoleMechanic, RoleManager, RoleAdmin},
	ActionServiceDelete:     {RoleMechanic, RoleManager, RoleAdmin},
	ActionAlertsView:        {RoleManager, RoleAdmin},
	ActionAppointmentManage: {RoleManager, RoleAdmin},
}

// Allow 判断 principal 是否允许执行 action。
func Allow(p Principal, action Action) bool {
	if !p.Resolved() {
		return false
	}
	required, ok := permissions[action]
	if !ok || len(required) == 0 {
		return true
	}
	role := strings.TrimSpace(strings.ToLower(p.Role))
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}

// Require 与 Allow 相同，但返回分类错误：
// 未认证 -> Unauthenticated；角色不足 -> Forbidden。
// 任何写操作在触达存储层之前都必须先通过 Require。
func Require(p Principal, action Action) error {
	if !p.Resolved() {
		return apperrors.Unauthenticated("not authenticated")
	}
	if !Allow(p, action) {
		return apperrors.Forbidden("insufficient permissions")
	}
	return nil
}

// RequiredRoles 返回动作在权限表中允许的角色（审计/测试用）。
func RequiredRoles(action Action) []string {
	return permissions[action]
}
