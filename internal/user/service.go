package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FleetDVCR/FleetDVCR/internal/common/apperrors"
	"github.com/FleetDVCR/FleetDVCR/internal/common/auth"
	"github.com/FleetDVCR/FleetDVCR/internal/common/config"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service 封装用户领域的核心用例（不依赖 HTTP），便于复用和测试。
type Service struct {
	repo    *Repo
	authCfg config.AuthConfig
}

func NewService(repo *Repo, authCfg config.AuthConfig) *Service {
	return &Service{repo: repo, authCfg: authCfg}
}

// LoginResult 登录结果。
type LoginResult struct {
	User        *User
	AccessToken string
	ExpiresAt   time.Time
}

// Login 邮箱+密码登录，签发 access token。
// 凭证不匹配统一返回 Unauthenticated，不区分“用户不存在/密码错误”。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperrors.Unauthenticated("invalid email or password")
	}

	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthenticated("invalid email or password")
		}
		return nil, err
	}
	if !VerifyPassword(password, u.PasswordHash) {
		return nil, apperrors.Unauthenticated("invalid email or password")
	}

	ttl := time.Duration(s.authCfg.TTLMinutes) * time.Minute
	token, expiresAt, err := auth.GenerateAccessToken(s.authCfg, u.ID, []string{u.Role}, ttl)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &LoginResult{User: u, AccessToken: token, ExpiresAt: expiresAt}, nil
}

// ResolvePrincipal 把 token subject 解析为已知用户；
// 用户不存在视为未认证（token 有效但账号已删除）。
func (s *Service) ResolvePrincipal(ctx context.Context, userID string) (guard.Principal, error) {
	if s == nil || s.repo == nil {
		return guard.Principal{}, fmt.Errorf("service not initialized")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return guard.Principal{}, apperrors.Unauthenticated("not authenticated")
	}
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return guard.Principal{}, apperrors.Unauthenticated("unknown principal")
		}
		return guard.Principal{}, err
	}
	return guard.Principal{ID: u.ID, Role: u.Role}, nil
}

// GetUser 按 ID 查询用户。
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	u, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, err
	}
	return u, nil
}

// ListUsers 列出全部用户（manager/admin）。
func (s *Service) ListUsers(ctx context.Context, p guard.Principal) ([]User, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionUserManage); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// CreateUserInput 创建用户的入参。
type CreateUserInput struct {
	Name     string
	Email    string
	Role     string
	Password string
}

// CreateUser 创建用户（manager/admin）；邮箱重复返回 Conflict。
func (s *Service) CreateUser(ctx context.Context, p guard.Principal, in CreateUserInput) (*User, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionUserManage); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(strings.ToLower(in.Email))
	role := strings.TrimSpace(strings.ToLower(in.Role))
	if name == "" || email == "" {
		return nil, apperrors.BadRequest("name and email required")
	}
	if !IsValidRole(role) {
		return nil, apperrors.BadRequest("invalid role")
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.Conflict("email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.BadRequest("password required")
	}

	u := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UserPatch 用户修改入参；nil 字段表示不修改。
type UserPatch struct {
	Name     *string
	Email    *string
	Role     *string
	Password *string
}

// PatchUser 修改用户（manager/admin）；改邮箱时重新校验唯一性。
func (s *Service) PatchUser(ctx context.Context, p guard.Principal, id string, patch UserPatch) (*User, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionUserManage); err != nil {
		return nil, err
	}

	u, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, err
	}

	if patch.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*patch.Email))
		if email != "" && email != u.Email {
			if _, err := s.repo.FindByEmail(ctx, email); err == nil {
				return nil, apperrors.Conflict("email already exists")
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			u.Email = email
		}
	}
	if patch.Name != nil {
		u.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Role != nil {
		role := strings.TrimSpace(strings.ToLower(*patch.Role))
		if !IsValidRole(role) {
			return nil, apperrors.BadRequest("invalid role")
		}
		u.Role = role
	}
	if patch.Password != nil && *patch.Password != "" {
		hash, err := HashPassword(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser 删除用户（manager/admin）；拒绝删除自己的账号。
func (s *Service) DeleteUser(ctx context.Context, p guard.Principal, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionUserManage); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == p.ID {
		return apperrors.BadRequest("refusing to delete your own account")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("user not found")
		}
		return err
	}
	return s.repo.Delete(ctx, id)
}

// ---- 命名角色管理（admin） ----

// RoleInput 命名角色的入参。
type RoleInput struct {
	Name        string
	Permissions []string
}

// CreateRole 创建命名角色；名称重复返回 Conflict。
func (s *Service) CreateRole(ctx context.Context, p guard.Principal, in RoleInput) (*Role, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionRoleManage); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.BadRequest("role name required")
	}
	if _, err := s.repo.FindRoleByName(ctx, name); err == nil {
		return nil, apperrors.Conflict("role name already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	role := &Role{
		ID:          uuid.NewString(),
		Name:        name,
		Permissions: PermissionsJoin(in.Permissions),
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// PatchRole 修改命名角色。
func (s *Service) PatchRole(ctx context.Context, p guard.Principal, id string, in RoleInput) (*Role, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionRoleManage); err != nil {
		return nil, err
	}
	role, err := s.repo.FindRoleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("role not found")
		}
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" && name != role.Name {
		if _, err := s.repo.FindRoleByName(ctx, name); err == nil {
			return nil, apperrors.Conflict("role name already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		role.Name = name
	}
	if in.Permissions != nil {
		role.Permissions = PermissionsJoin(in.Permissions)
	}
	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole 删除命名角色。
func (s *Service) DeleteRole(ctx context.Context, p guard.Principal, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionRoleManage); err != nil {
		return err
	}
	if _, err := s.repo.FindRoleByID(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("role not found")
		}
		return err
	}
	return s.repo.DeleteRole(ctx, strings.TrimSpace(id))
}

// ListRoles 列出全部命名角色（admin）。
func (s *Service) ListRoles(ctx context.Context, p guard.Principal) ([]Role, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := guard.Require(p, guard.ActionRoleManage); err != nil {
		return nil, err
	}
	return s.repo.ListRoles(ctx)
}
