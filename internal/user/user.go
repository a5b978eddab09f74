package user

import (
	"strings"
	"time"
)

// 合法的用户角色标签。
var ValidRoles = []string{"driver", "mechanic", "manager", "admin"}

// IsValidRole 判断角色标签是否合法。
func IsValidRole(role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User 是 users 表的 GORM 模型。
type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Name         string    `gorm:"size:64;not null"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	Role         string    `gorm:"size:16;not null"` // driver | mechanic | manager | admin
	PasswordHash string    `gorm:"size:128"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Role 命名权限集，与四个固定角色标签解耦，
// 用于更细粒度的按名称授权列表。
type Role struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Name        string    `gorm:"uniqueIndex;size:64;not null"`
	Permissions string    `gorm:"size:1024"` // 逗号分隔，例如 "report.create,defect.resolve"
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (r Role) PermissionsSlice() []string {
	if strings.TrimSpace(r.Permissions) == "" {
		return nil
	}
	parts := strings.Split(r.Permissions, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func PermissionsJoin(perms []string) string {
	if len(perms) == 0 {
		return ""
	}
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ",")
}
