package users

import "time"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleOperator   Role = "operator"
	RoleUser       Role = "user"
)

type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// PrimordialAdminID is the bootstrap administrator; it can never be deleted.
const PrimordialAdminID int64 = 1

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"fullName"`
	Role         Role       `json:"role"`
	Permission   Permission `json:"permission"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CanEdit reports whether the user may mutate records.
func (u User) CanEdit() bool {
	return u.Role == RoleAdmin || u.Permission == PermissionEdit
}

// CanOverride reports whether the user may apply administrative status corrections.
func (u User) CanOverride() bool {
	return u.Role == RoleAdmin || u.Role == RoleSupervisor
}

// Patch is a partial update; nil fields keep their current value.
type Patch struct {
	FullName     *string
	Role         *Role
	Permission   *Permission
	Active       *bool
	PasswordHash *string
}

func validRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleOperator, RoleUser:
		return true
	}
	return false
}

func validPermission(p Permission) bool {
	return p == PermissionView || p == PermissionEdit
}
