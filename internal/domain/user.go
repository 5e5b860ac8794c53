package domain

import "time"

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// HasPermission reports whether the role satisfies the minimum role.
func (r Role) HasPermission(min Role) bool {
	if min == RoleAdmin {
		return r == RoleAdmin
	}
	return r == RoleMember || r == RoleAdmin
}

type User struct {
	ID           string
	OrgID        string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
