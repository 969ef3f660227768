package identity

import (
	"time"

	"github.com/google/uuid"
)

// Role is a workflow role held by a user.
type Role string

const (
	RoleRequester Role = "Requester"
	RoleDesigner  Role = "Designer"
	RoleApprover  Role = "Approver"
	RoleAdmin     Role = "Admin"
)

// Roles lists every known role.
var Roles = []Role{RoleRequester, RoleDesigner, RoleApprover, RoleAdmin}

// ParseRole returns the Role named s.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Actor is the explicit identity passed into every workflow call.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Roles []Role    `json:"roles"`
}

// HasRole reports whether the actor holds role.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// UserRole grants one role to one user.
type UserRole struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_user_role"`
	Role      Role      `json:"role" gorm:"type:varchar(32);not null;uniqueIndex:idx_user_role"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (UserRole) TableName() string { return "user_roles" }

// Contact holds the delivery addresses used by notification channels.
type Contact struct {
	UserID      uuid.UUID `json:"user_id" gorm:"type:varchar(36);primaryKey"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	PushTarget  string    `json:"push_target"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Contact) TableName() string { return "user_contacts" }
