package models

import (
	"time"

	"github.com/google/uuid"
)

// Role names known to the portal. Users may hold several at once.
const (
	RoleAdmin       = "admin"
	RoleMC          = "mc"
	RoleAuditor     = "auditor"
	RolePastor      = "pastor"
	RoleMinister    = "minister"
	RoleLeader      = "leader"
	RoleGroupLeader = "group_leader"
	RoleCellLeader  = "cell_leader"
	RoleMember      = "member"
)

// User represents a portal member.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Roles     []string  `json:"roles"`
	GroupName string    `json:"group_name,omitempty"`
	CellName  string    `json:"cell_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Roles     []string  `json:"roles"`
	GroupName string    `json:"group_name,omitempty"`
	CellName  string    `json:"cell_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Roles:     u.Roles,
		GroupName: u.GroupName,
		CellName:  u.CellName,
		CreatedAt: u.CreatedAt,
	}
}
