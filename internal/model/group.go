package model

import "time"

// Group roles, in ascending order of capability.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// ValidRoles contains all valid group role values.
var ValidRoles = []string{RoleMember, RoleAdmin, RoleOwner}

// Group represents a team that can own boards jointly.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupMembership pairs a user with a group and a role.
// Unique per (group_id, user_id) - no duplicate membership.
type GroupMembership struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupCreateRequest represents a request to create a group.
type GroupCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// GroupMemberRequest adds a member to a group or changes their role.
type GroupMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// GroupMemberResponse is a membership with the member's user info attached.
type GroupMemberResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
