package model

import "time"

// Board represents a kanban board. Exactly one of OwnerID (personal) or
// GroupID (group-owned) determines the access-control root; a board is
// never both. A board with neither is orphaned (its owning group was
// deleted) and remains accessible to administrators only.
type Board struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     *string   `json:"owner_id,omitempty"`
	GroupID     *string   `json:"group_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPersonal returns true if the board is owned directly by a user.
func (b *Board) IsPersonal() bool {
	return b.OwnerID != nil
}

// IsGroupOwned returns true if the board is owned by a group.
func (b *Board) IsGroupOwned() bool {
	return b.GroupID != nil
}

// IsOrphaned returns true if the board has no access-control root.
func (b *Board) IsOrphaned() bool {
	return b.OwnerID == nil && b.GroupID == nil
}

// BoardCreateRequest represents a request to create a board.
// GroupID, if set, creates a group-owned board; otherwise the board is
// personally owned by the caller.
type BoardCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
}

// BoardUpdateRequest represents a content edit on a board.
type BoardUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}
