package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boardkit/boardkit/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
)

// Common errors for group repository operations.
var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMemberExists       = errors.New("user is already a member")
	ErrLastOwner          = errors.New("group must retain at least one owner")
)

const groupColumns = "id, name, description, created_by, created_at, updated_at"

// CreateGroup inserts a new group and makes the creator its owner.
// Both writes happen in one transaction so a group can never exist
// without an owner.
func (r *Repository) CreateGroup(ctx context.Context, group *model.Group) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin group creation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO groups (id, name, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		group.ID,
		group.Name,
		group.Description,
		group.CreatedBy,
		group.CreatedAt,
		group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO group_memberships (id, group_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ulid.Make().String(),
		group.ID,
		group.CreatedBy,
		model.RoleOwner,
		group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit group creation: %w", err)
	}

	return nil
}

// GetGroupByID retrieves a group by its ID.
func (r *Repository) GetGroupByID(ctx context.Context, id string) (*model.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`

	var group model.Group
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.CreatedBy,
		&group.CreatedAt,
		&group.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return &group, nil
}

// ListGroupsForUser retrieves all groups the user is a member of.
func (r *Repository) ListGroupsForUser(ctx context.Context, userID string) ([]*model.Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.created_by, g.created_at, g.updated_at
		FROM groups g
		JOIN group_memberships m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		var group model.Group
		err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.Description,
			&group.CreatedBy,
			&group.CreatedAt,
			&group.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, &group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	return groups, nil
}

// DeleteGroup removes a group, its memberships, and detaches its
// boards. Boards owned by the group become orphaned rather than being
// destroyed; an admin can reassign them later.
func (r *Repository) DeleteGroup(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin group deletion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE boards SET group_id = NULL, updated_at = $2 WHERE group_id = $1`, id, time.Now()); err != nil {
		return fmt.Errorf("failed to detach group boards: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM group_memberships WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete group memberships: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrGroupNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit group deletion: %w", err)
	}

	return nil
}

// GetGroupMembership retrieves a user's membership in a group.
// Returns (nil, nil) when the user is not a member; absence is an
// authorization outcome, not an error.
func (r *Repository) GetGroupMembership(ctx context.Context, groupID, userID string) (*model.GroupMembership, error) {
	query := `
		SELECT id, group_id, user_id, role, created_at
		FROM group_memberships
		WHERE group_id = $1 AND user_id = $2
	`

	var m model.GroupMembership
	err := r.pool.QueryRow(ctx, query, groupID, userID).Scan(
		&m.ID,
		&m.GroupID,
		&m.UserID,
		&m.Role,
		&m.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &m, nil
}

// ListGroupMembers retrieves all memberships of a group.
func (r *Repository) ListGroupMembers(ctx context.Context, groupID string) ([]*model.GroupMembership, error) {
	query := `
		SELECT id, group_id, user_id, role, created_at
		FROM group_memberships
		WHERE group_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*model.GroupMembership
	for rows.Next() {
		var m model.GroupMembership
		err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	return members, nil
}

// AddGroupMember inserts a membership.
func (r *Repository) AddGroupMember(ctx context.Context, m *model.GroupMembership) error {
	query := `
		INSERT INTO group_memberships (id, group_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, m.ID, m.GroupID, m.UserID, m.Role, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrMemberExists
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

// UpdateGroupMemberRole changes a member's role. Demoting the last
// owner is refused inside the transaction so concurrent demotions
// cannot leave the group ownerless.
func (r *Repository) UpdateGroupMemberRole(ctx context.Context, groupID, userID, role string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin role update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockMembershipRole(ctx, tx, groupID, userID)
	if err != nil {
		return err
	}

	if current == model.RoleOwner && role != model.RoleOwner {
		owners, err := countOwners(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE group_memberships SET role = $3 WHERE group_id = $1 AND user_id = $2`,
		groupID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit role update: %w", err)
	}

	return nil
}

// RemoveGroupMember deletes a membership. Removing the last owner is
// refused for the same reason demotion is.
func (r *Repository) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin member removal: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockMembershipRole(ctx, tx, groupID, userID)
	if err != nil {
		return err
	}

	if current == model.RoleOwner {
		owners, err := countOwners(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM group_memberships WHERE group_id = $1 AND user_id = $2`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit member removal: %w", err)
	}

	return nil
}

// lockMembershipRole reads a membership's role under a row lock.
func lockMembershipRole(ctx context.Context, tx pgx.Tx, groupID, userID string) (string, error) {
	var role string
	err := tx.QueryRow(ctx,
		`SELECT role FROM group_memberships WHERE group_id = $1 AND user_id = $2 FOR UPDATE`,
		groupID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMembershipNotFound
		}
		return "", fmt.Errorf("failed to read membership: %w", err)
	}
	return role, nil
}

// countOwners counts owner memberships while holding the group's rows.
func countOwners(ctx context.Context, tx pgx.Tx, groupID string) (int, error) {
	var owners int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM group_memberships WHERE group_id = $1 AND role = $2`,
		groupID, model.RoleOwner).Scan(&owners)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return owners, nil
}
