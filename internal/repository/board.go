package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boardkit/boardkit/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for board repository operations.
var (
	ErrBoardNotFound = errors.New("board not found")
)

const boardColumns = "id, name, description, owner_id, group_id, created_at, updated_at"

// CreateBoard inserts a new board into the database.
func (r *Repository) CreateBoard(ctx context.Context, board *model.Board) error {
	query := `
		INSERT INTO boards (id, name, description, owner_id, group_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		board.ID,
		board.Name,
		board.Description,
		board.OwnerID,
		board.GroupID,
		board.CreatedAt,
		board.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	return nil
}

// GetBoardByID retrieves a board by its ID.
func (r *Repository) GetBoardByID(ctx context.Context, id string) (*model.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE id = $1`
	return scanBoard(r.pool.QueryRow(ctx, query, id))
}

// ListBoardsForUser retrieves boards the user owns personally plus
// boards owned by groups the user belongs to.
func (r *Repository) ListBoardsForUser(ctx context.Context, userID string) ([]*model.Board, error) {
	query := `
		SELECT ` + boardColumns + `
		FROM boards
		WHERE owner_id = $1
		   OR group_id IN (SELECT group_id FROM group_memberships WHERE user_id = $1)
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	var boards []*model.Board
	for rows.Next() {
		board, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, board)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boards: %w", err)
	}

	return boards, nil
}

// UpdateBoard updates mutable board fields.
func (r *Repository) UpdateBoard(ctx context.Context, id string, name, description string) error {
	query := `
		UPDATE boards
		SET name = $2, description = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, name, description, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update board: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrBoardNotFound
	}

	return nil
}

// DeleteBoard removes a board.
func (r *Repository) DeleteBoard(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrBoardNotFound
	}

	return nil
}

// scanBoard scans a single row into a Board model.
func scanBoard(row pgx.Row) (*model.Board, error) {
	var board model.Board

	err := row.Scan(
		&board.ID,
		&board.Name,
		&board.Description,
		&board.OwnerID,
		&board.GroupID,
		&board.CreatedAt,
		&board.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to scan board: %w", err)
	}

	return &board, nil
}
