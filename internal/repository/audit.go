package repository

import (
	"context"
	"fmt"

	"github.com/boardkit/boardkit/internal/model"
	"github.com/jackc/pgx/v5"
)

// AuthEventRepository provides database access for auth audit events.
type AuthEventRepository struct {
	repo *Repository
}

// NewAuthEventRepository creates a new AuthEventRepository.
func NewAuthEventRepository(repo *Repository) *AuthEventRepository {
	return &AuthEventRepository{repo: repo}
}

// BulkInsert inserts multiple auth events with idempotency via ON CONFLICT DO NOTHING.
func (r *AuthEventRepository) BulkInsert(ctx context.Context, events []*model.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO auth_events (
			id, user_id, key_id, source, outcome, ip, endpoint, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			nullableString(event.UserID),
			nullableString(event.KeyID),
			event.Source,
			event.Outcome,
			nullableString(event.IP),
			nullableString(event.Endpoint),
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

// ListRecent retrieves the most recent auth events, newest first.
func (r *AuthEventRepository) ListRecent(ctx context.Context, limit int) ([]*model.AuthEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, COALESCE(user_id, ''), COALESCE(key_id, ''), source, outcome,
		       COALESCE(ip, ''), COALESCE(endpoint, ''), occurred_at
		FROM auth_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	rows, err := r.repo.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth events: %w", err)
	}
	defer rows.Close()

	var events []*model.AuthEvent
	for rows.Next() {
		var ev model.AuthEvent
		err := rows.Scan(&ev.ID, &ev.UserID, &ev.KeyID, &ev.Source, &ev.Outcome, &ev.IP, &ev.Endpoint, &ev.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auth events: %w", err)
	}

	return events, nil
}

// nullableString converts an empty string to a NULL parameter.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
