package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boardkit/boardkit/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// Common errors for API key repository operations.
var (
	ErrAPIKeyNotFound = errors.New("API key not found")
)

const apiKeyColumns = "id, user_id, name, key_hash, key_prefix, scopes, expires_at, revoked_at, last_used_at, usage_count, created_at"

// CreateAPIKey inserts a new API key into the database.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, expires_at, usage_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.UserID,
		key.Name,
		key.KeyHash,
		key.KeyPrefix,
		pq.Array(key.Scopes),
		key.ExpiresAt,
		key.UsageCount,
		key.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	return nil
}

// GetAPIKeyByID retrieves an API key by its ID.
func (r *Repository) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	return scanAPIKey(r.pool.QueryRow(ctx, query, id))
}

// GetAPIKeysByPrefix retrieves all unrevoked API keys matching a prefix.
// Used during authentication to find candidate keys for verification.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_prefix = $1 AND revoked_at IS NULL`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get API keys by prefix: %w", err)
	}
	defer rows.Close()

	return collectAPIKeys(rows)
}

// ListAPIKeysByUserID retrieves all API keys for a user.
func (r *Repository) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	defer rows.Close()

	return collectAPIKeys(rows)
}

// RevokeAPIKey revokes an API key by setting revoked_at.
// Revocation is permanent; a revoked key never authenticates again.
func (r *Repository) RevokeAPIKey(ctx context.Context, id string) error {
	query := `
		UPDATE api_keys
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

// RotateAPIKey revokes the old key and inserts its replacement in a
// single transaction. The replacement keeps the old key's name and
// scopes; the caller supplies it fully populated.
func (r *Repository) RotateAPIKey(ctx context.Context, oldID string, replacement *model.APIKey) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx,
		`UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		oldID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke rotated key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, expires_at, usage_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		replacement.ID,
		replacement.UserID,
		replacement.Name,
		replacement.KeyHash,
		replacement.KeyPrefix,
		pq.Array(replacement.Scopes),
		replacement.ExpiresAt,
		replacement.UsageCount,
		replacement.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert replacement key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}

	return nil
}

// RecordAPIKeyUsage advances last_used_at and adds to usage_count.
// Called from the audit worker with batched counts, never inline with
// request handling.
func (r *Repository) RecordAPIKeyUsage(ctx context.Context, id string, usedAt time.Time, count int64) error {
	query := `
		UPDATE api_keys
		SET last_used_at = GREATEST(COALESCE(last_used_at, $2), $2),
		    usage_count = usage_count + $3
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, usedAt, count)
	if err != nil {
		return fmt.Errorf("failed to record API key usage: %w", err)
	}

	return nil
}

// collectAPIKeys drains rows into APIKey models.
func collectAPIKeys(rows pgx.Rows) ([]*model.APIKey, error) {
	var keys []*model.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}

// scanAPIKey scans a single row into an APIKey model.
func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var key model.APIKey
	var scopes []string

	err := row.Scan(
		&key.ID,
		&key.UserID,
		&key.Name,
		&key.KeyHash,
		&key.KeyPrefix,
		pq.Array(&scopes),
		&key.ExpiresAt,
		&key.RevokedAt,
		&key.LastUsedAt,
		&key.UsageCount,
		&key.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to scan API key: %w", err)
	}

	key.Scopes = scopes
	return &key, nil
}
