package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/boardkit/boardkit/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731731

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops and recreates one numbered migration for tests.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downPath := filepath.Join(root, "migrations", name+".down.sql")
	upPath := filepath.Join(root, "migrations", name+".up.sql")

	downSQL, err := os.ReadFile(downPath)
	if err != nil {
		return fmt.Errorf("read down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply down migration: %w", err)
	}

	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		return fmt.Errorf("read up migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply up migration: %w", err)
	}

	return nil
}

// ResetAllSchemas rebuilds every table in dependency order.
func ResetAllSchemas(ctx context.Context, pool *pgxpool.Pool) error {
	// Drop in reverse dependency order, then recreate forward.
	drops := []string{"000005_auth_events", "000004_boards", "000003_groups", "000002_api_keys", "000001_users"}
	for _, name := range drops {
		if err := applyMigration(ctx, pool, name+".down.sql"); err != nil {
			return err
		}
	}
	ups := []string{"000001_users", "000002_api_keys", "000003_groups", "000004_boards", "000005_auth_events"}
	for _, name := range ups {
		if err := applyMigration(ctx, pool, name+".up.sql"); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, filename string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}
	sql, err := os.ReadFile(filepath.Join(root, "migrations", filename))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filename, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", filename, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, username string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		ID:           fmt.Sprintf("user-%d", now.UnixNano()),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: fmt.Sprintf("hash-%d", now.UnixNano()),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:        fmt.Sprintf("key-%d", now.UnixNano()),
		UserID:    userID,
		KeyHash:   fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix: "a1b2c3",
		Scopes:    []string{model.ScopeRead, model.ScopeWrite},
		Name:      "Test Key",
		CreatedAt: now,
	}
}

// NewTestGroup creates a test group with sensible defaults.
func NewTestGroup(t testing.TB, createdBy string) *model.Group {
	t.Helper()
	now := time.Now().UTC()
	return &model.Group{
		ID:        fmt.Sprintf("group-%d", now.UnixNano()),
		Name:      "Test Group",
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestBoard creates a personal test board owned by the given user.
func NewTestBoard(t testing.TB, ownerID string) *model.Board {
	t.Helper()
	now := time.Now().UTC()
	return &model.Board{
		ID:        fmt.Sprintf("board-%d", now.UnixNano()),
		Name:      "Test Board",
		OwnerID:   &ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
