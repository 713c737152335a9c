package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/model"
	"github.com/boardkit/boardkit/internal/repository"
)

type output struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	KeyID    string `json:"key_id,omitempty"`
	Key      string `json:"key,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		username    = flag.String("username", "admin", "Admin username")
		email       = flag.String("email", "admin@boardkit.local", "Admin email")
		password    = flag.String("password", "", "Admin password (required when creating the user)")
		withKey     = flag.Bool("with-key", false, "Also issue an admin-scoped API key")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	user, err := ensureAdmin(ctx, repo, *username, *email, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	out := output{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	}

	if *withKey {
		generated, err := auth.GenerateAPIKey()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate api key:", err)
			os.Exit(1)
		}

		apiKey := &model.APIKey{
			ID:        ulid.Make().String(),
			UserID:    user.ID,
			KeyHash:   generated.Hash,
			KeyPrefix: generated.Prefix,
			Scopes:    []string{model.ScopeAdmin},
			Name:      "bootstrap",
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
			fmt.Fprintln(os.Stderr, "create api key:", err)
			os.Exit(1)
		}
		out.KeyID = apiKey.ID
		out.Key = generated.Plaintext
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println("user:", out.UserID)
		if out.Key != "" {
			fmt.Println("key:", out.Key)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureAdmin finds or creates the admin user. An existing user is
// promoted to admin if needed; the password flag is only consulted when
// a new user has to be created.
func ensureAdmin(ctx context.Context, repo *repository.Repository, username, email, password string) (*model.User, error) {
	existing, err := repo.GetUserByUsername(ctx, username)
	if err == nil {
		if !existing.IsAdmin {
			if err := repo.SetUserAdmin(ctx, existing.ID, true); err != nil {
				return nil, fmt.Errorf("promote user: %w", err)
			}
			existing.IsAdmin = true
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if password == "" {
		return nil, errors.New("password is required to create the admin user")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := auth.HashSecret(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           ulid.Make().String(),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		IsActive:     true,
		IsAdmin:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
