package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boardkit/boardkit/internal/model"
	"github.com/boardkit/boardkit/internal/repository"
)

// UserStore provides user lookups for credential resolution.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// KeyStore provides API key lookups for credential resolution.
type KeyStore interface {
	GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error)
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
}

// MatchCache caches the expensive prefix-scan-plus-argon2 step of API key
// verification, mapping a credential fingerprint to a key ID. Only the
// match is cached; revocation, expiry, and owner-active checks always
// run against the store so deactivation takes effect immediately.
type MatchCache interface {
	GetKeyMatch(ctx context.Context, fingerprint string) (string, error)
	SetKeyMatch(ctx context.Context, fingerprint, keyID string) error
}

// Resolver is the single entry point that turns a raw inbound credential
// of either kind into a normalized Principal.
type Resolver struct {
	users  UserStore
	keys   KeyStore
	tokens *TokenService
	cache  MatchCache // optional
	now    func() time.Time
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(users UserStore, keys KeyStore, tokens *TokenService, cache MatchCache) *Resolver {
	return &Resolver{
		users:  users,
		keys:   keys,
		tokens: tokens,
		cache:  cache,
		now:    time.Now,
	}
}

// Resolve inspects the credential's structural prefix to decide which
// validation path to take. The two formats are disjoint: API keys carry
// the sk_ marker, session tokens never do. On failure it returns one of
// the typed errors in errors.go; callers must collapse all of them into
// a single outward-facing 401.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*model.Principal, error) {
	if raw == "" {
		return nil, ErrMissingCredential
	}

	if strings.HasPrefix(raw, KeyMarker) {
		return r.resolveAPIKey(ctx, raw)
	}
	return r.resolveSession(ctx, raw)
}

// resolveSession validates a session token. Signature verification runs
// before the user lookup so garbage input never costs a database round-trip.
func (r *Resolver) resolveSession(ctx context.Context, raw string) (*model.Principal, error) {
	userID, err := r.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		// A token referencing a vanished user is indistinguishable
		// from one referencing a deactivated user. Anything else is
		// an infrastructure failure and must not look like a bad
		// credential.
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserInactive
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return &model.Principal{
		UserID:  user.ID,
		Source:  model.SourceSession,
		IsAdmin: user.IsAdmin,
	}, nil
}

// resolveAPIKey validates an API key. The stored prefix narrows the
// candidate set to avoid a full-table scan; the argon2 verification of
// each candidate is constant-time.
func (r *Resolver) resolveAPIKey(ctx context.Context, raw string) (*model.Principal, error) {
	parsed, err := ParseAPIKey(raw)
	if err != nil {
		return nil, ErrMalformedCredential
	}

	key, err := r.lookupKey(ctx, raw, parsed.Prefix)
	if err != nil {
		return nil, err
	}

	if key.IsRevoked() {
		return nil, ErrKeyRevoked
	}
	if key.IsExpired(r.now()) {
		return nil, ErrKeyExpired
	}

	owner, err := r.users.GetUserByID(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserInactive
		}
		return nil, err
	}
	if !owner.IsActive {
		return nil, ErrUserInactive
	}

	return &model.Principal{
		UserID:    owner.ID,
		Source:    model.SourceAPIKey,
		IsAdmin:   owner.IsAdmin,
		KeyID:     key.ID,
		KeyPrefix: key.KeyPrefix,
		Scopes:    key.Scopes,
	}, nil
}

// lookupKey finds the API key matching the presented plaintext, via the
// match cache when possible. Cache errors are treated as misses.
func (r *Resolver) lookupKey(ctx context.Context, raw, prefix string) (*model.APIKey, error) {
	fingerprint := Fingerprint(raw)

	if r.cache != nil {
		if keyID, err := r.cache.GetKeyMatch(ctx, fingerprint); err == nil && keyID != "" {
			if key, err := r.keys.GetAPIKeyByID(ctx, keyID); err == nil {
				return key, nil
			}
		}
	}

	candidates, err := r.keys.GetAPIKeysByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	// Verify against each candidate (handles prefix collisions).
	for _, k := range candidates {
		match, err := VerifySecret(raw, k.KeyHash)
		if err != nil {
			continue
		}
		if match {
			if r.cache != nil {
				_ = r.cache.SetKeyMatch(ctx, fingerprint, k.ID)
			}
			return k, nil
		}
	}

	return nil, ErrKeyNotFound
}
