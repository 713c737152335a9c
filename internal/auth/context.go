package auth

import (
	"context"

	"github.com/boardkit/boardkit/internal/model"
)

// SessionCookieName is the cookie that carries the session token for
// browser clients. API clients send credentials via the Authorization
// header instead.
const SessionCookieName = "boardkit_session"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// principalContextKey is the context key for storing the Principal.
	principalContextKey contextKey = "principal"
)

// ContextWithPrincipal adds a Principal to the context.
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the Principal from the context.
// Returns nil if not present.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok {
		return nil
	}
	return p
}

// MustPrincipalFromContext retrieves the Principal from the context.
// Panics if not present (use only when auth middleware has run).
func MustPrincipalFromContext(ctx context.Context) *model.Principal {
	p := PrincipalFromContext(ctx)
	if p == nil {
		panic("principal not found - ensure auth middleware is applied")
	}
	return p
}

// UserIDFromContext is a convenience function to get the user ID.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return ""
	}
	return p.UserID
}
