package middleware

import (
	"fmt"
	"net/http"

	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/model"
)

// RequireScope returns middleware that enforces scope requirements on
// API-key principals. Session principals carry the user's full
// authority and always pass. Must be applied after Auth middleware.
// If multiple scopes are provided, having ANY of them is sufficient.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			if principal == nil {
				writeForbiddenError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			for _, req := range required {
				if principal.HasScope(req) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeForbiddenError(w, http.StatusForbidden, "FORBIDDEN",
				fmt.Sprintf("Insufficient permissions. Required scope: %s", required[0]))
		})
	}
}

// RequireRead is a convenience middleware for read scope.
func RequireRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeRead)
}

// RequireWrite is a convenience middleware for write scope.
func RequireWrite() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeWrite)
}

// RequireDocs is a convenience middleware for docs scope.
func RequireDocs() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeDocs)
}

// RequireAdmin returns middleware that restricts a route to admin
// users. An API-key principal must additionally carry the admin scope,
// which Principal.HasScope already enforces.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			if principal == nil {
				writeForbiddenError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !principal.IsAdmin || !principal.HasScope(model.ScopeAdmin) {
				writeForbiddenError(w, http.StatusForbidden, "FORBIDDEN", "Administrator access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeForbiddenError writes an authorization error response.
func writeForbiddenError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":{"code":"%s","message":"%s"}}`, code, message)))
}
