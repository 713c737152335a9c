package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/metrics"
	"github.com/boardkit/boardkit/internal/model"
)

const (
	// minAuthFailureDuration is the minimum time to spend on a failed
	// authentication attempt so rejection timing does not reveal at
	// which step the credential was rejected.
	minAuthFailureDuration = 200 * time.Millisecond
)

// AuthReporter receives authentication outcomes for async processing.
// Implementations must not block.
type AuthReporter interface {
	ReportSuccess(ctx context.Context, p *model.Principal, ip, endpoint string)
	ReportFailure(ctx context.Context, source, ip, endpoint string)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver *auth.Resolver
	Metrics  metrics.Recorder
	Reporter AuthReporter
}

// Auth returns a middleware that authenticates requests.
// It extracts the credential from the Authorization header or the
// session cookie, resolves it to a Principal, and injects the
// Principal into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			endpoint := r.Method + " " + r.URL.Path
			ip := GetClientIP(r.Context())

			cred := ExtractCredential(r)
			source := credentialSource(cred)

			fail := func(reason string, err error) {
				level := slog.LevelWarn
				if err != nil && !auth.IsResolutionError(err) {
					level = slog.LevelError
				}
				attrs := []slog.Attr{
					slog.String("reason", reason),
					slog.String("source", source),
					slog.String("ip", ip),
					slog.String("endpoint", endpoint),
					slog.String("request_id", GetRequestID(r.Context())),
				}
				if err != nil {
					attrs = append(attrs, slog.String("error", err.Error()))
				}
				cfg.Logger.LogAttrs(r.Context(), level, "authentication failed", attrs...)

				cfg.Metrics.IncAuthFailure(source)
				cfg.Metrics.ObserveAuthDuration(time.Since(startTime))
				if cfg.Reporter != nil {
					cfg.Reporter.ReportFailure(r.Context(), source, ip, endpoint)
				}

				// Pad rejection latency to a fixed floor.
				if elapsed := time.Since(startTime); elapsed < minAuthFailureDuration {
					time.Sleep(minAuthFailureDuration - elapsed)
				}
				writeAuthError(w)
			}

			if cred == "" {
				fail("missing_credential", nil)
				return
			}

			principal, err := cfg.Resolver.Resolve(r.Context(), cred)
			if err != nil {
				if auth.IsResolutionError(err) {
					fail("invalid_credential", err)
				} else {
					fail("resolution_error", err)
				}
				return
			}

			cfg.Metrics.IncAuthSuccess(string(principal.Source))
			cfg.Metrics.ObserveAuthDuration(time.Since(startTime))
			if cfg.Reporter != nil {
				cfg.Reporter.ReportSuccess(r.Context(), principal, ip, endpoint)
			}

			cfg.Logger.Info("authentication successful",
				slog.String("user_id", principal.UserID),
				slog.String("source", string(principal.Source)),
				slog.String("key_prefix", principal.KeyPrefix),
				slog.String("ip", ip),
				slog.String("endpoint", endpoint),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractCredential extracts the raw credential from the request.
// The Authorization header takes precedence over the session cookie.
func ExtractCredential(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// credentialSource classifies a raw credential for logging and metrics.
func credentialSource(cred string) string {
	if strings.HasPrefix(cred, auth.KeyMarker) {
		return string(model.SourceAPIKey)
	}
	return string(model.SourceSession)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing credentials"}}`))
}
