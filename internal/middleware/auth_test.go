package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/metrics"
	"github.com/boardkit/boardkit/internal/model"
)

type stubUserStore struct {
	user *model.User
}

func (s *stubUserStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, errors.New("not found")
}

type stubKeyStore struct{}

func (s *stubKeyStore) GetAPIKeyByID(_ context.Context, _ string) (*model.APIKey, error) {
	return nil, errors.New("not found")
}

func (s *stubKeyStore) GetAPIKeysByPrefix(_ context.Context, _ string) ([]*model.APIKey, error) {
	return nil, nil
}

type recordedReport struct {
	outcome string
	source  string
}

type recordingReporter struct {
	reports []recordedReport
}

func (r *recordingReporter) ReportSuccess(_ context.Context, p *model.Principal, _, _ string) {
	r.reports = append(r.reports, recordedReport{outcome: "success", source: string(p.Source)})
}

func (r *recordingReporter) ReportFailure(_ context.Context, source, _, _ string) {
	r.reports = append(r.reports, recordedReport{outcome: "failure", source: source})
}

func newAuthTestEnv(t *testing.T) (*auth.TokenService, *recordingReporter, http.Handler) {
	t.Helper()

	tokens, err := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	users := &stubUserStore{user: &model.User{ID: "user-1", IsActive: true}}
	resolver := auth.NewResolver(users, &stubKeyStore{}, tokens, nil)
	reporter := &recordingReporter{}

	handler := Auth(AuthConfig{
		Logger:   testLogger(),
		Resolver: resolver,
		Reporter: reporter,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.PrincipalFromContext(r.Context())
		if p == nil {
			t.Error("Principal should be set after successful auth")
		}
		w.WriteHeader(http.StatusOK)
	}))

	return tokens, reporter, handler
}

func TestAuth_ValidBearerToken(t *testing.T) {
	t.Parallel()

	tokens, reporter, handler := newAuthTestEnv(t)
	token, _, err := tokens.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(reporter.reports) != 1 || reporter.reports[0].outcome != "success" {
		t.Errorf("Expected one success report, got: %+v", reporter.reports)
	}
}

func TestAuth_ValidSessionCookie(t *testing.T) {
	t.Parallel()

	tokens, _, handler := newAuthTestEnv(t)
	token, _, err := tokens.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestAuth_UniformFailureResponses(t *testing.T) {
	t.Parallel()

	tokens, _, handler := newAuthTestEnv(t)

	expired, err := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), -time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	expiredToken, _, _ := expired.Issue("user-1")
	unknownToken, _, _ := tokens.Issue("user-unknown")

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no credential", func(_ *http.Request) {}},
		{"garbage bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer garbage")
		}},
		{"expired token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+expiredToken)
		}},
		{"unknown user", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+unknownToken)
		}},
		{"malformed api key", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer sk_bogus")
		}},
		{"unknown api key", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer sk_a1b2c3_"+strings.Repeat("f", 64))
		}},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", rec.Code)
			}
			bodies = append(bodies, rec.Body.String())
		})
	}

	// Every failure mode must produce a byte-identical response.
	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("Failure responses differ:\n%s\nvs\n%s", bodies[0], bodies[i])
		}
	}
}

func TestAuth_FailureTimingFloor(t *testing.T) {
	t.Parallel()

	_, _, handler := newAuthTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	start := time.Now()
	handler.ServeHTTP(rec, req)
	elapsed := time.Since(start)

	if elapsed < minAuthFailureDuration {
		t.Errorf("Failed auth should take at least %v, took %v", minAuthFailureDuration, elapsed)
	}
}

func TestAuth_FailureMetricsBySource(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	users := &stubUserStore{}
	svc, _ := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	resolver := auth.NewResolver(users, &stubKeyStore{}, svc, nil)

	handler := Auth(AuthConfig{
		Logger:   testLogger(),
		Resolver: resolver,
		Metrics:  recorder,
	})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer sk_a1b2c3_"+strings.Repeat("f", 64))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-key")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	snap := recorder.Snapshot()
	if snap.AuthAPIKeyFailures != 1 {
		t.Errorf("Expected 1 api_key failure, got %d", snap.AuthAPIKeyFailures)
	}
	if snap.AuthSessionFailures != 1 {
		t.Errorf("Expected 1 session failure, got %d", snap.AuthSessionFailures)
	}
}

func TestExtractCredential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"bearer header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer token-value")
		}, "token-value"},
		{"session cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "cookie-value"})
		}, "cookie-value"},
		{"header wins over cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer header-value")
			r.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "cookie-value"})
		}, "header-value"},
		{"non-bearer header ignored", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		}, ""},
		{"nothing", func(_ *http.Request) {}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			if got := ExtractCredential(req); got != tt.want {
				t.Errorf("ExtractCredential = %q, want %q", got, tt.want)
			}
		})
	}
}
