package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeChecker struct {
	err error
}

func (c fakeChecker) Ping(_ context.Context) error {
	return c.err
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	return resp
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if resp := decodeHealth(t, rec); resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestReadyz_AllHealthy(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(fakeChecker{}, fakeChecker{})
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeHealth(t, rec)
	if resp.Checks["postgres"] != "ok" {
		t.Errorf("postgres check = %q, want ok", resp.Checks["postgres"])
	}
	if resp.Checks["redis"] != "ok" {
		t.Errorf("redis check = %q, want ok", resp.Checks["redis"])
	}
}

func TestReadyz_DatabaseDown(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(fakeChecker{err: errors.New("connection refused")}, fakeChecker{})
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if resp := decodeHealth(t, rec); resp.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", resp.Status)
	}
}

func TestReadyz_MissingCacheStillReady(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(fakeChecker{}, nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if resp := decodeHealth(t, rec); resp.Checks["redis"] != "not configured" {
		t.Errorf("redis check = %q, want \"not configured\"", resp.Checks["redis"])
	}
}
