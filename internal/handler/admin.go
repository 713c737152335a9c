package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/model"
	"github.com/boardkit/boardkit/internal/repository"
)

// AdminHandler handles administrator-only endpoints.
// Routes using it must be guarded by the admin middleware.
type AdminHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
	events     *repository.AuthEventRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(logger *slog.Logger, repo *repository.Repository, events *repository.AuthEventRepository) *AdminHandler {
	return &AdminHandler{
		logger:     logger,
		repository: repo,
		events:     events,
	}
}

// ListUsers handles GET /v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.repository.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users")
		return
	}

	responses := make([]model.UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, user.ToResponse())
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": responses})
}

// SetUserActive handles POST /v1/admin/users/{userID}/activate and
// POST /v1/admin/users/{userID}/deactivate.
// Deactivation is immediate: the resolver rechecks the flag on every
// request, so existing sessions and keys stop working at once.
func (h *AdminHandler) SetUserActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		principal := auth.MustPrincipalFromContext(ctx)

		userID := chi.URLParam(r, "userID")
		if userID == "" {
			writeErrorJSON(w, http.StatusBadRequest, "INVALID_REQUEST", "User ID is required")
			return
		}

		// Admins cannot lock themselves out.
		if !active && userID == principal.UserID {
			writeErrorJSON(w, http.StatusConflict, "SELF_DEACTIVATION", "Cannot deactivate your own account")
			return
		}

		if err := h.repository.SetUserActive(ctx, userID, active); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				writeErrorJSON(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
				return
			}
			h.logger.Error("failed to update user active flag", slog.String("error", err.Error()))
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user")
			return
		}

		h.logger.Info("user active flag updated",
			slog.String("target_user_id", userID),
			slog.Bool("active", active),
			slog.String("admin_user_id", principal.UserID),
		)

		w.WriteHeader(http.StatusNoContent)
	}
}

// SetUserAdmin handles PATCH /v1/admin/users/{userID}/admin
func (h *AdminHandler) SetUserAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_REQUEST", "User ID is required")
		return
	}

	var req struct {
		IsAdmin bool `json:"is_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if !req.IsAdmin && userID == principal.UserID {
		writeErrorJSON(w, http.StatusConflict, "SELF_DEMOTION", "Cannot revoke your own admin access")
		return
	}

	if err := h.repository.SetUserAdmin(ctx, userID, req.IsAdmin); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeErrorJSON(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("failed to update user admin flag", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user")
		return
	}

	h.logger.Info("user admin flag updated",
		slog.String("target_user_id", userID),
		slog.Bool("is_admin", req.IsAdmin),
		slog.String("admin_user_id", principal.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// ListAuthEvents handles GET /v1/admin/auth-events
// Returns the most recent authentication events, newest first.
func (h *AdminHandler) ListAuthEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			writeValidationError(w, "limit", "must be an integer between 1 and 1000")
			return
		}
		limit = parsed
	}

	events, err := h.events.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list auth events", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list auth events")
		return
	}

	if events == nil {
		events = []*model.AuthEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
