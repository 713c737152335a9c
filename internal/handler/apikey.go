package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/model"
	"github.com/boardkit/boardkit/internal/repository"
)

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
	now        func() time.Time
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(logger *slog.Logger, repo *repository.Repository) *APIKeyHandler {
	return &APIKeyHandler{
		logger:     logger,
		repository: repo,
		now:        time.Now,
	}
}

// CreateAPIKey handles POST /v1/api-keys
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.PrincipalFromContext(ctx)
	if principal == nil {
		writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req model.APIKeyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	for _, scope := range req.Scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			writeErrorJSON(w, http.StatusBadRequest, "INVALID_SCOPE",
				"Invalid scope: "+scope+". Valid scopes: read, write, admin, docs")
			return
		}
	}

	// Only administrators may mint admin-scoped keys.
	if slices.Contains(req.Scopes, model.ScopeAdmin) && !principal.IsAdmin {
		writeErrorJSON(w, http.StatusForbidden, "FORBIDDEN", "Only administrators may create admin-scoped keys")
		return
	}

	// Default to read scope if none provided
	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeRead}
	}

	if req.ExpiresIn < 0 {
		writeValidationError(w, "expires_in", "must not be negative")
		return
	}

	generatedKey, err := auth.GenerateAPIKey()
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}

	now := h.now()
	apiKey := &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    principal.UserID,
		Name:      req.Name,
		KeyHash:   generatedKey.Hash,
		KeyPrefix: generatedKey.Prefix,
		Scopes:    req.Scopes,
		CreatedAt: now,
	}
	if req.ExpiresIn > 0 {
		expiresAt := now.Add(time.Duration(req.ExpiresIn) * time.Second)
		apiKey.ExpiresAt = &expiresAt
	}

	if err := h.repository.CreateAPIKey(ctx, apiKey); err != nil {
		h.logger.Error("failed to create API key", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create API key")
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", apiKey.ID),
		slog.String("key_prefix", apiKey.KeyPrefix),
		slog.String("user_id", apiKey.UserID),
	)

	// Return response with plaintext key (shown once only!)
	writeJSON(w, http.StatusCreated, model.APIKeyCreateResponse{
		ID:        apiKey.ID,
		Key:       generatedKey.Plaintext,
		Name:      apiKey.Name,
		KeyPrefix: apiKey.KeyPrefix,
		Scopes:    apiKey.Scopes,
		ExpiresAt: apiKey.ExpiresAt,
		CreatedAt: apiKey.CreatedAt,
	})
}

// ListAPIKeys handles GET /v1/api-keys
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.PrincipalFromContext(ctx)
	if principal == nil {
		writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keys, err := h.repository.ListAPIKeysByUserID(ctx, principal.UserID)
	if err != nil {
		h.logger.Error("failed to list API keys", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list API keys")
		return
	}

	// Convert to response format (without secrets)
	responses := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		responses = append(responses, key.ToResponse())
	}

	writeJSON(w, http.StatusOK, map[string]any{"keys": responses})
}

// RevokeAPIKey handles DELETE /v1/api-keys/{keyID}
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.PrincipalFromContext(ctx)
	if principal == nil {
		writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keyID := chi.URLParam(r, "keyID")
	if keyID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_REQUEST", "Key ID is required")
		return
	}

	key, err := h.lookupOwnedKey(ctx, keyID, principal)
	if err != nil {
		writeKeyNotFound(w)
		return
	}

	if key.IsRevoked() {
		writeKeyNotFound(w)
		return
	}

	if err := h.repository.RevokeAPIKey(ctx, keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			writeKeyNotFound(w)
			return
		}
		h.logger.Error("failed to revoke API key", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke API key")
		return
	}

	h.logger.Info("API key revoked",
		slog.String("key_id", keyID),
		slog.String("user_id", principal.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// RotateAPIKey handles POST /v1/api-keys/{keyID}/rotate
// The old key is revoked and a replacement with the same name, scopes,
// and remaining lifetime is issued in one transaction.
func (h *APIKeyHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.PrincipalFromContext(ctx)
	if principal == nil {
		writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keyID := chi.URLParam(r, "keyID")
	if keyID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_REQUEST", "Key ID is required")
		return
	}

	oldKey, err := h.lookupOwnedKey(ctx, keyID, principal)
	if err != nil {
		writeKeyNotFound(w)
		return
	}

	now := h.now()
	if oldKey.IsRevoked() || oldKey.IsExpired(now) {
		writeKeyNotFound(w)
		return
	}

	generatedKey, err := auth.GenerateAPIKey()
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}

	newKey := &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    oldKey.UserID,
		Name:      oldKey.Name,
		KeyHash:   generatedKey.Hash,
		KeyPrefix: generatedKey.Prefix,
		Scopes:    oldKey.Scopes,
		ExpiresAt: oldKey.ExpiresAt,
		CreatedAt: now,
	}

	if err := h.repository.RotateAPIKey(ctx, oldKey.ID, newKey); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			writeKeyNotFound(w)
			return
		}
		h.logger.Error("failed to rotate API key", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rotate API key")
		return
	}

	h.logger.Info("API key rotated",
		slog.String("old_key_id", oldKey.ID),
		slog.String("new_key_id", newKey.ID),
		slog.String("user_id", principal.UserID),
	)

	writeJSON(w, http.StatusOK, model.APIKeyRotateResponse{
		OldKeyID:        oldKey.ID,
		OldKeyRevokedAt: now,
		NewKey: model.APIKeyCreateResponse{
			ID:        newKey.ID,
			Key:       generatedKey.Plaintext,
			Name:      newKey.Name,
			KeyPrefix: newKey.KeyPrefix,
			Scopes:    newKey.Scopes,
			ExpiresAt: newKey.ExpiresAt,
			CreatedAt: newKey.CreatedAt,
		},
	})
}

// lookupOwnedKey fetches a key and checks ownership. Admins may manage
// any key; everyone else only their own.
func (h *APIKeyHandler) lookupOwnedKey(ctx context.Context, keyID string, principal *model.Principal) (*model.APIKey, error) {
	key, err := h.repository.GetAPIKeyByID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if key.UserID != principal.UserID && !principal.IsAdmin {
		// Treat foreign keys as missing to prevent enumeration.
		return nil, repository.ErrAPIKeyNotFound
	}
	return key, nil
}

// writeKeyNotFound writes the uniform not-found response for keys.
func writeKeyNotFound(w http.ResponseWriter) {
	writeErrorJSON(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found or already revoked")
}
