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
	"github.com/boardkit/boardkit/internal/authz"
	"github.com/boardkit/boardkit/internal/model"
	"github.com/boardkit/boardkit/internal/repository"
)

const (
	minGroupNameLength = 1
	maxGroupNameLength = 100
)

// GroupHandler handles group and membership endpoints.
type GroupHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
	engine     *authz.Engine
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(logger *slog.Logger, repo *repository.Repository, engine *authz.Engine) *GroupHandler {
	return &GroupHandler{
		logger:     logger,
		repository: repo,
		engine:     engine,
	}
}

// CreateGroup handles POST /v1/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	var req model.GroupCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if len(req.Name) < minGroupNameLength || len(req.Name) > maxGroupNameLength {
		writeValidationError(w, "name", "must be 1-100 characters")
		return
	}

	now := time.Now()
	group := &model.Group{
		ID:          ulid.Make().String(),
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   principal.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.repository.CreateGroup(ctx, group); err != nil {
		h.logger.Error("failed to create group", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create group")
		return
	}

	h.logger.Info("group created",
		slog.String("group_id", group.ID),
		slog.String("user_id", principal.UserID),
	)

	writeJSON(w, http.StatusCreated, group)
}

// ListGroups handles GET /v1/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	groups, err := h.repository.ListGroupsForUser(ctx, principal.UserID)
	if err != nil {
		h.logger.Error("failed to list groups", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list groups")
		return
	}

	if groups == nil {
		groups = []*model.Group{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// GetGroup handles GET /v1/groups/{groupID}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	group, ok := h.loadAuthorizedGroup(w, r, principal, authz.ActionView)
	if !ok {
		return
	}

	members, err := h.repository.ListGroupMembers(ctx, group.ID)
	if err != nil {
		h.logger.Error("failed to list members", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load group")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"group":   group,
		"members": members,
	})
}

// DeleteGroup handles DELETE /v1/groups/{groupID}
// Boards owned by the group are detached, not destroyed.
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	group, ok := h.loadAuthorizedGroup(w, r, principal, authz.ActionDelete)
	if !ok {
		return
	}

	if err := h.repository.DeleteGroup(ctx, group.ID); err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			writeGroupNotFound(w)
			return
		}
		h.logger.Error("failed to delete group", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete group")
		return
	}

	h.logger.Info("group deleted",
		slog.String("group_id", group.ID),
		slog.String("user_id", principal.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// AddMember handles POST /v1/groups/{groupID}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	group, ok := h.loadAuthorizedGroup(w, r, principal, authz.ActionManageMembers)
	if !ok {
		return
	}

	var req model.GroupMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if !slices.Contains(model.ValidRoles, req.Role) {
		writeValidationError(w, "role", "must be one of member, admin, owner")
		return
	}

	// Only owners may grant ownership.
	if req.Role == model.RoleOwner {
		if ok := h.requireOwner(w, ctx, group.ID, principal); !ok {
			return
		}
	}

	if _, err := h.repository.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeErrorJSON(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("failed to load user", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add member")
		return
	}

	membership := &model.GroupMembership{
		ID:        ulid.Make().String(),
		GroupID:   group.ID,
		UserID:    req.UserID,
		Role:      req.Role,
		CreatedAt: time.Now(),
	}

	if err := h.repository.AddGroupMember(ctx, membership); err != nil {
		if errors.Is(err, repository.ErrMemberExists) {
			writeErrorJSON(w, http.StatusConflict, "MEMBER_EXISTS", "User is already a member")
			return
		}
		h.logger.Error("failed to add member", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add member")
		return
	}

	h.logger.Info("group member added",
		slog.String("group_id", group.ID),
		slog.String("member_id", req.UserID),
		slog.String("role", req.Role),
		slog.String("user_id", principal.UserID),
	)

	writeJSON(w, http.StatusCreated, membership)
}

// UpdateMemberRole handles PATCH /v1/groups/{groupID}/members/{userID}
func (h *GroupHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	group, ok := h.loadAuthorizedGroup(w, r, principal, authz.ActionManageMembers)
	if !ok {
		return
	}

	memberID := chi.URLParam(r, "userID")
	if memberID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_REQUEST", "User ID is required")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if !slices.Contains(model.ValidRoles, req.Role) {
		writeValidationError(w, "role", "must be one of member, admin, owner")
		return
	}

	// Role changes that touch ownership require an owner.
	if req.Role == model.RoleOwner {
		if ok := h.requireOwner(w, ctx, group.ID, principal); !ok {
			return
		}
	}
	current, err := h.repository.GetGroupMembership(ctx, group.ID, memberID)
	if err != nil {
		h.logger.Error("failed to load membership", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update role")
		return
	}
	if current == nil {
		writeErrorJSON(w, http.StatusNotFound, "MEMBER_NOT_FOUND", "Membership not found")
		return
	}
	if current.Role == model.RoleOwner {
		if ok := h.requireOwner(w, ctx, group.ID, principal); !ok {
			return
		}
	}

	if err := h.repository.UpdateGroupMemberRole(ctx, group.ID, memberID, req.Role); err != nil {
		switch {
		case errors.Is(err, repository.ErrMembershipNotFound):
			writeErrorJSON(w, http.StatusNotFound, "MEMBER_NOT_FOUND", "Membership not found")
		case errors.Is(err, repository.ErrLastOwner):
			writeErrorJSON(w, http.StatusConflict, "LAST_OWNER", "Group must retain at least one owner")
		default:
			h.logger.Error("failed to update role", slog.String("error", err.Error()))
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update role")
		}
		return
	}

	h.logger.Info("group member role updated",
		slog.String("group_id", group.ID),
		slog.String("member_id", memberID),
		slog.String("role", req.Role),
		slog.String("user_id", principal.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember handles DELETE /v1/groups/{groupID}/members/{userID}
// Members may remove themselves; removing others requires the
// manage-members capability. The last owner can never leave.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	groupID := chi.URLParam(r, "groupID")
	memberID := chi.URLParam(r, "userID")
	if groupID == "" || memberID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_REQUEST", "Group ID and user ID are required")
		return
	}

	group, err := h.repository.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			writeGroupNotFound(w)
			return
		}
		h.logger.Error("failed to load group", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove member")
		return
	}

	// Self-removal skips the capability check.
	if memberID != principal.UserID {
		if err := h.engine.Authorize(ctx, principal, authz.GroupResource(group), authz.ActionManageMembers); err != nil {
			h.writeAuthzError(w, err)
			return
		}
	}

	if err := h.repository.RemoveGroupMember(ctx, group.ID, memberID); err != nil {
		switch {
		case errors.Is(err, repository.ErrMembershipNotFound):
			writeErrorJSON(w, http.StatusNotFound, "MEMBER_NOT_FOUND", "Membership not found")
		case errors.Is(err, repository.ErrLastOwner):
			writeErrorJSON(w, http.StatusConflict, "LAST_OWNER", "Group must retain at least one owner")
		default:
			h.logger.Error("failed to remove member", slog.String("error", err.Error()))
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove member")
		}
		return
	}

	h.logger.Info("group member removed",
		slog.String("group_id", group.ID),
		slog.String("member_id", memberID),
		slog.String("user_id", principal.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// loadAuthorizedGroup fetches the group from the URL and authorizes the
// action against it. Writes the error response itself on failure.
func (h *GroupHandler) loadAuthorizedGroup(w http.ResponseWriter, r *http.Request, principal *model.Principal, action authz.Action) (*model.Group, bool) {
	ctx := r.Context()

	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_REQUEST", "Group ID is required")
		return nil, false
	}

	group, err := h.repository.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			writeGroupNotFound(w)
			return nil, false
		}
		h.logger.Error("failed to load group", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load group")
		return nil, false
	}

	if err := h.engine.Authorize(ctx, principal, authz.GroupResource(group), action); err != nil {
		h.writeAuthzError(w, err)
		return nil, false
	}

	return group, true
}

// requireOwner checks that the caller holds the owner role (or is an
// administrator).
func (h *GroupHandler) requireOwner(w http.ResponseWriter, ctx context.Context, groupID string, principal *model.Principal) bool {
	if principal.IsAdmin {
		return true
	}
	membership, err := h.repository.GetGroupMembership(ctx, groupID, principal.UserID)
	if err != nil {
		h.logger.Error("failed to load membership", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check permissions")
		return false
	}
	if membership == nil || membership.Role != model.RoleOwner {
		writeErrorJSON(w, http.StatusForbidden, "FORBIDDEN", "Only group owners may manage ownership")
		return false
	}
	return true
}

// writeAuthzError maps an authorization failure to a response.
func (h *GroupHandler) writeAuthzError(w http.ResponseWriter, err error) {
	if errors.Is(err, authz.ErrForbidden) {
		writeErrorJSON(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
		return
	}
	h.logger.Error("authorization check failed", slog.String("error", err.Error()))
	writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authorization check failed")
}

// writeGroupNotFound writes the uniform not-found response for groups.
func writeGroupNotFound(w http.ResponseWriter) {
	writeErrorJSON(w, http.StatusNotFound, "GROUP_NOT_FOUND", "Group not found")
}
