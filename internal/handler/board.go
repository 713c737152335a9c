package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/authz"
	"github.com/boardkit/boardkit/internal/model"
	"github.com/boardkit/boardkit/internal/repository"
)

const maxBoardNameLength = 200

// BoardHandler handles board endpoints. Every operation except listing
// goes through the authorization engine with the board as resource.
type BoardHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
	engine     *authz.Engine
}

// NewBoardHandler creates a new BoardHandler.
func NewBoardHandler(logger *slog.Logger, repo *repository.Repository, engine *authz.Engine) *BoardHandler {
	return &BoardHandler{
		logger:     logger,
		repository: repo,
		engine:     engine,
	}
}

// CreateBoard handles POST /v1/boards
// A board is owned either by the caller personally or by a group the
// caller can write in, never both.
func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	var req model.BoardCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Name == "" || len(req.Name) > maxBoardNameLength {
		writeValidationError(w, "name", "must be 1-200 characters")
		return
	}

	now := time.Now()
	board := &model.Board{
		ID:          ulid.Make().String(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if req.GroupID != "" {
		group, err := h.repository.GetGroupByID(ctx, req.GroupID)
		if err != nil {
			if errors.Is(err, repository.ErrGroupNotFound) {
				writeGroupNotFound(w)
				return
			}
			h.logger.Error("failed to load group", slog.String("error", err.Error()))
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create board")
			return
		}
		// Creating a board in a group requires write access there.
		if err := h.engine.Authorize(ctx, principal, authz.GroupResource(group), authz.ActionEdit); err != nil {
			h.writeAuthzError(w, err)
			return
		}
		board.GroupID = &group.ID
	} else {
		userID := principal.UserID
		board.OwnerID = &userID
	}

	if err := h.repository.CreateBoard(ctx, board); err != nil {
		h.logger.Error("failed to create board", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create board")
		return
	}

	h.logger.Info("board created",
		slog.String("board_id", board.ID),
		slog.String("user_id", principal.UserID),
	)

	writeJSON(w, http.StatusCreated, board)
}

// ListBoards handles GET /v1/boards
func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	boards, err := h.repository.ListBoardsForUser(ctx, principal.UserID)
	if err != nil {
		h.logger.Error("failed to list boards", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list boards")
		return
	}

	if boards == nil {
		boards = []*model.Board{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

// GetBoard handles GET /v1/boards/{boardID}
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, ok := h.loadAuthorizedBoard(w, r, authz.ActionView)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// UpdateBoard handles PATCH /v1/boards/{boardID}
func (h *BoardHandler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	board, ok := h.loadAuthorizedBoard(w, r, authz.ActionEdit)
	if !ok {
		return
	}

	var req model.BoardUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	name := board.Name
	description := board.Description
	if req.Name != nil {
		if *req.Name == "" || len(*req.Name) > maxBoardNameLength {
			writeValidationError(w, "name", "must be 1-200 characters")
			return
		}
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}

	if err := h.repository.UpdateBoard(ctx, board.ID, name, description); err != nil {
		if errors.Is(err, repository.ErrBoardNotFound) {
			writeBoardNotFound(w)
			return
		}
		h.logger.Error("failed to update board", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update board")
		return
	}

	board.Name = name
	board.Description = description
	writeJSON(w, http.StatusOK, board)
}

// DeleteBoard handles DELETE /v1/boards/{boardID}
func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	board, ok := h.loadAuthorizedBoard(w, r, authz.ActionDelete)
	if !ok {
		return
	}

	if err := h.repository.DeleteBoard(ctx, board.ID); err != nil {
		if errors.Is(err, repository.ErrBoardNotFound) {
			writeBoardNotFound(w)
			return
		}
		h.logger.Error("failed to delete board", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete board")
		return
	}

	h.logger.Info("board deleted",
		slog.String("board_id", board.ID),
		slog.String("user_id", principal.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// loadAuthorizedBoard fetches the board from the URL and authorizes the
// action against it. Unauthorized boards read as 404 to prevent probing
// for board IDs.
func (h *BoardHandler) loadAuthorizedBoard(w http.ResponseWriter, r *http.Request, action authz.Action) (*model.Board, bool) {
	ctx := r.Context()
	principal := auth.MustPrincipalFromContext(ctx)

	boardID := chi.URLParam(r, "boardID")
	if boardID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_REQUEST", "Board ID is required")
		return nil, false
	}

	board, err := h.repository.GetBoardByID(ctx, boardID)
	if err != nil {
		if errors.Is(err, repository.ErrBoardNotFound) {
			writeBoardNotFound(w)
			return nil, false
		}
		h.logger.Error("failed to load board", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load board")
		return nil, false
	}

	if err := h.engine.Authorize(ctx, principal, authz.BoardResource(board), action); err != nil {
		if errors.Is(err, authz.ErrForbidden) && action == authz.ActionView {
			writeBoardNotFound(w)
			return nil, false
		}
		h.writeAuthzError(w, err)
		return nil, false
	}

	return board, true
}

// writeAuthzError maps an authorization failure to a response.
func (h *BoardHandler) writeAuthzError(w http.ResponseWriter, err error) {
	if errors.Is(err, authz.ErrForbidden) {
		writeErrorJSON(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
		return
	}
	h.logger.Error("authorization check failed", slog.String("error", err.Error()))
	writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authorization check failed")
}

// writeBoardNotFound writes the uniform not-found response for boards.
func writeBoardNotFound(w http.ResponseWriter) {
	writeErrorJSON(w, http.StatusNotFound, "BOARD_NOT_FOUND", "Board not found")
}
