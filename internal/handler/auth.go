package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/csrf"
	"github.com/boardkit/boardkit/internal/model"
	"github.com/boardkit/boardkit/internal/repository"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	minUsernameLength = 3
	maxUsernameLength = 50
)

// dummyPasswordHash is verified against when the user does not exist,
// keeping login latency independent of account existence.
var dummyPasswordHash = func() string {
	h, err := auth.HashSecret("boardkit-timing-pad")
	if err != nil {
		panic(err)
	}
	return h
}()

// AuthHandler handles registration, login, and session endpoints.
type AuthHandler struct {
	logger        *slog.Logger
	repository    *repository.Repository
	tokens        *auth.TokenService
	csrf          *csrf.Guard
	secureCookies bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(logger *slog.Logger, repo *repository.Repository, tokens *auth.TokenService, guard *csrf.Guard, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		logger:        logger,
		repository:    repo,
		tokens:        tokens,
		csrf:          guard,
		secureCookies: secureCookies,
	}
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if len(req.Username) < minUsernameLength || len(req.Username) > maxUsernameLength {
		writeValidationError(w, "username", "must be 3-50 characters")
		return
	}
	if !isValidUsername(req.Username) {
		writeValidationError(w, "username", "may contain only letters, digits, underscores, and hyphens")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeValidationError(w, "email", "must be a valid email address")
		return
	}
	if len(req.Password) < minPasswordLength || len(req.Password) > maxPasswordLength {
		writeValidationError(w, "password", "must be 8-128 characters")
		return
	}

	hash, err := auth.HashSecret(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register")
		return
	}

	now := time.Now()
	user := &model.User{
		ID:           ulid.Make().String(),
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hash,
		FullName:     req.FullName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.repository.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			writeErrorJSON(w, http.StatusConflict, "USERNAME_TAKEN", "Username already exists")
		case errors.Is(err, repository.ErrEmailExists):
			writeErrorJSON(w, http.StatusConflict, "EMAIL_TAKEN", "Email already exists")
		default:
			h.logger.Error("failed to create user", slog.String("error", err.Error()))
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register")
		}
		return
	}

	h.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	writeJSON(w, http.StatusCreated, user.ToResponse())
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	user, err := h.repository.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			h.logger.Error("failed to load user for login", slog.String("error", err.Error()))
		}
		// Burn the verification cost anyway so unknown usernames are
		// indistinguishable from wrong passwords.
		_, _ = auth.VerifySecret(req.Password, dummyPasswordHash)
		writeLoginError(w)
		return
	}

	match, err := auth.VerifySecret(req.Password, user.PasswordHash)
	if err != nil || !match {
		writeLoginError(w)
		return
	}

	if !user.IsActive {
		writeLoginError(w)
		return
	}

	token, expiresAt, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to log in")
		return
	}

	csrfToken := h.csrf.Issue()
	h.setSessionCookies(w, token, csrfToken, expiresAt)

	h.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	writeJSON(w, http.StatusOK, model.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		CSRFToken:   csrfToken,
		User:        user.ToResponse(),
	})
}

// Logout handles POST /v1/auth/logout
// Sessions are stateless; logout clears the browser cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.PrincipalFromContext(ctx)
	if principal == nil {
		writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	user, err := h.repository.GetUserByID(ctx, principal.UserID)
	if err != nil {
		h.logger.Error("failed to load current user", slog.String("error", err.Error()))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user.ToResponse())
}

// setSessionCookies writes the session and CSRF cookies.
// The session cookie is HttpOnly; the CSRF cookie must be readable by
// the frontend so it can echo the token in the request header.
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, token, csrfToken string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrf.CookieName,
		Value:    csrfToken,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: false,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookies expires both cookies.
func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrf.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeLoginError writes a uniform 401 for all login failures.
func writeLoginError(w http.ResponseWriter) {
	writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid username or password")
}

// isValidUsername checks the allowed username alphabet.
func isValidUsername(username string) bool {
	for i := 0; i < len(username); i++ {
		ch := username[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-' {
			continue
		}
		return false
	}
	return true
}
