// Package handler contains the JSON HTTP handlers for ResumeZen.
//
// This file implements registration, login and logout.
//
// Routes handled:
//   - POST /auth/register -> Register
//   - POST /auth/login    -> Login
//   - POST /auth/logout   -> Logout
//   - GET  /auth/me       -> Me
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/resumezen/internal/auth"
	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/service"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userService service.UserService
	logger      *slog.Logger
	isSecure    bool // Whether to set Secure flag on cookies (true in production)
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService service.UserService, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// RegisterRoutes registers auth routes. Register and login are wrapped in
// limit; me and logout require a user.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, limitRegister, limitLogin, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /auth/register", limitRegister(http.HandlerFunc(h.Register)))
	mux.Handle("POST /auth/login", limitLogin(http.HandlerFunc(h.Login)))
	mux.Handle("POST /auth/logout", http.HandlerFunc(h.Logout))
	mux.Handle("GET /auth/me", requireUser(http.HandlerFunc(h.Me)))
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Register creates an account. It does not log the user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// Login verifies credentials, sets the session cookie and returns the raw
// token for clients that prefer a bearer header.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Login"

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	fields := make(map[string]string)
	if email == "" {
		fields["email"] = "Email is required"
	}
	if req.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		ErrorResponse(w, r, h.logger, &domain.ValidationError{Op: op, Fields: fields})
		return
	}

	result, err := h.userService.Login(r.Context(), email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	duration := h.userService.SessionDuration()
	auth.SetSessionCookie(w, result.Token, duration, h.isSecure)

	h.logger.Info("user logged in", "user_id", result.User.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		User:      result.User,
		Token:     result.Token,
		ExpiresAt: time.Now().Add(duration),
	})
}

// Logout invalidates the session. It is idempotent: a request without a
// session still clears the cookie and succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if err := h.userService.Logout(r.Context(), token); err != nil {
			h.logger.Warn("failed to invalidate session in database", "error", err)
		}
	}

	auth.ClearSessionCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
