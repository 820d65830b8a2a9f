// Package middleware contains HTTP middleware for the ResumeZen API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/resumezen/internal/auth"
	"github.com/DukeRupert/resumezen/internal/handler"
	"github.com/DukeRupert/resumezen/internal/service"
)

// =============================================================================
// Auth Middleware Configuration
// =============================================================================

// AuthMiddleware provides authentication middleware functionality.
//
// This struct holds dependencies needed by auth middleware functions.
// Create one instance and use its methods as middleware.
type AuthMiddleware struct {
	userService service.UserService
	logger      *slog.Logger
	isSecure    bool // Whether to set Secure flag on cookies (true in production)
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(userService service.UserService, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// =============================================================================
// WithUser Middleware
// =============================================================================

// WithUser loads the user from the bearer token or session cookie and
// stores it in the request context. It always continues to the next
// handler; use RequireUser to reject anonymous requests.
//
// The user can be retrieved in handlers using:
//
//	user := auth.GetUser(r.Context())
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.userService.GetBySessionToken(r.Context(), token)
		if err != nil {
			// Invalid or expired session - clear the cookie and continue
			if _, cookieErr := r.Cookie(auth.SessionCookieName); cookieErr == nil {
				auth.ClearSessionCookie(w, m.isSecure)
			}
			next.ServeHTTP(w, r)
			return
		}

		noteUser(r.Context(), user.ID)
		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser answers 401 unless WithUser found a user.
//
// IMPORTANT: This middleware must be used AFTER WithUser in the middleware chain.
//
//	mux.Handle("GET /plan/mine", authMw.WithUser(authMw.RequireUser(h)))
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw, authMw.WithUser, authMw.RequireUser)
//	mux.Handle("GET /plan/mine", stack(plansHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
)
