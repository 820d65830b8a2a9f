package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/handler"
)

// InternalTokenHeader carries the shared secret of trusted callers.
const InternalTokenHeader = "X-Internal-Token"

// InternalAuthMiddleware guards routes that only trusted services may call,
// such as direct credit mutations. With no token configured every request
// is refused.
type InternalAuthMiddleware struct {
	tokenHash [sha256.Size]byte
	enabled   bool
	logger    *slog.Logger
}

func NewInternalAuthMiddleware(token string, logger *slog.Logger) *InternalAuthMiddleware {
	return &InternalAuthMiddleware{
		tokenHash: sha256.Sum256([]byte(token)),
		enabled:   token != "",
		logger:    logger,
	}
}

// Enabled reports whether a token is configured.
func (m *InternalAuthMiddleware) Enabled() bool {
	return m.enabled
}

// Require answers 403 unless the request carries the configured token.
func (m *InternalAuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(r) {
			handler.ErrorResponse(w, r, m.logger, domain.Forbidden("InternalAuth", "This endpoint is restricted to internal callers."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *InternalAuthMiddleware) authorized(r *http.Request) bool {
	if !m.enabled {
		return false
	}
	got := r.Header.Get(InternalTokenHeader)
	if got == "" {
		return false
	}
	hash := sha256.Sum256([]byte(got))
	return subtle.ConstantTimeCompare(hash[:], m.tokenHash[:]) == 1
}
