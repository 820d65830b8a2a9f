package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// MetricsAuthMiddleware guards /metrics with HTTP basic auth. Credentials
// are compared as SHA-256 digests so both sides have equal length and the
// comparison time does not depend on the configured values.
type MetricsAuthMiddleware struct {
	userHash [sha256.Size]byte
	passHash [sha256.Size]byte
	enabled  bool
}

// NewMetricsAuthMiddleware returns a pass-through middleware when both
// username and password are empty.
func NewMetricsAuthMiddleware(username, password string) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		userHash: sha256.Sum256([]byte(username)),
		passHash: sha256.Sum256([]byte(password)),
		enabled:  username != "" || password != "",
	}
}

// Enabled reports whether scrapes must authenticate.
func (m *MetricsAuthMiddleware) Enabled() bool {
	return m.enabled
}

func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.enabled && !m.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MetricsAuthMiddleware) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userHash := sha256.Sum256([]byte(user))
	passHash := sha256.Sum256([]byte(pass))

	// Evaluate both so a wrong username costs the same as a wrong password.
	userOK := subtle.ConstantTimeCompare(userHash[:], m.userHash[:])
	passOK := subtle.ConstantTimeCompare(passHash[:], m.passHash[:])
	return userOK&passOK == 1
}
