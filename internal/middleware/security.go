package middleware

import (
	"net/http"
)

// apiSecurityHeaders are set on every response. The API only returns JSON
// and documents, so nothing should frame, script or cache them.
var apiSecurityHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"X-XSS-Protection", "1; mode=block"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
	// Plans, credits and analyses are per-user.
	{"Cache-Control", "no-store"},
}

// hstsValue pins HTTPS for a year.
const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeadersMiddleware adds HTTP security headers to all responses.
type SecurityHeadersMiddleware struct {
	isSecure bool
}

// NewSecurityHeadersMiddleware enables HSTS when isSecure is true, which
// should only be the case behind TLS.
func NewSecurityHeadersMiddleware(isSecure bool) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{
		isSecure: isSecure,
	}
}

func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range apiSecurityHeaders {
			h.Set(kv[0], kv[1])
		}
		if m.isSecure {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		next.ServeHTTP(w, r)
	})
}
