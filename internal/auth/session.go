package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	// SessionCookieName is the name of the cookie that stores the session token.
	SessionCookieName = "resumezen_session"

	// SessionCookiePath ensures the cookie is sent with all requests.
	SessionCookiePath = "/"
)

// TokenFromRequest returns the session token from the Authorization header
// ("Bearer <token>") or, failing that, the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SetSessionCookie sets the session cookie on the response.
//
// Cookie Settings:
// - HttpOnly: true - Prevents JavaScript access (XSS protection)
// - Secure: configurable - Set true in production (HTTPS only)
// - SameSite: Lax - Prevents CSRF while allowing normal navigation
// - MaxAge: the session duration
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     SessionCookiePath,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie from the client.
func ClearSessionCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     SessionCookiePath,
		MaxAge:   -1, // Delete immediately
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
