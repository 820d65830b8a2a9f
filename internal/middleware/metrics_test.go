package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetricsAuthMiddleware(t *testing.T) {
	basic := func(raw string) string {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	}

	tests := []struct {
		name       string
		username   string
		password   string
		authHeader string
		wantStatus int
	}{
		{"valid credentials", "scraper", "s3cret", basic("scraper:s3cret"), http.StatusOK},
		{"no credentials", "scraper", "s3cret", "", http.StatusUnauthorized},
		{"wrong username", "scraper", "s3cret", basic("admin:s3cret"), http.StatusUnauthorized},
		{"wrong password", "scraper", "s3cret", basic("scraper:nope"), http.StatusUnauthorized},
		{"empty credentials", "scraper", "s3cret", basic(":"), http.StatusUnauthorized},
		{"malformed header", "scraper", "s3cret", "Basic not-base64!", http.StatusUnauthorized},
		{"bearer scheme", "scraper", "s3cret", "Bearer scraper:s3cret", http.StatusUnauthorized},
		{"header injection", "scraper", "s3cret", basic("scraper:s3cret\r\nX-Injected: 1"), http.StatusUnauthorized},
		{"disabled passes anonymous scrape", "", "", "", http.StatusOK},
		{"password only still enforced", "", "s3cret", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewMetricsAuthMiddleware(tt.username, tt.password)
			called := false
			wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.Write([]byte("resumezen_http_requests_total 1"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("next called = %v, want %v", called, tt.wantStatus == http.StatusOK)
			}
			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate challenge")
			}
		})
	}
}

func TestMetricsAuthMiddleware_Enabled(t *testing.T) {
	if NewMetricsAuthMiddleware("", "").Enabled() {
		t.Error("empty credentials should disable auth")
	}
	if !NewMetricsAuthMiddleware("scraper", "").Enabled() {
		t.Error("a username alone should enable auth")
	}
}
