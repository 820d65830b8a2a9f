package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
)

// logRequest runs one request through the logging middleware and returns
// the decoded log line, or nil when nothing was logged.
func logRequest(t *testing.T, req *http.Request, status int) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	wrapped := NewRequestLoggingMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if buf.Len() == 0 {
		return nil, rec
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry, rec
}

func TestRequestLoggingMiddleware_Fields(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		target    string
		headers   map[string]string
		status    int
		wantLevel string
		wantPath  string
		wantIP    string
	}{
		{
			name:      "success",
			method:    http.MethodGet,
			target:    "/plan/mine",
			status:    http.StatusOK,
			wantLevel: "INFO",
			wantPath:  "/plan/mine",
			wantIP:    "192.168.1.1",
		},
		{
			name:      "client error stays info",
			method:    http.MethodGet,
			target:    "/resume/history/abc",
			status:    http.StatusNotFound,
			wantLevel: "INFO",
			wantPath:  "/resume/history/abc",
			wantIP:    "192.168.1.1",
		},
		{
			name:      "server error is warn",
			method:    http.MethodPost,
			target:    "/resume/analyze",
			status:    http.StatusInternalServerError,
			wantLevel: "WARN",
			wantPath:  "/resume/analyze",
			wantIP:    "192.168.1.1",
		},
		{
			name:      "forwarded client ip",
			method:    http.MethodGet,
			target:    "/plans",
			headers:   map[string]string{"X-Forwarded-For": "203.0.113.195"},
			status:    http.StatusOK,
			wantLevel: "INFO",
			wantPath:  "/plans",
			wantIP:    "203.0.113.195",
		},
		{
			name:      "checkout session id redacted",
			method:    http.MethodGet,
			target:    "/plans?checkout=success&session_id=cs_abc123secret",
			status:    http.StatusOK,
			wantLevel: "INFO",
			wantPath:  "/plans?checkout=success&session_id=[REDACTED]",
			wantIP:    "192.168.1.1",
		},
		{
			name:      "token redacted",
			method:    http.MethodGet,
			target:    "/auth/me?token=secrettoken123&x=1",
			status:    http.StatusOK,
			wantLevel: "INFO",
			wantPath:  "/auth/me?token=[REDACTED]&x=1",
			wantIP:    "192.168.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.RemoteAddr = "192.168.1.1:12345"
			req.Header.Set("User-Agent", "resumezen-test/1.0")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			entry, _ := logRequest(t, req, tt.status)
			if entry == nil {
				t.Fatal("expected a log line")
			}

			checks := map[string]any{
				"level":      tt.wantLevel,
				"method":     tt.method,
				"path":       tt.wantPath,
				"status":     float64(tt.status),
				"ip":         tt.wantIP,
				"user_agent": "resumezen-test/1.0",
			}
			for key, want := range checks {
				if entry[key] != want {
					t.Errorf("%s = %v, want %v", key, entry[key], want)
				}
			}
			if _, ok := entry["duration_ms"]; !ok {
				t.Error("log line should carry duration_ms")
			}
		})
	}
}

func TestRequestLoggingMiddleware_SkipsNoisyPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics", "/files/resumes/u/a.pdf"} {
		t.Run(path, func(t *testing.T) {
			entry, rec := logRequest(t, httptest.NewRequest(http.MethodGet, path, nil), http.StatusOK)
			if entry != nil {
				t.Errorf("%s should not be logged, got %v", path, entry)
			}
			if rec.Header().Get(RequestIDHeader) != "" {
				t.Errorf("%s should not be assigned a request id", path)
			}
		})
	}
}

func TestRequestLoggingMiddleware_PassesResponseThrough(t *testing.T) {
	wrapped := NewRequestLoggingMiddleware(newTestLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Total-Count", "3")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resume/upload", nil))

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Total-Count") != "3" {
		t.Error("handler headers should be preserved")
	}
	if rec.Body.String() != `{"id":"1"}` {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRequestLoggingMiddleware_RequestIDAndUser(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	userID := uuid.New()
	users := &mockUserService{
		GetBySessionTokenFunc: func(ctx context.Context, token string) (*domain.User, error) {
			return &domain.User{ID: userID}, nil
		},
	}
	stack := Stack(
		NewRequestLoggingMiddleware(logger).Handler,
		NewAuthMiddleware(users, logger, false).WithUser,
	)

	var seenID string
	wrapped := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
		w.Header().Set(AttemptIDHeader, "attempt-42")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/resume/process", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if seenID == "" {
		t.Fatal("request id not available to handler")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seenID {
		t.Errorf("response %s = %q, want %q", RequestIDHeader, got, seenID)
	}

	logOutput := buf.String()
	for _, want := range []string{seenID, userID.String(), "attempt-42"} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("log should contain %q, got: %s", want, logOutput)
		}
	}
}

func TestRequestLoggingMiddleware_IncomingRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"kept", "from-proxy-1", true},
		{"too long replaced", strings.Repeat("x", 65), false},
		{"missing generated", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/plans", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			entry, rec := logRequest(t, req, http.StatusOK)

			got := rec.Header().Get(RequestIDHeader)
			if tt.keep && got != tt.incoming {
				t.Errorf("%s = %q, want %q", RequestIDHeader, got, tt.incoming)
			}
			if !tt.keep {
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("%s = %q, want a generated uuid", RequestIDHeader, got)
				}
			}
			if entry["request_id"] != got {
				t.Errorf("logged request_id = %v, want %q", entry["request_id"], got)
			}
		})
	}
}
