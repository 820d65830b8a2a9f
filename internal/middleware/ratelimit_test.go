package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/resumezen/internal/auth"
	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("203.0.113.7"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	now = now.Add(20 * time.Second)
	ok, wait := rl.Allow("203.0.113.7")
	if ok {
		t.Fatal("3rd request in the window should be denied")
	}
	if wait != 40*time.Second {
		t.Errorf("wait = %v, want 40s", wait)
	}

	if ok, _ := rl.Allow("198.51.100.2"); !ok {
		t.Error("another key should have its own window")
	}

	now = now.Add(40 * time.Second)
	if ok, _ := rl.Allow("203.0.113.7"); !ok {
		t.Error("a new window should allow requests again")
	}
}

// =============================================================================
// RateLimitMiddleware Tests
// =============================================================================

func TestRateLimitMiddleware_ClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		// second request comes from a different proxy hop but the same client
		secondRemote string
	}{
		{
			name:         "remote address",
			secondRemote: "192.168.1.1:40000",
		},
		{
			name:         "x-forwarded-for uses first hop",
			headers:      map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"},
			secondRemote: "10.0.0.2:12345",
		},
		{
			name:         "x-real-ip",
			headers:      map[string]string{"X-Real-IP": "203.0.113.195"},
			secondRemote: "10.0.0.2:12345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewRateLimitMiddleware(NewRateLimiter(1, time.Minute), newTestLogger())
			wrapped := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			send := func(remote string) *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
				req.RemoteAddr = remote
				for k, v := range tt.headers {
					req.Header.Set(k, v)
				}
				rec := httptest.NewRecorder()
				wrapped.ServeHTTP(rec, req)
				return rec
			}

			if rec := send("192.168.1.1:12345"); rec.Code != http.StatusOK {
				t.Fatalf("first request: expected 200, got %d", rec.Code)
			}
			rec := send(tt.secondRemote)
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("second request: expected 429, got %d", rec.Code)
			}

			retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
			if err != nil || retryAfter < 1 || retryAfter > 60 {
				t.Errorf("Retry-After = %q, want 1..60 seconds", rec.Header().Get("Retry-After"))
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("expected JSON body, got content type %q", ct)
			}
			if !strings.Contains(rec.Body.String(), `"`+domain.ERATELIMIT+`"`) {
				t.Errorf("expected rate_limit error code, got %s", rec.Body.String())
			}
		})
	}
}

// =============================================================================
// AuthRateLimiter Tests
// =============================================================================

func TestAuthRateLimiter_Limits(t *testing.T) {
	arl := NewAuthRateLimiter(newTestLogger())

	tests := []struct {
		name    string
		limit   func(http.Handler) http.Handler
		path    string
		allowed int
	}{
		{"login", arl.LimitLogin, "/auth/login", 5},
		{"register", arl.LimitRegister, "/auth/register", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := tt.limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			for i := 0; i <= tt.allowed; i++ {
				req := httptest.NewRequest(http.MethodPost, tt.path, nil)
				req.RemoteAddr = "192.168.1.1:12345"
				rec := httptest.NewRecorder()
				wrapped.ServeHTTP(rec, req)

				want := http.StatusOK
				if i == tt.allowed {
					want = http.StatusTooManyRequests
				}
				if rec.Code != want {
					t.Errorf("request %d: expected %d, got %d", i+1, want, rec.Code)
				}
			}
		})
	}
}

// =============================================================================
// AnalysisThrottle Tests
// =============================================================================

func TestAnalysisThrottle_AllowsBurstThenThrottles(t *testing.T) {
	th := NewAnalysisThrottle(3, newTestLogger())

	for i := 0; i < 3; i++ {
		if ok, _ := th.Allow("user-1"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, wait := th.Allow("user-1")
	if ok {
		t.Fatal("4th request should be throttled")
	}
	if wait <= 0 || wait > 20*time.Second {
		t.Errorf("wait = %v, want within one token interval", wait)
	}

	if ok, _ := th.Allow("user-2"); !ok {
		t.Error("user-2 should not be throttled")
	}
}

func TestAnalysisThrottle_Disabled(t *testing.T) {
	th := NewAnalysisThrottle(0, newTestLogger())

	for i := 0; i < 100; i++ {
		if ok, _ := th.Allow("user-1"); !ok {
			t.Fatalf("request %d should be allowed when throttle is disabled", i+1)
		}
	}
}

func TestAnalysisThrottle_HandlerKeysByUser(t *testing.T) {
	th := NewAnalysisThrottle(1, newTestLogger())

	calls := 0
	wrapped := th.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	alice := &domain.User{ID: uuid.New()}
	bob := &domain.User{ID: uuid.New()}

	send := func(u *domain.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/resume/analyze", nil)
		req.RemoteAddr = "192.168.1.1:12345" // same IP for both users
		req = req.WithContext(auth.SetUser(req.Context(), u))
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(alice); rec.Code != http.StatusOK {
		t.Errorf("alice first: expected 200, got %d", rec.Code)
	}
	rec := send(alice)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("alice second: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header to be set")
	}
	if rec := send(bob); rec.Code != http.StatusOK {
		t.Errorf("bob first: expected 200, got %d", rec.Code)
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}
