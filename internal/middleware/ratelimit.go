package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/resumezen/internal/auth"
	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/handler"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds how many clients a limiter remembers. The least
// recently seen client is forgotten first.
const maxTrackedKeys = 10000

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter counts requests per key in fixed windows. Entries expire with
// their window, so idle keys need no cleanup.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries *expirable.LRU[string, *rateLimitEntry]
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

func NewRateLimiter(maxAttempts int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		entries:     expirable.NewLRU[string, *rateLimitEntry](maxTrackedKeys, nil, window),
	}
}

// Allow counts a request from key and reports whether it is within the
// limit. When it is not, the second result is the time left in the window.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.entries.Get(key)
	if !ok || now.Sub(entry.windowStart) >= rl.window {
		entry = &rateLimitEntry{windowStart: now}
		rl.entries.Add(key, entry)
	}

	if entry.count >= rl.maxAttempts {
		return false, rl.window - now.Sub(entry.windowStart)
	}
	entry.count++
	return true, 0
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimitMiddleware wraps a rate limiter for use as HTTP middleware.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns middleware that rate limits requests by client IP.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		if ok, wait := m.limiter.Allow(clientIP); !ok {
			m.logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"path", r.URL.Path,
				"method", r.Method,
			)
			tooManyRequests(w, r, m.logger, wait)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Auth Rate Limiter (combined limiter for auth endpoints)
// =============================================================================

// AuthRateLimiter provides rate limiting for authentication endpoints
// with different limits for different actions.
type AuthRateLimiter struct {
	loginLimiter    *RateLimiter
	registerLimiter *RateLimiter
	logger          *slog.Logger
}

// NewAuthRateLimiter allows 5 logins per 15 minutes and 3 registrations
// per hour from one client IP.
func NewAuthRateLimiter(logger *slog.Logger) *AuthRateLimiter {
	return &AuthRateLimiter{
		loginLimiter:    NewRateLimiter(5, 15*time.Minute),
		registerLimiter: NewRateLimiter(3, time.Hour),
		logger:          logger,
	}
}

// LimitLogin returns middleware for rate limiting login attempts.
func (a *AuthRateLimiter) LimitLogin(next http.Handler) http.Handler {
	return NewRateLimitMiddleware(a.loginLimiter, a.logger).Limit(next)
}

// LimitRegister returns middleware for rate limiting registration attempts.
func (a *AuthRateLimiter) LimitRegister(next http.Handler) http.Handler {
	return NewRateLimitMiddleware(a.registerLimiter, a.logger).Limit(next)
}

// =============================================================================
// Analysis Throttle
// =============================================================================

// AnalysisThrottle limits how often one user may start an analysis. Each
// user gets a token bucket; buckets idle for two minutes are evicted.
type AnalysisThrottle struct {
	limit  rate.Limit
	burst  int
	logger *slog.Logger

	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewAnalysisThrottle allows perMinute analyses per user per minute with a
// burst of the same size. perMinute <= 0 disables the throttle.
func NewAnalysisThrottle(perMinute int, logger *slog.Logger) *AnalysisThrottle {
	t := &AnalysisThrottle{
		limit:  rate.Inf,
		logger: logger,
	}
	if perMinute > 0 {
		t.limit = rate.Every(time.Minute / time.Duration(perMinute))
		t.burst = perMinute
	}
	// An idle bucket refills completely within a minute, so forgetting it
	// after that changes nothing.
	t.limiters = expirable.NewLRU[string, *rate.Limiter](maxTrackedKeys, nil, 2*time.Minute)
	return t
}

// Allow reports whether key may start an analysis now and, if not, how
// long it should wait.
func (t *AnalysisThrottle) Allow(key string) (bool, time.Duration) {
	if t.limit == rate.Inf {
		return true, 0
	}

	t.mu.Lock()
	lim, ok := t.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(t.limit, t.burst)
	}
	// Re-adding refreshes the idle TTL.
	t.limiters.Add(key, lim)
	t.mu.Unlock()

	res := lim.Reserve()
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// Handler throttles by authenticated user, falling back to client IP.
func (t *AnalysisThrottle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := getClientIP(r)
		if id, ok := auth.UserID(r.Context()); ok {
			key = id.String()
		}

		if ok, wait := t.Allow(key); !ok {
			t.logger.Warn("analysis throttled", "key", key, "path", r.URL.Path)
			tooManyRequests(w, r, t.logger, wait)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// tooManyRequests writes a 429 with a Retry-After of at least one second.
func tooManyRequests(w http.ResponseWriter, r *http.Request, logger *slog.Logger, wait time.Duration) {
	retryAfter := int(math.Ceil(wait.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	handler.ErrorResponse(w, r, logger, domain.RateLimit("middleware.limit"))
}

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	// Check X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
