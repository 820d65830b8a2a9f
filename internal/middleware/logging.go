package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-Id"

// AttemptIDHeader is set by the analysis handlers on every attempt.
const AttemptIDHeader = "X-Attempt-Id"

// RequestLoggingMiddleware logs HTTP requests with timing and status information.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{
		logger: logger,
	}
}

// requestInfo is filled in by inner middleware and read back when the
// request is logged.
type requestInfo struct {
	requestID string
	userID    string
}

type requestInfoKey struct{}

// noteUser records the authenticated user for the request log line.
func noteUser(ctx context.Context, userID uuid.UUID) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.userID = userID.String()
	}
}

// RequestID returns the id assigned to the request, or "".
func RequestID(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info.requestID
	}
	return ""
}

// Handler returns middleware that logs all HTTP requests.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip logging for noisy endpoints
		if m.shouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		info := &requestInfo{requestID: r.Header.Get(RequestIDHeader)}
		if info.requestID == "" || len(info.requestID) > 64 {
			info.requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, info.requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"request_id", info.requestID,
			"method", r.Method,
			"path", sanitizePath(r.URL.Path, r.URL.RawQuery),
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if info.userID != "" {
			attrs = append(attrs, "user_id", info.userID)
		}
		if attemptID := wrapped.Header().Get(AttemptIDHeader); attemptID != "" {
			attrs = append(attrs, "attempt_id", attemptID)
		}

		// Log at appropriate level based on status code
		if wrapped.statusCode >= 500 {
			m.logger.Warn("request", attrs...)
		} else {
			m.logger.Info("request", attrs...)
		}
	})
}

// shouldSkip returns true for paths that should not be logged (too noisy).
func (m *RequestLoggingMiddleware) shouldSkip(path string) bool {
	skipPaths := []string{
		"/health",
		"/metrics",
		"/files/", // Locally served documents
	}

	for _, skip := range skipPaths {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}

	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// sensitiveParams are query parameter names whose values are redacted.
var sensitiveParams = map[string]bool{
	"token":         true,
	"code":          true,
	"key":           true,
	"secret":        true,
	"password":      true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"refresh_token": true,
	"session_id":    true, // Stripe checkout return URL
}

// sanitizePath removes sensitive query parameters from the path for logging.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var safeParts []string
	for _, part := range strings.Split(rawQuery, "&") {
		key, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if sensitiveParams[strings.ToLower(key)] {
			safeParts = append(safeParts, key+"=[REDACTED]")
		} else {
			safeParts = append(safeParts, part)
		}
	}

	if len(safeParts) == 0 {
		return path
	}
	return path + "?" + strings.Join(safeParts, "&")
}
