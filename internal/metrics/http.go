package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"
)

var (
	uuidPattern    = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	numericSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
)

// skipPaths are served without recording metrics.
var skipPaths = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

// responseWriter wraps http.ResponseWriter to capture status code and bytes written
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter for middleware compatibility
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath replaces UUIDs and numeric segments with {id} so history
// lookups do not create one series per record.
func normalizePath(path string) string {
	path = uuidPattern.ReplaceAllString(path, "{id}")
	return numericSegment.ReplaceAllString(path, "/{id}$1")
}

// Middleware records HTTP request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		statusCode := strconv.Itoa(rw.statusCode)

		HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	})
}
