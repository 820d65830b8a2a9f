package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/resumezen/internal/domain"
)

// errorBody is the "error" member of every error response.
type errorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Detail    string            `json:"detail,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

// JSONError is a typed response structure for API errors.
type JSONError struct {
	Error             errorBody                `json:"error"`
	ValidationDetails *domain.ResumeValidation `json:"validationDetails,omitempty"`
}

// ErrorResponse writes an error response to the client.
// It maps domain error codes to HTTP status codes. The technical detail of
// non-internal errors is included only when the request carries ?detail=1.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	// Extract structured info from error
	code := domain.ErrorCode(err)
	op := domain.ErrorOp(err)

	// Map to HTTP status
	status := ErrorCodeToHTTPStatus(code)

	// Log error with context
	logError(logger, r, err, code, op, status)

	body := JSONError{
		Error: errorBody{
			Code:      code,
			Message:   domain.ErrorMessage(err),
			Retryable: domain.IsRetryable(err),
		},
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Error.Fields = ve.Fields
	}

	var nr *domain.NonResumeError
	if errors.As(err, &nr) {
		v := nr.Validation
		body.ValidationDetails = &v
	}

	if code != domain.EINTERNAL && wantsDetail(r) {
		body.Error.Detail = domain.ErrorDetail(err)
	}

	writeJSON(w, status, body)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ENOTRESUME:
		return http.StatusUnprocessableEntity // 422
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	case domain.EPROVIDER:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found")
	ErrorResponse(w, r, logger, err)
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required")
	ErrorResponse(w, r, logger, err)
}

// InternalErrorResponse logs the error and returns a generic 500 response.
// The underlying error details are hidden from the user.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	wrappedErr := domain.Internal(err, "", "An unexpected error occurred")
	ErrorResponse(w, r, logger, wrappedErr)
}

// logError logs the error with appropriate level based on status code.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}

	// Add operation if present
	if op != "" {
		attrs = append(attrs, "op", op)
	}

	// 5xx are server-side problems; 4xx are expected client errors.
	if status >= 500 {
		logger.Error("server error", attrs...)
	} else if status >= 400 {
		logger.Info("client error", attrs...)
	}
}

// wantsDetail reports whether the client asked for technical detail.
func wantsDetail(r *http.Request) bool {
	switch r.URL.Query().Get("detail") {
	case "1", "true":
		return true
	}
	return false
}
