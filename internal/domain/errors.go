package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"      // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized" // Authentication required
	EFORBIDDEN    = "forbidden"    // Permission denied
	ENOTFOUND     = "not_found"    // Resource not found
	ECONFLICT     = "conflict"     // Resource conflict (e.g., duplicate)
	ETOOLARGE     = "too_large"    // Request entity too large
	ERATELIMIT    = "rate_limit"   // Rate limit exceeded
	EINTERNAL     = "internal"     // Internal server error
	EPAYMENT      = "payment"      // No usable plan or credits
	EPROVIDER     = "provider"     // Upstream OCR, AI or storage failure
	ENOTRESUME    = "not_resume"   // Document is not a resume
)

// Error represents an application error with structured information.
type Error struct {
	Code      string // Machine-readable error code
	Op        string // Operation that failed (e.g., "credit.consume")
	Message   string // Human-readable message
	Detail    string // Technical detail, shown to clients only on request
	Retryable bool   // The caller may retry the same request
	Err       error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}
	var nr *NonResumeError
	if errors.As(err, &nr) {
		return ENOTRESUME
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message()
	}
	var nr *NonResumeError
	if errors.As(err, &nr) {
		return nr.Message()
	}
	return "An internal error occurred. Please try again later."
}

// ErrorDetail returns the technical detail of the error. Internal errors
// fall back to the wrapped error text.
func ErrorDetail(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// IsRetryable reports whether the error was marked as safe to retry.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// RateLimit creates a rate limit error.
func RateLimit(op string) *Error {
	return &Error{
		Code:      ERATELIMIT,
		Op:        op,
		Message:   "Too many requests. Please try again later.",
		Retryable: true,
	}
}

// NotEligible creates an eligibility error. The user has no usable plan.
func NotEligible(op, reason string) *Error {
	return &Error{
		Code:    EPAYMENT,
		Op:      op,
		Message: reason,
	}
}

// CreditRace creates the error returned when a concurrent request spent the
// last credit between the eligibility check and the consume.
func CreditRace(op string) *Error {
	return &Error{
		Code:      EPAYMENT,
		Op:        op,
		Message:   "Your last credit was used by another request. Please check your plan and try again.",
		Retryable: true,
	}
}

// Provider creates an upstream failure error. The message is shown to the
// user; err carries the technical cause.
func Provider(err error, op, message string) *Error {
	e := &Error{
		Code:    EPROVIDER,
		Op:      op,
		Message: message,
		Err:     err,
	}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// Message returns a single human-readable reason. With one field the field's
// message is returned as is.
func (e *ValidationError) Message() string {
	if len(e.Fields) == 1 {
		for _, msg := range e.Fields {
			return msg
		}
	}
	return "Please correct the highlighted fields."
}

// NewValidationError creates a new validation error with the first field error.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}

// AddFieldError adds a field error to an existing validation error.
// If err is not a ValidationError, returns a new one.
func AddFieldError(err error, field, message string) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return NewValidationError("", field, message)
}

// NonResumeError is returned when a processed document fails resume
// validation. The credit spent on it has already been refunded.
type NonResumeError struct {
	Op         string
	Validation ResumeValidation
}

func (e *NonResumeError) Error() string {
	return fmt.Sprintf("%s: document is not a resume (score %d)", e.Op, e.Validation.Score)
}

// Message returns the user-facing explanation.
func (e *NonResumeError) Message() string {
	return "The uploaded document does not look like a resume. Your credit has been refunded."
}
