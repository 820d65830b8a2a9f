package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/DukeRupert/resumezen/internal/domain"
)

func newErrorTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// serveError runs ErrorResponse for err against target and decodes the body.
func serveError(t *testing.T, target string, err error) (*httptest.ResponseRecorder, JSONError) {
	t.Helper()

	req := httptest.NewRequest("POST", target, nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, newErrorTestLogger(), err)

	var body JSONError
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("decode body: %v (%s)", decodeErr, rec.Body.String())
	}
	return rec, body
}

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestErrorResponse_ValidationDoesNotExposeOperationName(t *testing.T) {
	ve := domain.NewValidationError("UserService.Register", "email", "Email is required")

	rec, body := serveError(t, "/auth/register", ve)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "UserService") {
		t.Errorf("response exposes internal operation name: %s", rec.Body.String())
	}
	if body.Error.Fields["email"] != "Email is required" {
		t.Errorf("fields = %v, want email error", body.Error.Fields)
	}
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	dbErr := errors.New("pq: connection refused to 10.0.0.5:5432")
	err := domain.Internal(dbErr, "CreditService.Consume", "Failed to update credits")

	for _, target := range []string{"/plan/credit/use", "/plan/credit/use?detail=1"} {
		t.Run(target, func(t *testing.T) {
			rec, body := serveError(t, target, err)

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			if strings.Contains(rec.Body.String(), "10.0.0.5") || strings.Contains(rec.Body.String(), "pq:") {
				t.Errorf("response exposes database error: %s", rec.Body.String())
			}
			if body.Error.Detail != "" {
				t.Errorf("internal error detail leaked: %q", body.Error.Detail)
			}
		})
	}
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	rec, body := serveError(t, "/plans", errors.New("sql: no rows in result set"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "sql:") {
		t.Errorf("response exposes raw error: %s", rec.Body.String())
	}
	if body.Error.Code != domain.EINTERNAL {
		t.Errorf("code = %q, want %q", body.Error.Code, domain.EINTERNAL)
	}
}

// =============================================================================
// Error Response Tests - Mapping
// =============================================================================

func TestErrorResponse_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"not eligible", domain.NotEligible("op", domain.ReasonNoCredits), http.StatusPaymentRequired, domain.EPAYMENT, false},
		{"credit race", domain.CreditRace("op"), http.StatusPaymentRequired, domain.EPAYMENT, true},
		{"too large", domain.Errorf(domain.ETOOLARGE, "op", "File exceeds the 5 MB limit."), http.StatusRequestEntityTooLarge, domain.ETOOLARGE, false},
		{"not found", domain.NotFound("op", "analysis", "x"), http.StatusNotFound, domain.ENOTFOUND, false},
		{"rate limit", domain.RateLimit("op"), http.StatusTooManyRequests, domain.ERATELIMIT, true},
		{"conflict", domain.Conflict("op", "taken"), http.StatusConflict, domain.ECONFLICT, false},
		{"unauthorized", domain.Unauthorized("op", "nope"), http.StatusUnauthorized, domain.EUNAUTHORIZED, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serveError(t, "/x", tt.err)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if body.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.code)
			}
			if body.Error.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", body.Error.Retryable, tt.retryable)
			}
		})
	}
}

func TestErrorResponse_ProviderDetailOnlyOnRequest(t *testing.T) {
	err := domain.Provider(errors.New("ocr: HTTP 503"), "AnalysisService.extract", "We couldn't read your document. Please try again.")

	rec, body := serveError(t, "/resume/process", err)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if body.Error.Detail != "" {
		t.Errorf("detail shown without ?detail=1: %q", body.Error.Detail)
	}

	_, body = serveError(t, "/resume/process?detail=1", err)
	if !strings.Contains(body.Error.Detail, "HTTP 503") {
		t.Errorf("detail = %q, want provider cause", body.Error.Detail)
	}
}

func TestErrorResponse_NonResumeIncludesValidationDetails(t *testing.T) {
	err := &domain.NonResumeError{
		Op: "AnalysisService.validate",
		Validation: domain.ResumeValidation{
			IsResume: false,
			Score:    12,
			Reasons:  []string{"No resume sections found"},
		},
	}

	rec, body := serveError(t, "/resume/process", err)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if body.Error.Code != domain.ENOTRESUME {
		t.Errorf("code = %q, want %q", body.Error.Code, domain.ENOTRESUME)
	}
	if body.ValidationDetails == nil {
		t.Fatal("validationDetails missing")
	}
	if body.ValidationDetails.Score != 12 || len(body.ValidationDetails.Reasons) != 1 {
		t.Errorf("validationDetails = %+v", body.ValidationDetails)
	}
}
