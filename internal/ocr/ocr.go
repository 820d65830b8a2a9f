// Package ocr extracts text from uploaded documents through an external
// OCR service.
package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/DukeRupert/resumezen/internal/domain"
)

// Provider reads the text of a document reachable at a URL.
type Provider interface {
	// Extract makes exactly one request to the OCR service.
	Extract(ctx context.Context, params ExtractParams) (*domain.Extraction, error)
}

// ExtractParams contains parameters for text extraction
type ExtractParams struct {
	URL     string            // Publicly reachable document URL
	Options domain.OCROptions // Defaults applied by the caller
}

// Error codes for OCR operations
var (
	// EOCRTimeout indicates the request timed out
	EOCRTimeout = errors.New("ocr request timed out")

	// EOCRUnavailable indicates the OCR service is temporarily unavailable
	EOCRUnavailable = errors.New("ocr service temporarily unavailable")

	// EOCRRateLimit indicates the OCR quota or rate limit is exhausted
	EOCRRateLimit = errors.New("ocr rate limit exceeded")

	// EOCRUnauthorized indicates invalid API credentials
	EOCRUnauthorized = errors.New("ocr provider authentication failed")

	// EOCRFailed indicates the service could not process the document
	EOCRFailed = errors.New("ocr could not process document")

	// EOCRNoText indicates processing succeeded but no text was found
	EOCRNoText = errors.New("ocr found no text in document")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EOCRTimeout) ||
		errors.Is(err, EOCRUnavailable) ||
		errors.Is(err, EOCRRateLimit)
}

// WrapError wraps an error with context about the OCR operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ocr %s: %w", operation, err)
}
