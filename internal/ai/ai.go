package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
)

// AIProvider turns extracted resume text into a structured resume.
type AIProvider interface {
	// StructureResume reads raw resume text and returns structured fields,
	// an ATS score and keywords. One call is one provider request; callers
	// decide whether to retry.
	StructureResume(ctx context.Context, params StructureParams) (*StructureResult, error)

	// Model returns the model identifier recorded with each analysis.
	Model() string
}

// StructureParams contains parameters for resume structuring
type StructureParams struct {
	Text        string    // Text extracted by OCR
	DocumentURL string    // Location of the source document, for logging only
	Model       string    // Requested model; empty selects the provider default
	UserID      uuid.UUID // User ID for usage tracking
	AttemptID   uuid.UUID // Analysis attempt for usage tracking
}

// StructureResult contains the structured resume and the usage it cost
type StructureResult struct {
	Resume domain.StructuredResume
	Usage  UsageInfo
}

// UsageInfo tracks API usage for billing and monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	CostCents    int           // Estimated cost in cents
	Duration     time.Duration // Request duration
}

// MaxInputChars bounds the text sent to the model. Longer extractions are
// truncated; a resume rarely exceeds a few thousand words.
const MaxInputChars = 60_000

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidInput indicates the text could not be sent to the model
	EAIInvalidInput = errors.New("invalid input for ai provider")

	// EAIMalformedOutput indicates the model reply was not usable JSON
	EAIMalformedOutput = errors.New("ai provider returned malformed output")

	// EAIContentPolicy indicates the input violates content policy
	EAIContentPolicy = errors.New("input violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// Truncate shortens text to MaxInputChars without splitting a UTF-8 rune.
func Truncate(text string) string {
	if len(text) <= MaxInputChars {
		return text
	}
	cut := MaxInputChars
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
