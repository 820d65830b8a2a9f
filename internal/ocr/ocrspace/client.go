// Package ocrspace implements ocr.Provider against the OCR.space parse API.
package ocrspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/metrics"
	"github.com/DukeRupert/resumezen/internal/ocr"
)

const (
	// APIBaseURL is the OCR.space parse endpoint
	APIBaseURL = "https://api.ocr.space/parse/image"

	// exitCodeSuccess and exitCodePartial are OCRExitCode values with usable text
	exitCodeSuccess = 1
	exitCodePartial = 2
)

// Config contains configuration for the OCR.space client
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements ocr.Provider
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ocr.Provider = (*Client)(nil)

// New creates a new OCR.space client
func New(config Config, logger *slog.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("ocr.space API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

// Extract submits the document URL for OCR and joins the text of all pages.
func (c *Client) Extract(ctx context.Context, params ocr.ExtractParams) (*domain.Extraction, error) {
	start := time.Now()
	opts := params.Options.WithDefaults()

	req, err := c.buildRequest(ctx, params.URL, opts)
	if err != nil {
		return nil, ocr.WrapError("build request", err)
	}

	parsed, err := c.execute(req)
	metrics.ProviderCall("ocrspace", start, err)
	if err != nil {
		c.logger.Warn("ocr request failed", "url", params.URL, "retryable", ocr.IsRetryable(err), "error", err)
		return nil, ocr.WrapError("extract", err)
	}

	extraction, err := toExtraction(parsed, opts.Language)
	if err != nil {
		return nil, ocr.WrapError("extract", err)
	}
	extraction.Duration = time.Since(start)

	c.logger.Debug("ocr extracted text",
		"pages", extraction.Pages,
		"words", extraction.WordCount(),
		"duration_ms", extraction.Duration.Milliseconds(),
	)
	return extraction, nil
}

// buildRequest builds the multipart form the parse endpoint expects
func (c *Client) buildRequest(ctx context.Context, documentURL string, opts domain.OCROptions) (*http.Request, error) {
	if documentURL == "" {
		return nil, fmt.Errorf("document url is required")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := []struct{ key, value string }{
		{"url", documentURL},
		{"language", opts.Language},
		{"isTable", strconv.FormatBool(opts.IsTable)},
		{"OCREngine", strconv.Itoa(opts.Engine)},
		{"scale", strconv.FormatBool(opts.Scale)},
		{"detectOrientation", strconv.FormatBool(opts.DetectOrientation)},
		{"isOverlayRequired", "false"},
	}
	for _, f := range fields {
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f.key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("apikey", c.config.APIKey)
	return req, nil
}

func (c *Client) execute(req *http.Request) (*parseResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, ocr.EOCRTimeout
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ocr.EOCRUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ocr.EOCRUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ocr.EOCRRateLimit
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return nil, ocr.EOCRTimeout
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ocr.EOCRUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", ocr.EOCRFailed, resp.StatusCode, truncate(string(bodyBytes), 200))
	}

	var parsed parseResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		// The API answers some quota errors with a bare JSON string.
		var msg string
		if json.Unmarshal(bodyBytes, &msg) == nil {
			return nil, classifyMessage(msg)
		}
		return nil, fmt.Errorf("%w: unmarshal response: %v", ocr.EOCRFailed, err)
	}
	return &parsed, nil
}

// toExtraction maps a parse response onto domain.Extraction
func toExtraction(parsed *parseResponse, language string) (*domain.Extraction, error) {
	if parsed.IsErroredOnProcessing || (parsed.OCRExitCode != exitCodeSuccess && parsed.OCRExitCode != exitCodePartial) {
		msg := strings.Join(parsed.ErrorMessage, "; ")
		if msg == "" {
			msg = parsed.ErrorDetails
		}
		return nil, classifyMessage(msg)
	}

	var parts []string
	for _, page := range parsed.ParsedResults {
		if text := strings.TrimSpace(page.ParsedText); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return nil, ocr.EOCRNoText
	}

	return &domain.Extraction{
		Text:     strings.Join(parts, "\n\n"),
		Pages:    len(parsed.ParsedResults),
		Language: language,
	}, nil
}

// classifyMessage maps an OCR.space error message onto a sentinel error
func classifyMessage(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout"):
		return fmt.Errorf("%w: %s", ocr.EOCRTimeout, msg)
	case strings.Contains(lower, "maximum") && (strings.Contains(lower, "requests") || strings.Contains(lower, "number of times")):
		return fmt.Errorf("%w: %s", ocr.EOCRRateLimit, msg)
	case strings.Contains(lower, "api key"):
		return fmt.Errorf("%w: %s", ocr.EOCRUnauthorized, msg)
	default:
		return fmt.Errorf("%w: %s", ocr.EOCRFailed, msg)
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// parseResponse is the OCR.space response body
type parseResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode                  int          `json:"OCRExitCode"`
	IsErroredOnProcessing        bool         `json:"IsErroredOnProcessing"`
	ErrorMessage                 messageList  `json:"ErrorMessage"`
	ErrorDetails                 string       `json:"ErrorDetails"`
	ProcessingTimeInMilliseconds stringNumber `json:"ProcessingTimeInMilliseconds"`
}

// messageList accepts a string or an array of strings.
type messageList []string

func (m *messageList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		*m = []string{s}
	}
	return nil
}

// stringNumber accepts a number or a numeric string.
type stringNumber int

func (n *stringNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	*n = stringNumber(v)
	return nil
}
