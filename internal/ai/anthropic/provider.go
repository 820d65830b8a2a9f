package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/resumezen/internal/ai"
	"github.com/DukeRupert/resumezen/internal/metrics"
	"github.com/DukeRupert/resumezen/internal/repository"
	"github.com/google/uuid"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	// MaxOutputTokens bounds the structured reply
	MaxOutputTokens = 4096

	// Pricing in cents per 1M tokens for claude-3-5-sonnet
	PricingInputCents  = 300  // $3 per 1M input tokens
	PricingOutputCents = 1500 // $15 per 1M output tokens

	requestTypeStructure = "structure_resume"
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string   // Overrides APIBaseURL (tests, proxies)
	AllowedModels  []string // Models a request may select; empty allows only Model
	ProviderConfig ai.ProviderConfig
}

// Provider implements the AIProvider interface using Anthropic's Claude API
type Provider struct {
	config  Config
	client  *http.Client
	queries *repository.Queries
	logger  *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// New creates a new Anthropic AI provider. queries may be nil, in which case
// usage is only reported to metrics.
func New(config Config, queries *repository.Queries, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		queries: queries,
		logger:  logger,
	}, nil
}

// Model returns the default model identifier.
func (p *Provider) Model() string {
	return p.config.Model
}

// StructureResume sends resume text to Claude and parses the structured reply.
// Exactly one API request is made.
func (p *Provider) StructureResume(ctx context.Context, params ai.StructureParams) (*ai.StructureResult, error) {
	startTime := time.Now()

	text := strings.TrimSpace(params.Text)
	if text == "" {
		return nil, ai.WrapError("structure resume", fmt.Errorf("%w: no text to structure", ai.EAIInvalidInput))
	}

	model := p.resolveModel(params.Model)

	req, err := p.buildStructureRequest(ctx, model, ai.Truncate(text))
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeRequest(req)
	metrics.ProviderCall("anthropic", startTime, err)
	if err != nil {
		p.logger.Warn("anthropic request failed",
			"model", model,
			"attempt_id", params.AttemptID,
			"retryable", ai.IsRetryable(err),
			"error", err,
		)
		return nil, ai.WrapError("execute request", err)
	}

	usage := ai.UsageInfo{
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostCents:    p.calculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		Duration:     time.Since(startTime),
	}
	metrics.AIUsage(usage.InputTokens, usage.OutputTokens, usage.CostCents)

	// Usage is billed by the provider whether or not the reply parses.
	if err := p.trackUsage(ctx, params.UserID, params.AttemptID, usage, requestTypeStructure); err != nil {
		// Log but don't fail the request
		p.logger.Error("failed to track AI usage", "error", err)
	}

	result, err := p.parseStructureResponse(resp)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}
	result.Usage = usage

	p.logger.Debug("resume structured",
		"model", model,
		"attempt_id", params.AttemptID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"duration_ms", usage.Duration.Milliseconds(),
	)

	return result, nil
}

// resolveModel returns the requested model when allowed, otherwise the default.
func (p *Provider) resolveModel(requested string) string {
	if requested == "" || requested == p.config.Model {
		return p.config.Model
	}
	for _, m := range p.config.AllowedModels {
		if m == requested {
			return requested
		}
	}
	p.logger.Debug("requested model not allowed, using default", "requested", requested, "model", p.config.Model)
	return p.config.Model
}

// buildStructureRequest builds the HTTP request for resume structuring
func (p *Provider) buildStructureRequest(ctx context.Context, model, text string) (*http.Request, error) {
	reqBody := apiRequest{
		Model:     model,
		MaxTokens: MaxOutputTokens,
		System:    systemPrompt,
		Messages: []apiMessage{
			{
				Role: "user",
				Content: []apiContent{
					{
						Type: "text",
						Text: buildStructurePrompt(text),
					},
				},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	return req, nil
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(req *http.Request) (*apiResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, ai.EAITimeout
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ai.EAIMalformedOutput, err)
	}

	return &apiResp, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// mapHTTPError maps HTTP status codes to domain errors
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(errResp.Error.Message), "policy") {
			return ai.EAIContentPolicy
		}
		return fmt.Errorf("%w: %s", ai.EAIInvalidInput, errResp.Error.Message)
	case http.StatusServiceUnavailable, http.StatusBadGateway, 529:
		return ai.EAIUnavailable
	default:
		if statusCode >= 500 {
			return fmt.Errorf("%w: status %d", ai.EAIUnavailable, statusCode)
		}
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// parseStructureResponse parses the API response into a StructureResult
func (p *Provider) parseStructureResponse(resp *apiResponse) (*ai.StructureResult, error) {
	var textContent string
	for _, content := range resp.Content {
		if content.Type == "text" {
			textContent = content.Text
			break
		}
	}

	if strings.TrimSpace(textContent) == "" {
		return nil, fmt.Errorf("%w: no text content in response", ai.EAIMalformedOutput)
	}

	raw, err := extractJSONObject(textContent)
	if err != nil {
		return nil, err
	}

	result := &ai.StructureResult{}
	if err := json.Unmarshal(raw, &result.Resume); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.EAIMalformedOutput, err)
	}
	result.Resume.Normalize()

	return result, nil
}

// extractJSONObject returns the outermost JSON object in s. Models sometimes
// wrap the object in a markdown code fence or a sentence of prose.
func extractJSONObject(s string) ([]byte, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ai.EAIMalformedOutput)
	}
	raw := []byte(s[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ai.EAIMalformedOutput)
	}
	return raw, nil
}

// calculateCost calculates the cost in cents for the given token usage
func (p *Provider) calculateCost(inputTokens, outputTokens int) int {
	inputCost := (inputTokens * PricingInputCents) / 1_000_000
	outputCost := (outputTokens * PricingOutputCents) / 1_000_000
	return inputCost + outputCost
}

// trackUsage records AI usage in the database
func (p *Provider) trackUsage(ctx context.Context, userID, attemptID uuid.UUID, usage ai.UsageInfo, requestType string) error {
	if p.queries == nil {
		return nil
	}
	return p.queries.CreateAIUsage(ctx, repository.CreateAIUsageParams{
		UserID:       uuid.NullUUID{UUID: userID, Valid: userID != uuid.Nil},
		AttemptID:    uuid.NullUUID{UUID: attemptID, Valid: attemptID != uuid.Nil},
		Model:        usage.Model,
		InputTokens:  int32(usage.InputTokens),
		OutputTokens: int32(usage.OutputTokens),
		CostCents:    int32(usage.CostCents),
		RequestType:  requestType,
	})
}

// API request/response types

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []apiContentOutput `json:"content"`
	Model   string             `json:"model"`
	Usage   apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
