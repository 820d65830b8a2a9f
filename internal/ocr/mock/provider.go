// Package mock provides an in-process OCR provider for development and tests.
package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/ocr"
)

// SampleText is returned when no custom response is configured.
const SampleText = `Jordan Rivera
jordan.rivera@example.com | +1 555 0100 | linkedin.com/in/jordanrivera
Portland, OR

SUMMARY
Backend engineer with six years of experience building payment and data services.

EXPERIENCE
Senior Software Engineer, Ledgerline  03/2021 - Present
- Cut settlement latency by 40% by batching ledger writes
- Led migration of billing services to Kubernetes
Software Engineer, Cartwheel  06/2018 - 02/2021
- Built the order event pipeline processing 2M events per day

EDUCATION
B.S. Computer Science, Oregon State University, 2018

SKILLS
Go, PostgreSQL, Kubernetes, gRPC, Prometheus

CERTIFICATIONS
Certified Kubernetes Administrator (CKA)`

// Provider is a mock OCR provider
type Provider struct {
	logger *slog.Logger
	mu     sync.Mutex

	// Configurable responses for testing
	ExtractResponse *domain.Extraction
	ExtractError    error

	// Call tracking for testing
	ExtractCalls int
	LastParams   ocr.ExtractParams
}

var _ ocr.Provider = (*Provider)(nil)

// New creates a new mock OCR provider
func New(logger *slog.Logger) *Provider {
	return &Provider{logger: logger}
}

// Extract returns the configured response or SampleText.
func (p *Provider) Extract(ctx context.Context, params ocr.ExtractParams) (*domain.Extraction, error) {
	p.mu.Lock()
	p.ExtractCalls++
	p.LastParams = params
	resp, respErr := p.ExtractResponse, p.ExtractError
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if respErr != nil {
		return nil, respErr
	}
	if resp != nil {
		cp := *resp
		return &cp, nil
	}

	return &domain.Extraction{
		Text:     SampleText,
		Pages:    1,
		Language: params.Options.WithDefaults().Language,
		Duration: 120 * time.Millisecond,
	}, nil
}

// Calls returns the number of Extract calls so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ExtractCalls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ExtractCalls = 0
	p.LastParams = ocr.ExtractParams{}
	p.ExtractResponse = nil
	p.ExtractError = nil
}
