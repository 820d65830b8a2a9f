package mock

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/resumezen/internal/ai"
	"github.com/DukeRupert/resumezen/internal/domain"
)

// ModelName is reported as the model for every mock call.
const ModelName = "mock-ai-v1"

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger
	mu     sync.Mutex

	// Configurable responses for testing
	StructureResumeResponse *ai.StructureResult
	StructureResumeError    error

	// Call tracking for testing
	StructureResumeCalls int
	LastParams           ai.StructureParams
}

var _ ai.AIProvider = (*Provider)(nil)

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Model returns the mock model name.
func (p *Provider) Model() string {
	return ModelName
}

// StructureResume returns a canned structured resume. When the input text
// contains no resume vocabulary at all, the canned reply is empty and marks
// the document as not a resume.
func (p *Provider) StructureResume(ctx context.Context, params ai.StructureParams) (*ai.StructureResult, error) {
	p.mu.Lock()
	p.StructureResumeCalls++
	p.LastParams = params
	resp, respErr := p.StructureResumeResponse, p.StructureResumeError
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// If a custom response or error is set, use it
	if respErr != nil {
		return nil, respErr
	}
	if resp != nil {
		cp := *resp
		return &cp, nil
	}

	usage := ai.UsageInfo{
		Model:        ModelName,
		InputTokens:  len(strings.Fields(params.Text)) * 2,
		OutputTokens: 850,
		CostCents:    2,
		Duration:     250 * time.Millisecond,
	}

	if !looksLikeResume(params.Text) {
		notResume := false
		r := domain.StructuredResume{IsResume: &notResume}
		r.Normalize()
		return &ai.StructureResult{Resume: r, Usage: usage}, nil
	}

	return &ai.StructureResult{Resume: SampleResume(), Usage: usage}, nil
}

func looksLikeResume(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range []string{"experience", "education", "skills", "resume", "curriculum"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// SampleResume returns the canned structured resume used by the mock.
func SampleResume() domain.StructuredResume {
	r := domain.StructuredResume{
		ContactInformation: domain.ContactInformation{
			Name:     "Jordan Rivera",
			Email:    "jordan.rivera@example.com",
			Phone:    "+1 555 0100",
			Location: "Portland, OR",
			LinkedIn: "linkedin.com/in/jordanrivera",
		},
		Summary: "Backend engineer with six years of experience building payment and data services in Go and PostgreSQL.",
		Skills: domain.Skills{
			Technical: domain.FlexList{"Go", "PostgreSQL", "Kubernetes", "gRPC", "Prometheus"},
			Soft:      domain.FlexList{"Mentoring", "Technical writing"},
		},
		WorkExperience: []domain.WorkExperience{
			{
				Title:     "Senior Software Engineer",
				Company:   "Ledgerline",
				Location:  "Remote",
				StartDate: "2021-03",
				EndDate:   "Present",
				Achievements: domain.FlexList{
					"Cut settlement latency by 40% by batching ledger writes",
					"Led migration of billing services to Kubernetes",
				},
			},
			{
				Title:     "Software Engineer",
				Company:   "Cartwheel",
				StartDate: "2018-06",
				EndDate:   "2021-02",
				Achievements: domain.FlexList{
					"Built the order event pipeline processing 2M events per day",
				},
			},
		},
		Education: []domain.Education{
			{
				Degree:         "B.S.",
				Institution:    "Oregon State University",
				Field:          "Computer Science",
				GraduationDate: "2018",
			},
		},
		Certifications:      domain.FlexList{"CKA"},
		ATSScore:            domain.NewATSScore(78),
		Strengths:           domain.FlexList{"Quantified achievements", "Clear reverse-chronological layout"},
		AreasForImprovement: domain.FlexList{"Summary could name target role", "Add links to public projects"},
		Keywords:            domain.FlexList{"Go", "PostgreSQL", "Kubernetes", "payments", "distributed systems"},
	}
	r.Normalize()
	return r
}

// Calls returns the number of StructureResume calls so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.StructureResumeCalls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StructureResumeCalls = 0
	p.LastParams = ai.StructureParams{}
	p.StructureResumeResponse = nil
	p.StructureResumeError = nil
}
