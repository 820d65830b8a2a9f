// Package service contains the business logic layer.
//
// This file implements the analysis orchestrator: one resume goes from
// upload through OCR and AI structuring to a stored analysis, paid for
// with one plan credit.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/DukeRupert/resumezen/internal/ai"
	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/metrics"
	"github.com/DukeRupert/resumezen/internal/ocr"
	"github.com/DukeRupert/resumezen/internal/store"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AnalysisService runs resume analyses.
//
// Analyze never retries a provider call. A failed attempt leaves the user's
// credits as they were before it started: credits are consumed only after
// the model has structured the resume, and refunded when the document is
// not a resume or the record cannot be saved.
type AnalysisService interface {
	// Analyze runs one attempt. On failure the returned outcome still
	// carries the final state and trace; the error says what went wrong.
	//
	// Returns domain.EPAYMENT when the user has no usable plan (before any
	// provider call) or lost the last credit to a concurrent request.
	// Returns domain.EINVALID or domain.ETOOLARGE for rejected documents.
	// Returns domain.EPROVIDER for storage, OCR or AI failures.
	// Returns *domain.NonResumeError when the document is not a resume.
	Analyze(ctx context.Context, params AnalyzeParams) (*AnalysisOutcome, error)
}

// AnalyzeParams describes one analysis attempt. Exactly one of Document,
// PublicID or DocumentURL identifies the resume.
type AnalyzeParams struct {
	UserID uuid.UUID

	Document *domain.UploadedDocument // Raw bytes, stored before processing
	Rule     domain.UploadRule        // Acceptance policy for Document

	PublicID    string // Key of a document the user uploaded earlier
	DocumentURL string // Publicly reachable document URL
	FileName    string

	OCROptions domain.OCROptions
	AIModel    string
}

// AnalysisOutcome is the result of one attempt.
type AnalysisOutcome struct {
	AttemptID  uuid.UUID
	State      domain.PipelineState
	Trace      []domain.StateChange
	Document   *domain.StoredDocument
	Extraction *domain.Extraction
	Structured *domain.StructuredResume
	Validation *domain.ResumeValidation
	Record     *domain.AnalysisRecord
	UserPlan   *domain.UserPlan // Plan state after the final credit mutation
}

// AnalysisServiceConfig configures the orchestrator.
type AnalysisServiceConfig struct {
	// ProviderTimeout bounds each storage, OCR and AI call. 0 means no bound.
	ProviderTimeout time.Duration

	// KeepExtractedText stores the OCR text with each record.
	KeepExtractedText bool
}

// =============================================================================
// Implementation
// =============================================================================

type analysisService struct {
	credits  CreditService
	uploads  UploadService
	ocr      ocr.Provider
	ai       ai.AIProvider
	checker  *ResumeChecker
	history  store.AnalysisHistory
	cfg      AnalysisServiceConfig
	logger   *slog.Logger
	pipeline func() *domain.Pipeline
}

// NewAnalysisService creates a new AnalysisService instance.
func NewAnalysisService(
	credits CreditService,
	uploads UploadService,
	ocrProvider ocr.Provider,
	aiProvider ai.AIProvider,
	checker *ResumeChecker,
	history store.AnalysisHistory,
	cfg AnalysisServiceConfig,
	logger *slog.Logger,
) AnalysisService {
	if checker == nil {
		checker = NewResumeChecker(DefaultResumeThreshold)
	}
	return &analysisService{
		credits:  credits,
		uploads:  uploads,
		ocr:      ocrProvider,
		ai:       aiProvider,
		checker:  checker,
		history:  history,
		cfg:      cfg,
		logger:   logger,
		pipeline: domain.NewPipeline,
	}
}

// attempt carries the state of one Analyze call.
type attempt struct {
	id       uuid.UUID
	params   AnalyzeParams
	pipeline *domain.Pipeline
	outcome  *AnalysisOutcome
	logger   *slog.Logger
	consumed *domain.UserPlan
}

func (s *analysisService) Analyze(ctx context.Context, params AnalyzeParams) (*AnalysisOutcome, error) {
	const op = "AnalysisService.Analyze"

	// Every call is its own attempt. Consume is idempotent per attempt, so
	// the id is never taken from the caller.
	attemptID := uuid.New()
	a := &attempt{
		id:       attemptID,
		params:   params,
		pipeline: s.pipeline(),
		outcome:  &AnalysisOutcome{AttemptID: attemptID},
		logger: s.logger.With(
			"user_id", params.UserID,
			"attempt_id", attemptID,
		),
	}
	started := time.Now()

	err := s.run(ctx, a)

	a.outcome.State = a.pipeline.State
	a.outcome.Trace = a.pipeline.Trace
	metrics.AnalysesTotal.WithLabelValues(outcomeLabel(a.pipeline.State, err)).Inc()

	if err != nil {
		a.logger.Info("analysis ended",
			"state", a.pipeline.State,
			"error_code", domain.ErrorCode(err),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		if domain.ErrorCode(err) == domain.EINTERNAL {
			a.logger.Error("analysis failed", "op", op, "error", err)
		}
		return a.outcome, err
	}

	a.logger.Info("analysis completed",
		"analysis_id", a.outcome.Record.ID,
		"ats_score", a.outcome.Record.ATSScore.String(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return a.outcome, nil
}

// run walks the pipeline. It returns at the first failure after moving the
// pipeline to its terminal state.
func (s *analysisService) run(ctx context.Context, a *attempt) error {
	const op = "AnalysisService.Analyze"
	p := a.params

	if p.UserID == uuid.Nil {
		return s.fail(a, domain.Unauthorized(op, "Authentication required"))
	}

	opts := p.OCROptions.WithDefaults()
	if err := opts.Validate(); err != nil {
		return s.fail(a, err)
	}

	// Reject bad documents and foreign references before eligibility so
	// the user learns about the file first. Nothing is stored yet.
	ref, err := s.reference(ctx, a)
	if err != nil {
		return s.fail(a, err)
	}

	// 1. Eligibility. No provider is called for a user who cannot pay.
	eligibility, err := s.credits.CheckEligibility(ctx, p.UserID)
	if err != nil {
		return s.fail(a, err)
	}
	if !eligibility.Eligible {
		return s.fail(a, domain.NotEligible(op, eligibility.Reason))
	}
	a.outcome.UserPlan = eligibility.Plan
	a.logger = a.logger.With("user_plan_id", eligibility.Plan.ID)

	// 2. Upload or locate the document.
	doc, err := s.locate(ctx, a, ref)
	if err != nil {
		return s.fail(a, err)
	}
	a.outcome.Document = doc

	// 3. OCR.
	if err := s.transition(a, domain.PipelineExtracting); err != nil {
		return s.fail(a, err)
	}
	extraction, err := s.extract(ctx, a, doc.URL, opts)
	if err != nil {
		return s.fail(a, err)
	}
	a.outcome.Extraction = extraction

	// 4. AI structuring.
	if err := s.transition(a, domain.PipelineStructuring); err != nil {
		return s.fail(a, err)
	}
	result, err := s.structure(ctx, a, extraction.Text, doc.URL)
	if err != nil {
		return s.fail(a, err)
	}
	a.outcome.Structured = &result.Resume

	// 5. Pay for the analysis with the plan chosen at step 1.
	up, err := s.credits.Consume(ctx, domain.CreditMutationParams{
		UserPlanID: eligibility.Plan.ID,
		UserID:     p.UserID,
		AttemptID:  a.id,
	})
	if err != nil {
		if domain.ErrorCode(err) == domain.EPAYMENT {
			err = domain.CreditRace(op)
		}
		return s.fail(a, err)
	}
	a.consumed = up
	a.outcome.UserPlan = up

	// 6. Resume check.
	if err := s.transition(a, domain.PipelineValidating); err != nil {
		return s.fail(a, s.refund(ctx, a, err))
	}
	validation := s.checker.Check(extraction.Text, result.Resume)
	a.outcome.Validation = &validation

	if !validation.IsResume {
		if rerr := s.refund(ctx, a, nil); rerr != nil {
			return s.fail(a, rerr)
		}
		if err := s.transition(a, domain.PipelineRejectedAsNonResume); err != nil {
			return s.fail(a, err)
		}
		a.logger.Info("document rejected as non-resume",
			"score", validation.Score,
			"reasons", len(validation.Reasons),
		)
		return &domain.NonResumeError{Op: op, Validation: validation}
	}

	// 7. Persist.
	record := s.buildRecord(a, doc, extraction, result, opts)
	if _, err := s.history.Append(ctx, record); err != nil {
		cause := domain.Internal(err, op, "We couldn't save your analysis. Your credit has been refunded.")
		return s.fail(a, s.refund(ctx, a, cause))
	}
	a.outcome.Record = record

	return s.transition(a, domain.PipelineCompleted)
}

// reference checks what the caller points at. Uploaded bytes are checked
// against the rule and the checked body replaces a.params.Document, since
// the check consumes the leading bytes of the reader. A public id must
// belong to the user. A URL must be http or https.
func (s *analysisService) reference(ctx context.Context, a *attempt) (*domain.StoredDocument, error) {
	const op = "AnalysisService.Analyze"
	p := a.params

	switch {
	case p.Document != nil:
		body, err := s.uploads.Check(p.Rule, *p.Document)
		if err != nil {
			return nil, err
		}
		doc := *p.Document
		doc.Body = body
		a.params.Document = &doc
		return nil, nil
	case p.PublicID != "":
		return s.uploads.Resolve(ctx, p.UserID, p.PublicID)
	case p.DocumentURL != "":
		u, err := url.Parse(p.DocumentURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, domain.NewValidationError(op, "url", "Document URL must be an http or https URL")
		}
		return &domain.StoredDocument{URL: p.DocumentURL}, nil
	default:
		return nil, domain.NewValidationError(op, "url", "A document is required")
	}
}

// locate moves the pipeline to Uploaded, storing the document first when
// the caller sent bytes. ref is the already resolved document otherwise.
func (s *analysisService) locate(ctx context.Context, a *attempt, ref *domain.StoredDocument) (*domain.StoredDocument, error) {
	p := a.params

	if ref != nil {
		if err := s.transition(a, domain.PipelineUploaded); err != nil {
			return nil, err
		}
		return ref, nil
	}

	if err := s.transition(a, domain.PipelineUploading); err != nil {
		return nil, err
	}
	start := time.Now()
	callCtx, cancel := s.callContext(ctx)
	doc, err := s.uploads.Store(callCtx, p.UserID, p.Rule, *p.Document)
	cancel()
	metrics.Stage("upload", start)
	if err != nil {
		return nil, err
	}
	if err := s.transition(a, domain.PipelineUploaded); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *analysisService) extract(ctx context.Context, a *attempt, docURL string, opts domain.OCROptions) (*domain.Extraction, error) {
	const op = "AnalysisService.extract"

	start := time.Now()
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	extraction, err := s.ocr.Extract(callCtx, ocr.ExtractParams{URL: docURL, Options: opts})
	metrics.Stage("ocr", start)
	if err != nil {
		a.logger.Warn("ocr failed", "error", err, "retryable", ocr.IsRetryable(err))
		if errors.Is(err, ocr.EOCRNoText) {
			return nil, domain.Invalid(op, "We couldn't read any text in this document. Try a text-based PDF.")
		}
		perr := domain.Provider(err, op, "We couldn't read your document right now. Please try again.")
		perr.Retryable = ocr.IsRetryable(err)
		return nil, perr
	}

	a.logger.Debug("ocr completed",
		"pages", extraction.Pages,
		"words", extraction.WordCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return extraction, nil
}

func (s *analysisService) structure(ctx context.Context, a *attempt, text, docURL string) (*ai.StructureResult, error) {
	const op = "AnalysisService.structure"

	start := time.Now()
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	result, err := s.ai.StructureResume(callCtx, ai.StructureParams{
		Text:        text,
		DocumentURL: docURL,
		Model:       a.params.AIModel,
		UserID:      a.params.UserID,
		AttemptID:   a.id,
	})
	metrics.Stage("structure", start)
	if err != nil {
		a.logger.Warn("ai structuring failed", "error", err, "retryable", ai.IsRetryable(err))
		if errors.Is(err, ai.EAIInvalidInput) && a.params.AIModel != "" {
			return nil, domain.NewValidationError(op, "aiModel", "The requested AI model is not available")
		}
		perr := domain.Provider(err, op, "We couldn't analyze your resume right now. Please try again.")
		perr.Retryable = ai.IsRetryable(err)
		return nil, perr
	}
	return result, nil
}

// refund returns the attempt's credit. It runs on a context detached from
// the request so a client disconnect cannot skip it. cause is returned when
// the refund succeeds.
func (s *analysisService) refund(ctx context.Context, a *attempt, cause error) error {
	const op = "AnalysisService.refund"

	if a.consumed == nil {
		return cause
	}

	up, err := s.credits.Refund(context.WithoutCancel(ctx), domain.CreditMutationParams{
		UserPlanID: a.consumed.ID,
		UserID:     a.params.UserID,
		AttemptID:  a.id,
	})
	if err != nil {
		a.logger.Error("credit refund failed", "error", err)
		return domain.Internal(err, op, "Your analysis failed and we couldn't refund the credit. Please contact support.")
	}
	a.outcome.UserPlan = up
	return cause
}

func (s *analysisService) buildRecord(a *attempt, doc *domain.StoredDocument, extraction *domain.Extraction, result *ai.StructureResult, opts domain.OCROptions) *domain.AnalysisRecord {
	resume := result.Resume

	model := result.Usage.Model
	if model == "" {
		model = s.ai.Model()
	}

	fileName := a.params.FileName
	if fileName == "" && a.params.Document != nil {
		fileName = a.params.Document.FileName
	}

	var planID *uuid.UUID
	if a.consumed != nil {
		id := a.consumed.ID
		planID = &id
	}

	keywords := []string(resume.Keywords)
	if keywords == nil {
		keywords = []string{}
	}

	record := &domain.AnalysisRecord{
		UserID:      a.params.UserID,
		UserPlanID:  planID,
		AttemptID:   a.id,
		DocumentURL: doc.URL,
		DocumentKey: doc.PublicID,
		FileName:    fileName,
		Structured:  resume,
		ATSScore:    resume.ATSScore,
		Summary:     resume.Summary,
		Keywords:    keywords,
		OCRLanguage: opts.Language,
		OCROptions:  &opts,
		AIModel:     model,
	}
	if s.cfg.KeepExtractedText {
		record.ExtractedText = extraction.Text
	}
	return record
}

func (s *analysisService) transition(a *attempt, target domain.PipelineState) error {
	from := a.pipeline.State
	if err := a.pipeline.TransitionTo(target); err != nil {
		return err
	}
	a.logger.Debug("analysis state changed", "from", from, "to", target)
	return nil
}

// fail moves the pipeline to Failed unless it already ended, and returns err.
func (s *analysisService) fail(a *attempt, err error) error {
	if !a.pipeline.State.IsTerminal() {
		_ = s.transition(a, domain.PipelineFailed)
	}
	return err
}

func (s *analysisService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProviderTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProviderTimeout)
}

func outcomeLabel(state domain.PipelineState, err error) string {
	switch state {
	case domain.PipelineCompleted:
		return "completed"
	case domain.PipelineRejectedAsNonResume:
		return "not_resume"
	}
	switch domain.ErrorCode(err) {
	case domain.EPAYMENT:
		return "not_eligible"
	case domain.EINVALID, domain.ETOOLARGE:
		return "rejected_upload"
	case domain.EPROVIDER:
		return "provider_error"
	}
	return "failed"
}
