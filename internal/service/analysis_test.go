package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/DukeRupert/resumezen/internal/ai"
	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/ocr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceText = `INVOICE #10442
Bill to: Acme Corp, 12 Harbor Road
Item: Office chairs x4   $480.00
Item: Delivery           $35.00
Total due: $515.00
Payment terms: net 30`

func TestAnalysisService_Analyze_BoostPackCompletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	up := env.buy(t, userID, "boost")
	require.Equal(t, int32(5), up.CreditsLeft)

	outcome, err := env.analysis.Analyze(ctx, AnalyzeParams{
		UserID:   userID,
		Document: pdfDocument(2048),
		Rule:     domain.GenericUploadRule(0),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PipelineCompleted, outcome.State)
	assert.Equal(t, int32(4), env.creditsLeft(t, up.ID))
	require.NotNil(t, outcome.Record)
	assert.NotEqual(t, uuid.Nil, outcome.Record.ID)
	assert.True(t, outcome.Record.ATSScore.Valid)
	assert.Equal(t, 78, outcome.Record.ATSScore.Value)
	assert.Equal(t, "resume.pdf", outcome.Record.FileName)
	assert.Equal(t, "mock-ai-v1", outcome.Record.AIModel)
	assert.Equal(t, "eng", outcome.Record.OCRLanguage)
	require.NotNil(t, outcome.Validation)
	assert.True(t, outcome.Validation.IsResume)

	// The document was stored under the user's prefix before OCR saw it.
	require.NotNil(t, outcome.Document)
	assert.Contains(t, outcome.Document.PublicID, "resumes/"+userID.String()+"/")
	assert.Equal(t, outcome.Document.URL, env.ocr.LastParams.URL)

	wantStates := []domain.PipelineState{
		domain.PipelineUploading,
		domain.PipelineUploaded,
		domain.PipelineExtracting,
		domain.PipelineStructuring,
		domain.PipelineValidating,
		domain.PipelineCompleted,
	}
	require.Len(t, outcome.Trace, len(wantStates))
	for i, change := range outcome.Trace {
		assert.Equal(t, wantStates[i], change.To, "transition %d", i)
	}

	records, total, err := env.history.List(ctx, domain.ListAnalysesParams{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, outcome.Record.ID, records[0].ID)
}

func TestAnalysisService_Analyze_NonResumeRefunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	up := env.buy(t, userID, "boost")

	_, err := env.analysis.Analyze(ctx, AnalyzeParams{UserID: userID, Document: pdfDocument(1024), Rule: domain.GenericUploadRule(0)})
	require.NoError(t, err)
	require.Equal(t, int32(4), env.creditsLeft(t, up.ID))

	env.ocr.ExtractResponse = &domain.Extraction{Text: invoiceText, Pages: 1}

	outcome, err := env.analysis.Analyze(ctx, AnalyzeParams{UserID: userID, Document: pdfDocument(1024), Rule: domain.GenericUploadRule(0)})
	require.Error(t, err)

	var nr *domain.NonResumeError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, domain.ENOTRESUME, domain.ErrorCode(err))
	assert.False(t, nr.Validation.IsResume)
	assert.Less(t, nr.Validation.Score, DefaultResumeThreshold)
	assert.NotEmpty(t, nr.Validation.Reasons)

	assert.Equal(t, domain.PipelineRejectedAsNonResume, outcome.State)
	assert.Nil(t, outcome.Record)
	assert.Equal(t, int32(4), env.creditsLeft(t, up.ID))
	require.NotNil(t, outcome.UserPlan)
	assert.Equal(t, int32(4), outcome.UserPlan.CreditsLeft)

	_, total, err := env.history.List(ctx, domain.ListAnalysesParams{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestAnalysisService_Analyze_NoCreditsRejectedBeforeProviders(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, env *testEnv, userID uuid.UUID)
		wantReason string
	}{
		{
			name:       "no plan",
			setup:      func(t *testing.T, env *testEnv, userID uuid.UUID) {},
			wantReason: domain.ReasonNoPlan,
		},
		{
			name: "zero credits",
			setup: func(t *testing.T, env *testEnv, userID uuid.UUID) {
				up := env.buy(t, userID, "starter")
				_, err := env.credits.Consume(context.Background(), domain.CreditMutationParams{UserPlanID: up.ID, AttemptID: uuid.New()})
				require.NoError(t, err)
			},
			wantReason: domain.ReasonNoCredits,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			userID := uuid.New()
			tt.setup(t, env, userID)

			outcome, err := env.analysis.Analyze(context.Background(), AnalyzeParams{
				UserID:   userID,
				Document: pdfDocument(1024),
				Rule:     domain.GenericUploadRule(0),
			})
			require.Error(t, err)
			assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
			assert.Equal(t, tt.wantReason, domain.ErrorMessage(err))
			assert.Equal(t, domain.PipelineFailed, outcome.State)
			assert.Nil(t, outcome.Document)
			assert.Equal(t, 0, env.ocr.Calls())
			assert.Equal(t, 0, env.ai.Calls())
		})
	}
}

func TestAnalysisService_Analyze_RejectedUploadMakesNoCalls(t *testing.T) {
	tests := []struct {
		name     string
		doc      func() *domain.UploadedDocument
		rule     domain.UploadRule
		wantCode string
	}{
		{
			name: "image on generic uploader",
			doc: func() *domain.UploadedDocument {
				d := pdfDocument(100)
				d.ContentType = "image/png"
				return d
			},
			rule:     domain.GenericUploadRule(0),
			wantCode: domain.EINVALID,
		},
		{
			name: "docx on quick analyze",
			doc: func() *domain.UploadedDocument {
				d := pdfDocument(100)
				d.ContentType = domain.ContentTypeDOCX
				return d
			},
			rule:     domain.QuickUploadRule(0),
			wantCode: domain.EINVALID,
		},
		{
			name:     "one byte over the ceiling",
			doc:      func() *domain.UploadedDocument { return pdfDocument(1025) },
			rule:     domain.QuickUploadRule(1024),
			wantCode: domain.ETOOLARGE,
		},
		{
			name: "declared pdf without pdf content",
			doc: func() *domain.UploadedDocument {
				d := pdfDocument(100)
				d.Body = strings.NewReader("just some text pretending to be a pdf")
				return d
			},
			rule:     domain.GenericUploadRule(0),
			wantCode: domain.EINVALID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			userID := uuid.New()
			up := env.buy(t, userID, "boost")

			outcome, err := env.analysis.Analyze(context.Background(), AnalyzeParams{
				UserID:   userID,
				Document: tt.doc(),
				Rule:     tt.rule,
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			assert.Equal(t, domain.PipelineFailed, outcome.State)
			assert.Equal(t, 0, env.ocr.Calls())
			assert.Equal(t, 0, env.ai.Calls())
			assert.Equal(t, int32(5), env.creditsLeft(t, up.ID))
			assert.Zero(t, env.storedFiles(t))
		})
	}
}

func TestAnalysisService_Analyze_SizeAtCeilingAccepted(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.buy(t, userID, "boost")

	outcome, err := env.analysis.Analyze(context.Background(), AnalyzeParams{
		UserID:   userID,
		Document: pdfDocument(1024),
		Rule:     domain.QuickUploadRule(1024),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineCompleted, outcome.State)
	assert.Equal(t, int64(1024), outcome.Document.Size)
}

func TestAnalysisService_Analyze_PersistFailureRefunds(t *testing.T) {
	failing := &failingHistory{}
	env := newTestEnvWithHistory(t, failing)
	userID := uuid.New()
	up := env.buy(t, userID, "boost")

	outcome, err := env.analysis.Analyze(context.Background(), AnalyzeParams{
		UserID:   userID,
		Document: pdfDocument(1024),
		Rule:     domain.GenericUploadRule(0),
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.ErrorIs(t, err, errHistoryDown)
	assert.Equal(t, 1, failing.appends)
	assert.Equal(t, domain.PipelineFailed, outcome.State)
	assert.Nil(t, outcome.Record)
	assert.Equal(t, int32(5), env.creditsLeft(t, up.ID))
}

func TestAnalysisService_Analyze_ProviderFailures(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(env *testEnv)
		wantCode      string
		wantRetryable bool
		wantAICalls   int
	}{
		{
			name:          "ocr timeout",
			setup:         func(env *testEnv) { env.ocr.ExtractError = ocr.WrapError("extract", ocr.EOCRTimeout) },
			wantCode:      domain.EPROVIDER,
			wantRetryable: true,
		},
		{
			name:     "ocr no text",
			setup:    func(env *testEnv) { env.ocr.ExtractError = ocr.EOCRNoText },
			wantCode: domain.EINVALID,
		},
		{
			name:          "ai unavailable",
			setup:         func(env *testEnv) { env.ai.StructureResumeError = ai.WrapError("structure", ai.EAIUnavailable) },
			wantCode:      domain.EPROVIDER,
			wantRetryable: true,
			wantAICalls:   1,
		},
		{
			name:        "ai malformed output",
			setup:       func(env *testEnv) { env.ai.StructureResumeError = ai.EAIMalformedOutput },
			wantCode:    domain.EPROVIDER,
			wantAICalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			userID := uuid.New()
			up := env.buy(t, userID, "boost")
			tt.setup(env)

			outcome, err := env.analysis.Analyze(context.Background(), AnalyzeParams{
				UserID:   userID,
				Document: pdfDocument(1024),
				Rule:     domain.GenericUploadRule(0),
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			assert.Equal(t, tt.wantRetryable, domain.IsRetryable(err))
			assert.Equal(t, domain.PipelineFailed, outcome.State)

			// One attempt per provider, never an automatic retry.
			assert.Equal(t, 1, env.ocr.Calls())
			assert.Equal(t, tt.wantAICalls, env.ai.Calls())
			assert.Equal(t, int32(5), env.creditsLeft(t, up.ID))
		})
	}
}

func TestAnalysisService_Analyze_ByPublicID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	up := env.buy(t, userID, "boost")

	stored, err := env.uploads.Store(ctx, userID, domain.GenericUploadRule(0), *pdfDocument(512))
	require.NoError(t, err)

	outcome, err := env.analysis.Analyze(ctx, AnalyzeParams{
		UserID:     userID,
		PublicID:   stored.PublicID,
		OCROptions: domain.OCROptions{Language: "ger", Engine: 1},
		AIModel:    "",
	})
	require.NoError(t, err)
	assert.Equal(t, stored.PublicID, outcome.Record.DocumentKey)
	assert.Equal(t, "ger", env.ocr.LastParams.Options.Language)
	assert.Equal(t, 1, env.ocr.LastParams.Options.Engine)
	assert.Equal(t, int32(4), env.creditsLeft(t, up.ID))
	assert.Equal(t, domain.PipelineUploaded, outcome.Trace[0].To)

	// Another user's key is not found and costs nothing.
	other := uuid.New()
	otherPlan := env.buy(t, other, "boost")
	_, err = env.analysis.Analyze(ctx, AnalyzeParams{UserID: other, PublicID: stored.PublicID})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, int32(5), env.creditsLeft(t, otherPlan.ID))
}

func TestAnalysisService_Analyze_ForeignPublicIDBeforeEligibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()

	stored, err := env.uploads.Store(ctx, owner, domain.GenericUploadRule(0), *pdfDocument(512))
	require.NoError(t, err)

	// The caller has no plan, but the foreign key is reported first.
	outcome, err := env.analysis.Analyze(ctx, AnalyzeParams{UserID: uuid.New(), PublicID: stored.PublicID})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, domain.PipelineFailed, outcome.State)
	assert.Equal(t, 0, env.ocr.Calls())
	assert.Equal(t, 0, env.ai.Calls())
}

func TestAnalysisService_Analyze_StoresWholeDocument(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"shorter than the sniff window", 300},
		{"longer than the sniff window", 4096},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			userID := uuid.New()
			up := env.buy(t, userID, "boost")

			data := pdfBytes(tt.size)
			doc := &domain.UploadedDocument{
				FileName:    "resume.pdf",
				ContentType: domain.ContentTypePDF,
				Size:        int64(len(data)),
				// Not seekable: the check cannot rewind it.
				Body: struct{ io.Reader }{bytes.NewReader(data)},
			}

			outcome, err := env.analysis.Analyze(context.Background(), AnalyzeParams{
				UserID:   userID,
				Document: doc,
				Rule:     domain.GenericUploadRule(0),
			})
			require.NoError(t, err)
			assert.Equal(t, domain.PipelineCompleted, outcome.State)
			assert.Equal(t, int32(4), env.creditsLeft(t, up.ID))

			saved, err := os.ReadFile(filepath.Join(env.baseDir, outcome.Document.PublicID))
			require.NoError(t, err)
			assert.Equal(t, data, saved)
		})
	}
}

func TestAnalysisService_Analyze_EachCallIsNewAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	up := env.buy(t, userID, "boost")

	seen := map[uuid.UUID]bool{}
	for i := 0; i < 3; i++ {
		outcome, err := env.analysis.Analyze(ctx, AnalyzeParams{UserID: userID, DocumentURL: "https://cdn.example.com/cv.pdf"})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, outcome.AttemptID)
		assert.Equal(t, outcome.AttemptID, outcome.Record.AttemptID)
		seen[outcome.AttemptID] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, int32(2), env.creditsLeft(t, up.ID))

	// A completed attempt keeps its credit spent.
	for id := range seen {
		_, err := env.credits.Refund(ctx, domain.CreditMutationParams{UserPlanID: up.ID, UserID: userID, AttemptID: id})
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	}
	assert.Equal(t, int32(2), env.creditsLeft(t, up.ID))
}

func TestAnalysisService_Analyze_ByURL(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.buy(t, userID, "unlimited-30")

	_, err := env.analysis.Analyze(context.Background(), AnalyzeParams{UserID: userID, DocumentURL: "ftp://example.com/cv.pdf"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, 0, env.ocr.Calls())

	outcome, err := env.analysis.Analyze(context.Background(), AnalyzeParams{UserID: userID, DocumentURL: "https://cdn.example.com/cv.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/cv.pdf", env.ocr.LastParams.URL)
	assert.Equal(t, int32(0), outcome.UserPlan.CreditsLeft)
	assert.True(t, outcome.UserPlan.IsUnlimited)
}

func TestAnalysisService_Analyze_InvalidOCROptions(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.buy(t, userID, "boost")

	_, err := env.analysis.Analyze(context.Background(), AnalyzeParams{
		UserID:      userID,
		DocumentURL: "https://cdn.example.com/cv.pdf",
		OCROptions:  domain.OCROptions{Engine: 7},
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, 0, env.ocr.Calls())
}

func TestAnalysisService_Analyze_ConcurrentLastCredit(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	up := env.buy(t, userID, "starter")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.analysis.Analyze(context.Background(), AnalyzeParams{
				UserID:      userID,
				DocumentURL: "https://cdn.example.com/cv.pdf",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int32(0), env.creditsLeft(t, up.ID))

	_, total, err := env.history.List(context.Background(), domain.ListAnalysesParams{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestAnalysisService_Analyze_NonResumeByURLNetsZero(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	up := env.buy(t, userID, "boost")
	env.ocr.ExtractResponse = &domain.Extraction{Text: invoiceText, Pages: 1}

	_, err := env.analysis.Analyze(context.Background(), AnalyzeParams{
		UserID:      userID,
		DocumentURL: "https://cdn.example.com/invoice.pdf",
	})
	var nr *domain.NonResumeError
	require.True(t, errors.As(err, &nr))
	assert.Equal(t, int32(5), env.creditsLeft(t, up.ID))
}
