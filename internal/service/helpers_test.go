package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	aimock "github.com/DukeRupert/resumezen/internal/ai/mock"
	"github.com/DukeRupert/resumezen/internal/domain"
	ocrmock "github.com/DukeRupert/resumezen/internal/ocr/mock"
	"github.com/DukeRupert/resumezen/internal/storage"
	"github.com/DukeRupert/resumezen/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int32Ptr(v int32) *int32 { return &v }

func testPlans() []domain.Plan {
	return []domain.Plan{
		{ID: "starter", Name: "Starter Pack", PriceCents: 499, Currency: "usd", Credits: 1, IsActive: true, SortOrder: 10},
		{ID: "boost", Name: "Boost Pack", PriceCents: 999, Currency: "usd", Credits: 5, IsActive: true, SortOrder: 20},
		{ID: "pro", Name: "Pro Pack", PriceCents: 1999, Currency: "usd", Credits: 15, DurationDays: int32Ptr(90), IsActive: true, SortOrder: 30},
		{ID: "unlimited-30", Name: "Unlimited Monthly", PriceCents: 2999, Currency: "usd", IsUnlimited: true, DurationDays: int32Ptr(30), IsActive: true, SortOrder: 40},
	}
}

// testEnv wires every service against in-memory and mock dependencies.
type testEnv struct {
	store    *store.Memory
	storage  *storage.LocalStorage
	baseDir  string
	ocr      *ocrmock.Provider
	ai       *aimock.Provider
	catalog  PlanCatalog
	credits  CreditService
	uploads  UploadService
	history  HistoryService
	analysis AnalysisService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithHistory(t, nil)
}

// newTestEnvWithHistory lets a test replace the analysis history store.
func newTestEnvWithHistory(t *testing.T, history store.AnalysisHistory) *testEnv {
	t.Helper()
	logger := discardLogger()

	mem := store.NewMemory(testPlans()...)
	baseDir := t.TempDir()
	local, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: baseDir,
		BaseURL:  "http://localhost:8080/files",
	}, logger)
	require.NoError(t, err)

	if history == nil {
		history = mem
	}

	env := &testEnv{
		store:   mem,
		storage: local,
		baseDir: baseDir,
		ocr:     ocrmock.New(logger),
		ai:      aimock.New(logger),
	}
	env.catalog = NewPlanCatalog(mem, time.Minute, logger)
	env.credits = NewCreditService(mem, env.catalog, CreditServiceConfig{}, logger)
	env.uploads = NewUploadService(local, UploadServiceConfig{}, logger)
	env.history = NewHistoryService(history, logger)
	env.analysis = NewAnalysisService(
		env.credits,
		env.uploads,
		env.ocr,
		env.ai,
		NewResumeChecker(DefaultResumeThreshold),
		history,
		AnalysisServiceConfig{ProviderTimeout: 5 * time.Second},
		logger,
	)
	return env
}

func (e *testEnv) buy(t *testing.T, userID uuid.UUID, planID string) *domain.UserPlan {
	t.Helper()
	up, created, err := e.credits.Purchase(context.Background(), domain.PurchasePlanParams{
		UserID: userID,
		PlanID: planID,
	})
	require.NoError(t, err)
	require.True(t, created)
	return up
}

func (e *testEnv) creditsLeft(t *testing.T, userPlanID uuid.UUID) int32 {
	t.Helper()
	up, err := e.store.GetUserPlan(context.Background(), userPlanID)
	require.NoError(t, err)
	return up.CreditsLeft
}

// storedFiles counts the files written to local storage.
func (e *testEnv) storedFiles(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(e.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

// pdfBytes returns a minimal document that sniffs as PDF.
func pdfBytes(size int) []byte {
	head := []byte("%PDF-1.7\n")
	if size < len(head) {
		size = len(head)
	}
	b := bytes.Repeat([]byte("a"), size)
	copy(b, head)
	return b
}

func pdfDocument(size int) *domain.UploadedDocument {
	data := pdfBytes(size)
	return &domain.UploadedDocument{
		FileName:    "resume.pdf",
		ContentType: domain.ContentTypePDF,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}
}

// failingHistory stores nothing and fails every Append.
type failingHistory struct {
	store.AnalysisHistory
	appends int
}

var errHistoryDown = errors.New("history unavailable")

func (f *failingHistory) Append(ctx context.Context, record *domain.AnalysisRecord) (uuid.UUID, error) {
	f.appends++
	return uuid.Nil, errHistoryDown
}
