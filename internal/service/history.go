package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/store"
	"github.com/google/uuid"
)

// HistoryService reads a user's past analyses. Records are never updated
// or deleted.
type HistoryService interface {
	// List returns a page of the user's analyses, most recent first, and
	// the user's total analysis count.
	List(ctx context.Context, params domain.ListAnalysesParams) ([]domain.AnalysisRecord, int64, error)

	// Get returns one analysis. Returns domain.ENOTFOUND when the record
	// does not exist or belongs to another user.
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.AnalysisRecord, error)
}

type historyService struct {
	history store.AnalysisHistory
	logger  *slog.Logger
}

// NewHistoryService creates a new HistoryService instance.
func NewHistoryService(history store.AnalysisHistory, logger *slog.Logger) HistoryService {
	return &historyService{history: history, logger: logger}
}

func (s *historyService) List(ctx context.Context, params domain.ListAnalysesParams) ([]domain.AnalysisRecord, int64, error) {
	const op = "HistoryService.List"

	params.Normalize()
	records, total, err := s.history.ListByUser(ctx, params)
	if err != nil {
		return nil, 0, domain.Internal(err, op, "Failed to load analysis history")
	}
	if records == nil {
		records = []domain.AnalysisRecord{}
	}
	return records, total, nil
}

func (s *historyService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.AnalysisRecord, error) {
	const op = "HistoryService.Get"

	record, err := s.history.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFound(op, "analysis", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to load analysis")
	}
	return record, nil
}
