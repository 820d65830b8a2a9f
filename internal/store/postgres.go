package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/repository"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Postgres implements PlanLedger and AnalysisHistory on top of the sqlc
// queries. Credit mutations run in a transaction together with their
// settlement row.
type Postgres struct {
	db      *sql.DB
	queries *repository.Queries
}

// NewPostgres creates a Postgres store.
func NewPostgres(db *sql.DB, queries *repository.Queries) *Postgres {
	return &Postgres{db: db, queries: queries}
}

var (
	_ PlanLedger      = (*Postgres)(nil)
	_ AnalysisHistory = (*Postgres)(nil)
)

// runInTx runs fn inside a transaction, committing when fn returns nil.
func (s *Postgres) runInTx(ctx context.Context, fn func(q *repository.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// Plan catalog
// =============================================================================

func (s *Postgres) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	rows, err := s.queries.ListActivePlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	plans := make([]domain.Plan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, planFromRow(row))
	}
	return plans, nil
}

func (s *Postgres) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	row, err := s.queries.GetPlanByID(ctx, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	p := planFromRow(row)
	return &p, nil
}

// =============================================================================
// User plans
// =============================================================================

func (s *Postgres) GrantPlan(ctx context.Context, params GrantParams) (*domain.UserPlan, bool, error) {
	paymentRef := domain.ToNullString(params.PaymentRef)
	if paymentRef.Valid {
		existing, err := s.queries.GetUserPlanByPaymentRef(ctx, paymentRef)
		if err == nil {
			up := userPlanFromRow(existing, params.Plan.Name)
			return &up, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("get user plan by payment ref: %w", err)
		}
	}

	row, err := s.queries.CreateUserPlan(ctx, repository.CreateUserPlanParams{
		UserID:      params.UserID,
		PlanID:      params.Plan.ID,
		CreditsLeft: params.Plan.Credits,
		IsUnlimited: params.Plan.IsUnlimited,
		PurchasedAt: params.PurchasedAt,
		ExpiresAt:   domain.ToNullTime(params.Plan.ExpiresAt(params.PurchasedAt)),
		PaymentRef:  paymentRef,
	})
	if err != nil {
		// A concurrent webhook delivery may have inserted the same payment.
		if paymentRef.Valid {
			if existing, lookupErr := s.queries.GetUserPlanByPaymentRef(ctx, paymentRef); lookupErr == nil {
				up := userPlanFromRow(existing, params.Plan.Name)
				return &up, false, nil
			}
		}
		return nil, false, fmt.Errorf("create user plan: %w", err)
	}

	up := userPlanFromRow(row, params.Plan.Name)
	return &up, true, nil
}

func (s *Postgres) GetUserPlan(ctx context.Context, id uuid.UUID) (*domain.UserPlan, error) {
	row, err := s.queries.GetUserPlanByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user plan: %w", err)
	}
	up := userPlanFromRow(row, "")
	return &up, nil
}

func (s *Postgres) ListUserPlans(ctx context.Context, userID uuid.UUID) ([]domain.UserPlan, error) {
	rows, err := s.queries.ListUserPlansByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user plans: %w", err)
	}
	plans := make([]domain.UserPlan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, userPlanFromRow(row, ""))
	}
	return plans, nil
}

func (s *Postgres) Consume(ctx context.Context, userPlanID, attemptID uuid.UUID) (*domain.UserPlan, error) {
	var result repository.UserPlan
	err := s.runInTx(ctx, func(q *repository.Queries) error {
		if attemptID != uuid.Nil {
			n, err := q.CreateCreditSettlement(ctx, repository.CreateCreditSettlementParams{
				AttemptID:  attemptID,
				Kind:       string(domain.SettlementConsume),
				UserPlanID: userPlanID,
			})
			if err != nil {
				return fmt.Errorf("record consume: %w", err)
			}
			if n == 0 {
				// Already consumed for this attempt.
				row, err := q.GetUserPlanByID(ctx, userPlanID)
				if err != nil {
					return mapNoRows(err, "get user plan")
				}
				result = row
				return nil
			}
		}

		row, err := q.ConsumeUserPlanCredit(ctx, userPlanID)
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := q.GetUserPlanByID(ctx, userPlanID); errors.Is(getErr, sql.ErrNoRows) {
				return ErrNotFound
			}
			return ErrNotEligible
		}
		if err != nil {
			return fmt.Errorf("consume credit: %w", err)
		}
		result = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	up := userPlanFromRow(result, "")
	return &up, nil
}

func (s *Postgres) Refund(ctx context.Context, userPlanID, attemptID uuid.UUID) (*domain.UserPlan, error) {
	var result repository.UserPlan
	err := s.runInTx(ctx, func(q *repository.Queries) error {
		if attemptID == uuid.Nil {
			return ErrNotConsumed
		}
		consumed, err := q.GetCreditSettlement(ctx, repository.GetCreditSettlementParams{
			AttemptID: attemptID,
			Kind:      string(domain.SettlementConsume),
		})
		if errors.Is(err, sql.ErrNoRows) || (err == nil && consumed.UserPlanID != userPlanID) {
			return ErrNotConsumed
		}
		if err != nil {
			return fmt.Errorf("get consume settlement: %w", err)
		}

		n, err := q.CreateCreditSettlement(ctx, repository.CreateCreditSettlementParams{
			AttemptID:  attemptID,
			Kind:       string(domain.SettlementRefund),
			UserPlanID: userPlanID,
		})
		if err != nil {
			return fmt.Errorf("record refund: %w", err)
		}
		if n == 0 {
			// Already refunded for this attempt.
			row, err := q.GetUserPlanByID(ctx, userPlanID)
			if err != nil {
				return mapNoRows(err, "get user plan")
			}
			result = row
			return nil
		}

		completed, err := q.ResumeAnalysisExistsForAttempt(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("check attempt analysis: %w", err)
		}
		if completed {
			return ErrAttemptCompleted
		}

		row, err := q.RefundUserPlanCredit(ctx, userPlanID)
		if err != nil {
			return mapNoRows(err, "refund credit")
		}
		result = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	up := userPlanFromRow(result, "")
	return &up, nil
}

func (s *Postgres) ExpirePlans(ctx context.Context) (int64, error) {
	n, err := s.queries.DeactivateExpiredUserPlans(ctx)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired plans: %w", err)
	}
	return n, nil
}

// =============================================================================
// Analysis history
// =============================================================================

func (s *Postgres) Append(ctx context.Context, record *domain.AnalysisRecord) (uuid.UUID, error) {
	structured, err := json.Marshal(record.Structured)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal structured resume: %w", err)
	}

	var ocrOptions pqtype.NullRawMessage
	if record.OCROptions != nil {
		raw, err := json.Marshal(record.OCROptions)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal ocr options: %w", err)
		}
		ocrOptions = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	var atsScore sql.NullInt32
	if record.ATSScore.Valid {
		atsScore = sql.NullInt32{Int32: int32(record.ATSScore.Value), Valid: true}
	}

	keywords := record.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	row, err := s.queries.CreateResumeAnalysis(ctx, repository.CreateResumeAnalysisParams{
		UserID:        record.UserID,
		UserPlanID:    domain.ToNullUUID(record.UserPlanID),
		AttemptID:     record.AttemptID,
		DocumentUrl:   record.DocumentURL,
		DocumentKey:   domain.ToNullString(record.DocumentKey),
		FileName:      domain.ToNullString(record.FileName),
		Structured:    structured,
		AtsScore:      atsScore,
		Summary:       record.Summary,
		Keywords:      keywords,
		ExtractedText: record.ExtractedText,
		OcrLanguage:   record.OCRLanguage,
		OcrOptions:    ocrOptions,
		AiModel:       record.AIModel,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create resume analysis: %w", err)
	}

	record.ID = row.ID
	record.CreatedAt = row.CreatedAt
	return row.ID, nil
}

func (s *Postgres) ListByUser(ctx context.Context, params domain.ListAnalysesParams) ([]domain.AnalysisRecord, int64, error) {
	params.Normalize()

	total, err := s.queries.CountResumeAnalysesByUser(ctx, params.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("count resume analyses: %w", err)
	}

	rows, err := s.queries.ListResumeAnalysesByUser(ctx, repository.ListResumeAnalysesByUserParams{
		UserID: params.UserID,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list resume analyses: %w", err)
	}

	records := make([]domain.AnalysisRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, nil
}

func (s *Postgres) Get(ctx context.Context, userID, id uuid.UUID) (*domain.AnalysisRecord, error) {
	row, err := s.queries.GetResumeAnalysisByID(ctx, repository.GetResumeAnalysisByIDParams{
		ID:     id,
		UserID: userID,
	})
	if err != nil {
		return nil, mapNoRows(err, "get resume analysis")
	}
	rec, err := recordFromRow(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// Row conversion
// =============================================================================

func mapNoRows(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func planFromRow(row repository.Plan) domain.Plan {
	p := domain.Plan{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		PriceCents:  row.PriceCents,
		Currency:    row.Currency,
		Credits:     row.Credits,
		IsUnlimited: row.IsUnlimited,
		Features:    row.Features,
		IsActive:    row.IsActive,
		SortOrder:   row.SortOrder,
		CreatedAt:   row.CreatedAt,
	}
	if row.DurationDays.Valid {
		d := row.DurationDays.Int32
		p.DurationDays = &d
	}
	return p
}

func userPlanFromRow(row repository.UserPlan, planName string) domain.UserPlan {
	return domain.UserPlan{
		ID:              row.ID,
		UserID:          row.UserID,
		PlanID:          row.PlanID,
		PlanName:        planName,
		CreditsLeft:     row.CreditsLeft,
		OriginalCredits: row.OriginalCredits,
		IsUnlimited:     row.IsUnlimited,
		IsActive:        row.IsActive,
		PurchasedAt:     row.PurchasedAt,
		ExpiresAt:       domain.NullTimeValue(row.ExpiresAt),
		PaymentRef:      domain.NullStringValue(row.PaymentRef),
	}
}

func recordFromRow(row repository.ResumeAnalysis) (domain.AnalysisRecord, error) {
	rec := domain.AnalysisRecord{
		ID:            row.ID,
		UserID:        row.UserID,
		UserPlanID:    domain.NullUUIDValue(row.UserPlanID),
		AttemptID:     row.AttemptID,
		DocumentURL:   row.DocumentUrl,
		DocumentKey:   domain.NullStringValue(row.DocumentKey),
		FileName:      domain.NullStringValue(row.FileName),
		Summary:       row.Summary,
		Keywords:      row.Keywords,
		ExtractedText: row.ExtractedText,
		OCRLanguage:   row.OcrLanguage,
		AIModel:       row.AiModel,
		CreatedAt:     row.CreatedAt,
	}
	if row.AtsScore.Valid {
		rec.ATSScore = domain.NewATSScore(int(row.AtsScore.Int32))
	}
	if err := json.Unmarshal(row.Structured, &rec.Structured); err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("unmarshal structured resume %s: %w", row.ID, err)
	}
	if row.OcrOptions.Valid {
		var opts domain.OCROptions
		if err := json.Unmarshal(row.OcrOptions.RawMessage, &opts); err == nil {
			rec.OCROptions = &opts
		}
	}
	return rec, nil
}
