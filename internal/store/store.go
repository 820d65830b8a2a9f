// Package store persists the plan ledger and the analysis history.
//
// Two implementations are provided: Postgres (production) and an in-memory
// store used by tests and local runs without a database. Both give the same
// guarantees: credit mutations on one user plan are atomic, credits stay
// within [0, original grant], and consume/refund are idempotent per attempt.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a plan, user plan or record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrNotEligible is returned by Consume when the plan is inactive,
	// expired or out of credits at the moment of the update.
	ErrNotEligible = errors.New("store: plan not eligible")

	// ErrNotConsumed is returned by Refund when the attempt never consumed a
	// credit from the given plan.
	ErrNotConsumed = errors.New("store: no credit consumed for attempt")

	// ErrAttemptCompleted is returned by Refund when the attempt produced a
	// stored analysis. Its credit paid for that analysis.
	ErrAttemptCompleted = errors.New("store: attempt has a stored analysis")
)

// =============================================================================
// Interface Definitions
// =============================================================================

// PlanLedger holds the plan catalog and the per-user plan ledger.
type PlanLedger interface {
	// ListPlans returns the published catalog ordered for display.
	ListPlans(ctx context.Context) ([]domain.Plan, error)

	// GetPlan returns a catalog plan by slug.
	GetPlan(ctx context.Context, planID string) (*domain.Plan, error)

	// GrantPlan records a purchase. When PaymentRef is set and already
	// recorded, the existing user plan is returned and created is false.
	GrantPlan(ctx context.Context, params GrantParams) (plan *domain.UserPlan, created bool, err error)

	// GetUserPlan returns a user plan by ID.
	GetUserPlan(ctx context.Context, id uuid.UUID) (*domain.UserPlan, error)

	// ListUserPlans returns every plan a user bought, most recent first.
	ListUserPlans(ctx context.Context, userID uuid.UUID) ([]domain.UserPlan, error)

	// Consume spends one credit. Unlimited plans succeed without change.
	// A repeat call with the same attempt ID is a no-op.
	Consume(ctx context.Context, userPlanID, attemptID uuid.UUID) (*domain.UserPlan, error)

	// Refund returns one credit, capped at the original grant. The
	// attempt must have consumed from this plan and must not have a
	// stored analysis. A repeat call with the same attempt ID is a no-op.
	Refund(ctx context.Context, userPlanID, attemptID uuid.UUID) (*domain.UserPlan, error)

	// ExpirePlans clears IsActive on plans whose expiry has passed.
	ExpirePlans(ctx context.Context) (int64, error)
}

// AnalysisHistory is the append-only store of completed analyses.
type AnalysisHistory interface {
	// Append stores the record, filling in ID and CreatedAt.
	Append(ctx context.Context, record *domain.AnalysisRecord) (uuid.UUID, error)

	// ListByUser returns a page of the user's records, most recent first,
	// and the user's total record count.
	ListByUser(ctx context.Context, params domain.ListAnalysesParams) ([]domain.AnalysisRecord, int64, error)

	// Get returns one of the user's records.
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.AnalysisRecord, error)
}

// GrantParams describes a plan purchase to record.
type GrantParams struct {
	UserID      uuid.UUID
	Plan        domain.Plan
	PaymentRef  string
	PurchasedAt time.Time
}
