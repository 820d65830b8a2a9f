package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/metrics"
	"github.com/DukeRupert/resumezen/internal/store"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CreditService owns the plan-credit ledger: eligibility, consume, refund
// and purchases.
type CreditService interface {
	// CheckEligibility selects the plan that would pay for the next
	// analysis. A user without a usable plan gets Eligible=false and a
	// reason; that is not an error.
	CheckEligibility(ctx context.Context, userID uuid.UUID) (domain.Eligibility, error)

	// Consume spends one credit from the plan. Unlimited plans succeed
	// without change. Returns domain.EPAYMENT when the plan has no credits
	// left or is expired or inactive.
	Consume(ctx context.Context, params domain.CreditMutationParams) (*domain.UserPlan, error)

	// Refund returns one credit, never above the original grant. Returns
	// domain.ECONFLICT when the attempt never consumed from this plan or
	// already produced a stored analysis.
	Refund(ctx context.Context, params domain.CreditMutationParams) (*domain.UserPlan, error)

	// ListUserPlans returns the user's plans, most recent first.
	ListUserPlans(ctx context.Context, userID uuid.UUID) ([]domain.UserPlan, error)

	// Purchase grants a plan. A repeated PaymentRef returns the existing
	// grant with created=false.
	Purchase(ctx context.Context, params domain.PurchasePlanParams) (plan *domain.UserPlan, created bool, err error)

	// ExpirePlans deactivates plans whose expiry has passed.
	ExpirePlans(ctx context.Context) (int64, error)
}

// CreditServiceConfig configures the credit service.
type CreditServiceConfig struct {
	Policy domain.SelectionPolicy
	Now    func() time.Time // defaults to time.Now
}

// =============================================================================
// Implementation
// =============================================================================

type creditService struct {
	ledger  store.PlanLedger
	catalog PlanCatalog
	policy  domain.SelectionPolicy
	now     func() time.Time
	logger  *slog.Logger
}

// NewCreditService creates a new CreditService instance.
func NewCreditService(ledger store.PlanLedger, catalog PlanCatalog, cfg CreditServiceConfig, logger *slog.Logger) CreditService {
	if !cfg.Policy.IsValid() {
		cfg.Policy = domain.SelectMostRecent
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &creditService{
		ledger:  ledger,
		catalog: catalog,
		policy:  cfg.Policy,
		now:     cfg.Now,
		logger:  logger,
	}
}

func (s *creditService) CheckEligibility(ctx context.Context, userID uuid.UUID) (domain.Eligibility, error) {
	const op = "CreditService.CheckEligibility"

	plans, err := s.ledger.ListUserPlans(ctx, userID)
	if err != nil {
		return domain.Eligibility{}, domain.Internal(err, op, "Failed to load plans")
	}
	return domain.EvaluateEligibility(plans, s.now(), s.policy), nil
}

func (s *creditService) Consume(ctx context.Context, params domain.CreditMutationParams) (*domain.UserPlan, error) {
	const op = "CreditService.Consume"

	if err := s.checkOwnership(ctx, op, params); err != nil {
		return nil, err
	}

	up, err := s.ledger.Consume(ctx, params.UserPlanID, params.AttemptID)
	metrics.Credit("consume", err)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, domain.NotFound(op, "plan", params.UserPlanID.String())
		case errors.Is(err, store.ErrNotEligible):
			return nil, domain.NotEligible(op, s.ineligibleReason(ctx, params.UserPlanID))
		default:
			return nil, domain.Internal(err, op, "Failed to use credit")
		}
	}

	s.logger.Info("credit consumed",
		"user_plan_id", up.ID,
		"attempt_id", params.AttemptID,
		"credits_left", up.CreditsLeft,
		"unlimited", up.IsUnlimited,
	)
	return up, nil
}

func (s *creditService) Refund(ctx context.Context, params domain.CreditMutationParams) (*domain.UserPlan, error) {
	const op = "CreditService.Refund"

	if err := s.checkOwnership(ctx, op, params); err != nil {
		return nil, err
	}

	up, err := s.ledger.Refund(ctx, params.UserPlanID, params.AttemptID)
	metrics.Credit("refund", err)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, domain.NotFound(op, "plan", params.UserPlanID.String())
		case errors.Is(err, store.ErrNotConsumed):
			return nil, domain.Conflict(op, "No credit was used for this attempt, so there is nothing to refund.")
		case errors.Is(err, store.ErrAttemptCompleted):
			return nil, domain.Conflict(op, "This attempt produced an analysis, so its credit cannot be refunded.")
		default:
			return nil, domain.Internal(err, op, "Failed to refund credit")
		}
	}

	s.logger.Info("credit refunded",
		"user_plan_id", up.ID,
		"attempt_id", params.AttemptID,
		"credits_left", up.CreditsLeft,
	)
	return up, nil
}

func (s *creditService) ListUserPlans(ctx context.Context, userID uuid.UUID) ([]domain.UserPlan, error) {
	const op = "CreditService.ListUserPlans"

	plans, err := s.ledger.ListUserPlans(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load plans")
	}
	if plans == nil {
		plans = []domain.UserPlan{}
	}
	return plans, nil
}

func (s *creditService) Purchase(ctx context.Context, params domain.PurchasePlanParams) (*domain.UserPlan, bool, error) {
	const op = "CreditService.Purchase"

	if params.UserID == uuid.Nil {
		return nil, false, domain.Invalid(op, "User is required")
	}
	if params.PlanID == "" {
		return nil, false, domain.NewValidationError(op, "planId", "Choose a plan")
	}

	plan, err := s.catalog.GetPlan(ctx, params.PlanID)
	if err != nil {
		return nil, false, err
	}

	up, created, err := s.ledger.GrantPlan(ctx, store.GrantParams{
		UserID:      params.UserID,
		Plan:        *plan,
		PaymentRef:  params.PaymentRef,
		PurchasedAt: s.now(),
	})
	if err != nil {
		return nil, false, domain.Internal(err, op, "Failed to record purchase")
	}
	if !created && up.UserID != params.UserID {
		return nil, false, domain.Conflict(op, "This payment was already applied to another account")
	}

	if created {
		metrics.PlansPurchased.WithLabelValues(plan.ID).Inc()
		s.logger.Info("plan granted",
			"user_id", params.UserID,
			"plan_id", plan.ID,
			"user_plan_id", up.ID,
			"payment_ref", params.PaymentRef,
		)
	}
	return up, created, nil
}

func (s *creditService) ExpirePlans(ctx context.Context) (int64, error) {
	const op = "CreditService.ExpirePlans"

	n, err := s.ledger.ExpirePlans(ctx)
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to expire plans")
	}
	if n > 0 {
		metrics.PlansExpired.Add(float64(n))
		s.logger.Info("user plans expired", "count", n)
	}
	return n, nil
}

// checkOwnership rejects mutations on another user's plan. The plan is
// reported as not found so IDs cannot be enumerated.
func (s *creditService) checkOwnership(ctx context.Context, op string, params domain.CreditMutationParams) error {
	if params.UserPlanID == uuid.Nil {
		return domain.NewValidationError(op, "userPlanId", "Plan is required")
	}
	if params.UserID == uuid.Nil {
		return nil
	}

	up, err := s.ledger.GetUserPlan(ctx, params.UserPlanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound(op, "plan", params.UserPlanID.String())
		}
		return domain.Internal(err, op, "Failed to load plan")
	}
	if up.UserID != params.UserID {
		return domain.NotFound(op, "plan", params.UserPlanID.String())
	}
	return nil
}

// ineligibleReason explains why a consume was refused.
func (s *creditService) ineligibleReason(ctx context.Context, userPlanID uuid.UUID) string {
	up, err := s.ledger.GetUserPlan(ctx, userPlanID)
	if err != nil {
		return domain.ReasonNoCredits
	}
	if !up.IsActive || up.IsExpired(s.now()) {
		return domain.ReasonExpired
	}
	return domain.ReasonNoCredits
}
