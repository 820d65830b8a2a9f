package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/metrics"
	"github.com/DukeRupert/resumezen/internal/store"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCatalogTTL is how long the plan catalog is cached.
const DefaultCatalogTTL = 5 * time.Minute

// catalogKey is the cache key for the full catalog listing.
const catalogKey = "*"

// =============================================================================
// Interface Definition
// =============================================================================

// PlanCatalog serves the published plans. Plans are immutable once
// published, so reads are cached.
type PlanCatalog interface {
	// ListPlans returns active plans in display order.
	ListPlans(ctx context.Context) ([]domain.Plan, error)

	// GetPlan returns one plan. Returns domain.ENOTFOUND for unknown or
	// unpublished plans.
	GetPlan(ctx context.Context, planID string) (*domain.Plan, error)
}

// =============================================================================
// Implementation
// =============================================================================

type planCatalog struct {
	ledger store.PlanLedger
	lists  *expirable.LRU[string, []domain.Plan]
	plans  *expirable.LRU[string, domain.Plan]
	logger *slog.Logger
}

// NewPlanCatalog creates a cached PlanCatalog. ttl <= 0 uses DefaultCatalogTTL.
func NewPlanCatalog(ledger store.PlanLedger, ttl time.Duration, logger *slog.Logger) PlanCatalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &planCatalog{
		ledger: ledger,
		lists:  expirable.NewLRU[string, []domain.Plan](1, nil, ttl),
		plans:  expirable.NewLRU[string, domain.Plan](64, nil, ttl),
		logger: logger,
	}
}

func (c *planCatalog) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	const op = "PlanCatalog.ListPlans"

	if plans, ok := c.lists.Get(catalogKey); ok {
		metrics.PlanCacheRequests.WithLabelValues("hit").Inc()
		return clonePlans(plans), nil
	}
	metrics.PlanCacheRequests.WithLabelValues("miss").Inc()

	plans, err := c.ledger.ListPlans(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load plans")
	}

	c.lists.Add(catalogKey, plans)
	for _, p := range plans {
		c.plans.Add(p.ID, p)
	}
	return clonePlans(plans), nil
}

func (c *planCatalog) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	const op = "PlanCatalog.GetPlan"

	if p, ok := c.plans.Get(planID); ok {
		metrics.PlanCacheRequests.WithLabelValues("hit").Inc()
		return &p, nil
	}
	metrics.PlanCacheRequests.WithLabelValues("miss").Inc()

	p, err := c.ledger.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFound(op, "plan", planID)
		}
		return nil, domain.Internal(err, op, "Failed to load plan")
	}
	if !p.IsActive {
		return nil, domain.NotFound(op, "plan", planID)
	}

	c.plans.Add(p.ID, *p)
	return p, nil
}

func clonePlans(plans []domain.Plan) []domain.Plan {
	out := make([]domain.Plan, len(plans))
	copy(out, plans)
	return out
}
