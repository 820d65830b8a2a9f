package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
)

type settlementKey struct {
	attemptID uuid.UUID
	kind      domain.SettlementKind
}

// Memory is an in-memory PlanLedger and AnalysisHistory. A single mutex
// serializes every mutation, which makes check-and-decrement atomic.
type Memory struct {
	mu          sync.Mutex
	now         func() time.Time
	plans       map[string]domain.Plan
	userPlans   map[uuid.UUID]*domain.UserPlan
	settlements map[settlementKey]uuid.UUID
	records     []domain.AnalysisRecord
}

// NewMemory creates an in-memory store seeded with the given catalog.
func NewMemory(catalog ...domain.Plan) *Memory {
	m := &Memory{
		now:         time.Now,
		plans:       make(map[string]domain.Plan),
		userPlans:   make(map[uuid.UUID]*domain.UserPlan),
		settlements: make(map[settlementKey]uuid.UUID),
	}
	for _, p := range catalog {
		m.plans[p.ID] = p
	}
	return m
}

// SetClock replaces the clock used for expiry checks.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

var (
	_ PlanLedger      = (*Memory)(nil)
	_ AnalysisHistory = (*Memory)(nil)
)

func (m *Memory) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	plans := make([]domain.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		if p.IsActive {
			plans = append(plans, p)
		}
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].SortOrder != plans[j].SortOrder {
			return plans[i].SortOrder < plans[j].SortOrder
		}
		return plans[i].ID < plans[j].ID
	})
	return plans, nil
}

func (m *Memory) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[planID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) GrantPlan(ctx context.Context, params GrantParams) (*domain.UserPlan, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if params.PaymentRef != "" {
		for _, up := range m.userPlans {
			if up.PaymentRef == params.PaymentRef {
				cp := *up
				return &cp, false, nil
			}
		}
	}

	up := &domain.UserPlan{
		ID:              uuid.New(),
		UserID:          params.UserID,
		PlanID:          params.Plan.ID,
		PlanName:        params.Plan.Name,
		CreditsLeft:     params.Plan.Credits,
		OriginalCredits: params.Plan.Credits,
		IsUnlimited:     params.Plan.IsUnlimited,
		IsActive:        true,
		PurchasedAt:     params.PurchasedAt,
		ExpiresAt:       params.Plan.ExpiresAt(params.PurchasedAt),
		PaymentRef:      params.PaymentRef,
	}
	m.userPlans[up.ID] = up

	cp := *up
	return &cp, true, nil
}

func (m *Memory) GetUserPlan(ctx context.Context, id uuid.UUID) (*domain.UserPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.userPlans[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *up
	return &cp, nil
}

func (m *Memory) ListUserPlans(ctx context.Context, userID uuid.UUID) ([]domain.UserPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var plans []domain.UserPlan
	for _, up := range m.userPlans {
		if up.UserID == userID {
			plans = append(plans, *up)
		}
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].PurchasedAt.After(plans[j].PurchasedAt)
	})
	return plans, nil
}

func (m *Memory) Consume(ctx context.Context, userPlanID, attemptID uuid.UUID) (*domain.UserPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.userPlans[userPlanID]
	if !ok {
		return nil, ErrNotFound
	}

	key := settlementKey{attemptID: attemptID, kind: domain.SettlementConsume}
	if attemptID != uuid.Nil {
		if _, done := m.settlements[key]; done {
			cp := *up
			return &cp, nil
		}
	}

	if !up.IsUsable(m.now()) {
		return nil, ErrNotEligible
	}
	if !up.IsUnlimited {
		up.CreditsLeft--
	}
	if attemptID != uuid.Nil {
		m.settlements[key] = userPlanID
	}

	cp := *up
	return &cp, nil
}

func (m *Memory) Refund(ctx context.Context, userPlanID, attemptID uuid.UUID) (*domain.UserPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.userPlans[userPlanID]
	if !ok {
		return nil, ErrNotFound
	}

	refundKey := settlementKey{attemptID: attemptID, kind: domain.SettlementRefund}
	consumedFrom, consumed := m.settlements[settlementKey{attemptID: attemptID, kind: domain.SettlementConsume}]
	if attemptID == uuid.Nil || !consumed || consumedFrom != userPlanID {
		return nil, ErrNotConsumed
	}
	if _, done := m.settlements[refundKey]; done {
		cp := *up
		return &cp, nil
	}
	for _, r := range m.records {
		if r.AttemptID == attemptID {
			return nil, ErrAttemptCompleted
		}
	}

	if !up.IsUnlimited && up.CreditsLeft < up.OriginalCredits {
		up.CreditsLeft++
	}
	m.settlements[refundKey] = userPlanID

	cp := *up
	return &cp, nil
}

func (m *Memory) ExpirePlans(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for _, up := range m.userPlans {
		if up.IsActive && up.IsExpired(now) {
			up.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *Memory) Append(ctx context.Context, record *domain.AnalysisRecord) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = uuid.New()
	record.CreatedAt = m.now()
	m.records = append(m.records, *record)
	return record.ID, nil
}

func (m *Memory) ListByUser(ctx context.Context, params domain.ListAnalysesParams) ([]domain.AnalysisRecord, int64, error) {
	params.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()

	var mine []domain.AnalysisRecord
	// Iterate backwards so equal timestamps keep most-recent-append first.
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].UserID == params.UserID {
			mine = append(mine, m.records[i])
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].CreatedAt.After(mine[j].CreatedAt)
	})

	total := int64(len(mine))
	start := int(params.Offset)
	if start > len(mine) {
		start = len(mine)
	}
	end := start + int(params.Limit)
	if end > len(mine) {
		end = len(mine)
	}
	return mine[start:end], total, nil
}

func (m *Memory) Get(ctx context.Context, userID, id uuid.UUID) (*domain.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.ID == id && rec.UserID == userID {
			r := rec
			return &r, nil
		}
	}
	return nil, ErrNotFound
}
