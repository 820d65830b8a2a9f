// Package domain contains core business types and interfaces.
//
// This file defines the plan catalog and the per-user plan ledger types,
// including the usability rules that decide whether a purchased plan may
// pay for an analysis.
package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Plan Catalog
// =============================================================================

// Plan is a purchasable offering in the catalog. Plans are immutable once
// published; a price change is a new plan.
type Plan struct {
	ID           string // Slug, e.g. "boost"
	Name         string
	Description  string
	PriceCents   int64
	Currency     string
	Credits      int32  // Credits granted at purchase (0 for unlimited plans)
	IsUnlimited  bool   // Unlimited plans never decrement
	DurationDays *int32 // nil means the purchase never expires
	Features     []string
	IsActive     bool // Published in the catalog
	SortOrder    int32
	CreatedAt    time.Time
}

// ExpiresAt returns the expiry for a purchase made at purchasedAt, or nil
// when the plan has no duration.
func (p *Plan) ExpiresAt(purchasedAt time.Time) *time.Time {
	if p.DurationDays == nil || *p.DurationDays <= 0 {
		return nil
	}
	t := purchasedAt.AddDate(0, 0, int(*p.DurationDays))
	return &t
}

// Price returns the price in major currency units.
func (p *Plan) Price() float64 {
	return float64(p.PriceCents) / 100
}

// =============================================================================
// User Plan Ledger
// =============================================================================

// UserPlan is one purchased plan instance owned by a user.
//
// Invariant: 0 <= CreditsLeft <= OriginalCredits. Exhaustion is derived from
// CreditsLeft and never stored; IsActive is cleared by the expiry job once
// ExpiresAt has passed but usability checks never rely on that.
type UserPlan struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	PlanID          string
	PlanName        string
	CreditsLeft     int32
	OriginalCredits int32
	IsUnlimited     bool
	IsActive        bool
	PurchasedAt     time.Time
	ExpiresAt       *time.Time
	PaymentRef      string
}

// IsExpired reports whether the plan's expiry has passed at now.
func (p *UserPlan) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// IsExhausted reports whether a metered plan has no credits left.
func (p *UserPlan) IsExhausted() bool {
	return !p.IsUnlimited && p.CreditsLeft <= 0
}

// IsUsable reports whether the plan can pay for an analysis at now.
func (p *UserPlan) IsUsable(now time.Time) bool {
	return p.IsActive && !p.IsExpired(now) && !p.IsExhausted()
}

// =============================================================================
// Eligibility
// =============================================================================

// Reasons reported when a user is not eligible.
const (
	ReasonNoPlan    = "You don't have a plan yet. Purchase a plan to analyze your resume."
	ReasonExpired   = "Your plan has expired. Purchase a new plan to keep analyzing resumes."
	ReasonNoCredits = "You have used all your credits. Purchase a plan to analyze more resumes."
)

// Eligibility is the answer to "may this user start an analysis now".
type Eligibility struct {
	Eligible bool
	Plan     *UserPlan // Selected plan when eligible
	Reason   string    // Human-readable reason when not eligible
}

// SelectionPolicy decides which usable plan pays when a user holds several.
type SelectionPolicy string

const (
	// SelectMostRecent picks the most recently purchased usable plan.
	SelectMostRecent SelectionPolicy = "most_recent"

	// SelectSoonestExpiry picks the usable plan that expires first, so
	// time-limited credits are spent before they lapse. Plans without
	// expiry come last, most recent first.
	SelectSoonestExpiry SelectionPolicy = "soonest_expiry"
)

// IsValid returns true if the policy is a recognized value.
func (s SelectionPolicy) IsValid() bool {
	return s == SelectMostRecent || s == SelectSoonestExpiry
}

// EvaluateEligibility selects the plan that pays for the next analysis.
func EvaluateEligibility(plans []UserPlan, now time.Time, policy SelectionPolicy) Eligibility {
	if len(plans) == 0 {
		return Eligibility{Reason: ReasonNoPlan}
	}

	var usable []UserPlan
	expired := 0
	for _, p := range plans {
		if p.IsUsable(now) {
			usable = append(usable, p)
			continue
		}
		if !p.IsActive || p.IsExpired(now) {
			expired++
		}
	}

	if len(usable) == 0 {
		if expired == len(plans) {
			return Eligibility{Reason: ReasonExpired}
		}
		return Eligibility{Reason: ReasonNoCredits}
	}

	sort.SliceStable(usable, func(i, j int) bool {
		a, b := usable[i], usable[j]
		if policy == SelectSoonestExpiry {
			switch {
			case a.ExpiresAt != nil && b.ExpiresAt == nil:
				return true
			case a.ExpiresAt == nil && b.ExpiresAt != nil:
				return false
			case a.ExpiresAt != nil && b.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
				return a.ExpiresAt.Before(*b.ExpiresAt)
			}
		}
		return a.PurchasedAt.After(b.PurchasedAt)
	})

	selected := usable[0]
	return Eligibility{Eligible: true, Plan: &selected}
}

// =============================================================================
// Credit Settlements
// =============================================================================

// SettlementKind identifies a credit mutation recorded against an attempt.
type SettlementKind string

const (
	SettlementConsume SettlementKind = "consume"
	SettlementRefund  SettlementKind = "refund"
)

// PurchasePlanParams contains validated parameters for granting a plan.
type PurchasePlanParams struct {
	UserID     uuid.UUID
	PlanID     string
	PaymentRef string // Checkout session id; empty for direct grants
}

// CreditMutationParams identifies a consume or refund. AttemptID makes the
// mutation idempotent; uuid.Nil disables idempotency tracking.
type CreditMutationParams struct {
	UserPlanID uuid.UUID
	UserID     uuid.UUID // When set, the plan must belong to this user
	AttemptID  uuid.UUID
}
