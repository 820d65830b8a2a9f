package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int32Ptr(v int32) *int32 { return &v }

func testCatalog() []domain.Plan {
	return []domain.Plan{
		{ID: "starter", Name: "Starter Pack", Credits: 1, IsActive: true, SortOrder: 10},
		{ID: "boost", Name: "Boost Pack", Credits: 5, IsActive: true, SortOrder: 20},
		{ID: "unlimited-30", Name: "Unlimited Monthly", IsUnlimited: true, DurationDays: int32Ptr(30), IsActive: true, SortOrder: 40},
		{ID: "retired", Name: "Retired", Credits: 3, IsActive: false, SortOrder: 5},
	}
}

func grant(t *testing.T, s *Memory, userID uuid.UUID, planID string) *domain.UserPlan {
	t.Helper()
	plan, err := s.GetPlan(context.Background(), planID)
	require.NoError(t, err)
	up, created, err := s.GrantPlan(context.Background(), GrantParams{
		UserID:      userID,
		Plan:        *plan,
		PurchasedAt: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, created)
	return up
}

func TestMemory_ListPlans(t *testing.T) {
	s := NewMemory(testCatalog()...)

	plans, err := s.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "starter", plans[0].ID)
	assert.Equal(t, "unlimited-30", plans[2].ID)

	_, err = s.GetPlan(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_GrantPlan_PaymentRefIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(testCatalog()...)
	userID := uuid.New()
	plan, _ := s.GetPlan(ctx, "boost")

	first, created, err := s.GrantPlan(ctx, GrantParams{UserID: userID, Plan: *plan, PaymentRef: "cs_test_1", PurchasedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int32(5), first.CreditsLeft)
	assert.Equal(t, int32(5), first.OriginalCredits)

	second, created, err := s.GrantPlan(ctx, GrantParams{UserID: userID, Plan: *plan, PaymentRef: "cs_test_1", PurchasedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	plans, _ := s.ListUserPlans(ctx, userID)
	assert.Len(t, plans, 1)
}

func TestMemory_ConsumeAndRefund(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(testCatalog()...)
	up := grant(t, s, uuid.New(), "boost")

	attempt := uuid.New()
	after, err := s.Consume(ctx, up.ID, attempt)
	require.NoError(t, err)
	assert.Equal(t, int32(4), after.CreditsLeft)

	// Same attempt again is a no-op.
	after, err = s.Consume(ctx, up.ID, attempt)
	require.NoError(t, err)
	assert.Equal(t, int32(4), after.CreditsLeft)

	refunded, err := s.Refund(ctx, up.ID, attempt)
	require.NoError(t, err)
	assert.Equal(t, int32(5), refunded.CreditsLeft)

	// Refund is at most once per attempt.
	refunded, err = s.Refund(ctx, up.ID, attempt)
	require.NoError(t, err)
	assert.Equal(t, int32(5), refunded.CreditsLeft)
}

func TestMemory_RefundRequiresConsume(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(testCatalog()...)
	up := grant(t, s, uuid.New(), "boost")
	other := grant(t, s, uuid.New(), "boost")

	_, err := s.Refund(ctx, up.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotConsumed)

	attempt := uuid.New()
	_, err = s.Consume(ctx, up.ID, attempt)
	require.NoError(t, err)

	_, err = s.Refund(ctx, other.ID, attempt)
	assert.ErrorIs(t, err, ErrNotConsumed)
}

func TestMemory_RefundNeedsAttempt(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(testCatalog()...)
	up := grant(t, s, uuid.New(), "starter")

	_, err := s.Refund(ctx, up.ID, uuid.Nil)
	assert.ErrorIs(t, err, ErrNotConsumed)

	got, _ := s.GetUserPlan(ctx, up.ID)
	assert.Equal(t, int32(1), got.CreditsLeft, "credits never exceed the grant")
}

func TestMemory_RefundRefusedForStoredAnalysis(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(testCatalog()...)
	userID := uuid.New()
	up := grant(t, s, userID, "boost")

	attempt := uuid.New()
	_, err := s.Consume(ctx, up.ID, attempt)
	require.NoError(t, err)

	planID := up.ID
	_, err = s.Append(ctx, &domain.AnalysisRecord{UserID: userID, UserPlanID: &planID, AttemptID: attempt})
	require.NoError(t, err)

	_, err = s.Refund(ctx, up.ID, attempt)
	assert.ErrorIs(t, err, ErrAttemptCompleted)

	got, _ := s.GetUserPlan(ctx, up.ID)
	assert.Equal(t, int32(4), got.CreditsLeft)
}

func TestMemory_ConsumeRejectsIneligible(t *testing.T) {
	ctx := context.Background()

	t.Run("no credits", func(t *testing.T) {
		s := NewMemory(testCatalog()...)
		up := grant(t, s, uuid.New(), "starter")

		_, err := s.Consume(ctx, up.ID, uuid.New())
		require.NoError(t, err)

		_, err = s.Consume(ctx, up.ID, uuid.New())
		assert.ErrorIs(t, err, ErrNotEligible)

		got, _ := s.GetUserPlan(ctx, up.ID)
		assert.Equal(t, int32(0), got.CreditsLeft)
	})

	t.Run("expired", func(t *testing.T) {
		s := NewMemory(testCatalog()...)
		up := grant(t, s, uuid.New(), "unlimited-30")
		s.SetClock(func() time.Time { return time.Now().AddDate(0, 0, 31) })

		_, err := s.Consume(ctx, up.ID, uuid.New())
		assert.ErrorIs(t, err, ErrNotEligible)

		n, err := s.ExpirePlans(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, _ := s.GetUserPlan(ctx, up.ID)
		assert.False(t, got.IsActive)
	})

	t.Run("unknown plan", func(t *testing.T) {
		s := NewMemory(testCatalog()...)
		_, err := s.Consume(ctx, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemory_UnlimitedNeverDecrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(testCatalog()...)
	up := grant(t, s, uuid.New(), "unlimited-30")

	for i := 0; i < 10; i++ {
		after, err := s.Consume(ctx, up.ID, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, int32(0), after.CreditsLeft)
	}
}

func TestMemory_ConcurrentConsumeOneCredit(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(testCatalog()...)
	up := grant(t, s, uuid.New(), "starter")

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, rejections := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Consume(ctx, up.ID, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, ErrNotEligible) {
				rejections++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, rejections)

	got, _ := s.GetUserPlan(ctx, up.ID)
	assert.Equal(t, int32(0), got.CreditsLeft)
}

func TestMemory_History(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	userID := uuid.New()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.SetClock(func() time.Time { return at })
		_, err := s.Append(ctx, &domain.AnalysisRecord{UserID: userID, AttemptID: uuid.New(), Summary: at.Format(time.Kitchen)})
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, &domain.AnalysisRecord{UserID: uuid.New(), AttemptID: uuid.New()})
	require.NoError(t, err)

	records, total, err := s.ListByUser(ctx, domain.ListAnalysesParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, records, 2)
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt))
	assert.Equal(t, "9:02AM", records[0].Summary)

	page2, _, err := s.ListByUser(ctx, domain.ListAnalysesParams{UserID: userID, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "9:00AM", page2[0].Summary)

	got, err := s.Get(ctx, userID, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, records[0].ID, got.ID)

	_, err = s.Get(ctx, uuid.New(), records[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
