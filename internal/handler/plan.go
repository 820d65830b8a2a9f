package handler

// Routes handled:
//   - GET  /plans               -> ListPlans
//   - GET  /plan/mine           -> MyPlans
//   - POST /plan/purchase       -> Purchase
//   - POST /plan/credit/use     -> UseCredit (internal)
//   - POST /plan/credit/refund  -> RefundCredit (internal)

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/resumezen/internal/auth"
	"github.com/DukeRupert/resumezen/internal/billing"
	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/service"
	"github.com/google/uuid"
)

// PlanHandler serves the plan catalog and the user's plan ledger.
type PlanHandler struct {
	catalog     service.PlanCatalog
	credits     service.CreditService
	billing     billing.Service // nil when Stripe is not configured
	userService service.UserService
	baseURL     string
	logger      *slog.Logger
}

// NewPlanHandler creates a new PlanHandler. billingService may be nil, in
// which case purchases are granted immediately (development mode).
func NewPlanHandler(
	catalog service.PlanCatalog,
	credits service.CreditService,
	billingService billing.Service,
	userService service.UserService,
	baseURL string,
	logger *slog.Logger,
) *PlanHandler {
	return &PlanHandler{
		catalog:     catalog,
		credits:     credits,
		billing:     billingService,
		userService: userService,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
	}
}

// RegisterRoutes registers plan routes on the provided mux. The direct
// credit mutations also need requireInternal, since analyses consume and
// refund through the orchestrator.
func (h *PlanHandler) RegisterRoutes(mux *http.ServeMux, requireUser, requireInternal func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /plans", h.ListPlans)
	mux.Handle("GET /plan/mine", requireUser(http.HandlerFunc(h.MyPlans)))
	mux.Handle("POST /plan/purchase", requireUser(http.HandlerFunc(h.Purchase)))
	mux.Handle("POST /plan/credit/use", requireInternal(requireUser(http.HandlerFunc(h.UseCredit))))
	mux.Handle("POST /plan/credit/refund", requireInternal(requireUser(http.HandlerFunc(h.RefundCredit))))
}

// =============================================================================
// Response Types
// =============================================================================

type planResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	PriceCents   int64    `json:"priceCents"`
	Currency     string   `json:"currency"`
	Credits      int32    `json:"credits"`
	IsUnlimited  bool     `json:"isUnlimited"`
	DurationDays *int32   `json:"durationDays"`
	Features     []string `json:"features"`
}

func toPlanResponse(p domain.Plan) planResponse {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return planResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		PriceCents:   p.PriceCents,
		Currency:     p.Currency,
		Credits:      p.Credits,
		IsUnlimited:  p.IsUnlimited,
		DurationDays: p.DurationDays,
		Features:     features,
	}
}

type userPlanResponse struct {
	ID              uuid.UUID  `json:"id"`
	PlanID          string     `json:"planId"`
	PlanName        string     `json:"planName"`
	CreditsLeft     int32      `json:"creditsLeft"`
	OriginalCredits int32      `json:"originalCredits"`
	IsUnlimited     bool       `json:"isUnlimited"`
	IsActive        bool       `json:"isActive"`
	IsExpired       bool       `json:"isExpired"`
	IsUsable        bool       `json:"isUsable"`
	PurchasedAt     time.Time  `json:"purchasedAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

func toUserPlanResponse(up *domain.UserPlan) *userPlanResponse {
	if up == nil {
		return nil
	}
	now := time.Now()
	return &userPlanResponse{
		ID:              up.ID,
		PlanID:          up.PlanID,
		PlanName:        up.PlanName,
		CreditsLeft:     up.CreditsLeft,
		OriginalCredits: up.OriginalCredits,
		IsUnlimited:     up.IsUnlimited,
		IsActive:        up.IsActive,
		IsExpired:       up.IsExpired(now),
		IsUsable:        up.IsUsable(now),
		PurchasedAt:     up.PurchasedAt,
		ExpiresAt:       up.ExpiresAt,
	}
}

type eligibilityResponse struct {
	Eligible   bool       `json:"eligible"`
	UserPlanID *uuid.UUID `json:"userPlanId,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

type myPlansResponse struct {
	Plans       []*userPlanResponse `json:"plans"`
	Eligibility eligibilityResponse `json:"eligibility"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
}

type creditResponse struct {
	userPlanResponse
	AttemptID uuid.UUID `json:"attemptId"`
}

// =============================================================================
// Handlers
// =============================================================================

// ListPlans returns the published catalog.
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.ListPlans(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// MyPlans returns the user's plans and whether they can start an analysis.
func (h *PlanHandler) MyPlans(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	plans, err := h.credits.ListUserPlans(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	eligibility, err := h.credits.CheckEligibility(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := myPlansResponse{
		Plans: make([]*userPlanResponse, 0, len(plans)),
		Eligibility: eligibilityResponse{
			Eligible: eligibility.Eligible,
			Reason:   eligibility.Reason,
		},
	}
	for i := range plans {
		resp.Plans = append(resp.Plans, toUserPlanResponse(&plans[i]))
	}
	if eligibility.Plan != nil {
		id := eligibility.Plan.ID
		resp.Eligibility.UserPlanID = &id
	}
	writeJSON(w, http.StatusOK, resp)
}

type purchaseRequest struct {
	PlanID string `json:"planId"`
}

// Purchase starts a plan purchase. With Stripe configured it returns a
// checkout URL (202) and the plan is granted by the webhook; otherwise the
// plan is granted immediately (201).
func (h *PlanHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	const op = "PlanHandler.Purchase"
	user := auth.GetUser(r.Context())

	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.PlanID == "" {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "planId", "Choose a plan"))
		return
	}

	if h.billing == nil {
		up, _, err := h.credits.Purchase(r.Context(), domain.PurchasePlanParams{
			UserID: user.ID,
			PlanID: req.PlanID,
		})
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toUserPlanResponse(up))
		return
	}

	plan, err := h.catalog.GetPlan(r.Context(), req.PlanID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Ensure user has a Stripe customer
	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = h.billing.CreateCustomer(user.Email, user.Name)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Provider(err, op, "We couldn't start checkout. Please try again."))
			return
		}
		if err := h.userService.UpdateStripeCustomer(r.Context(), user.ID, customerID); err != nil {
			h.logger.Error("failed to save stripe customer ID", "error", err, "user_id", user.ID)
		}
	}

	checkout, err := h.billing.CreateCheckoutSession(billing.CheckoutParams{
		CustomerID: customerID,
		UserID:     user.ID,
		Plan:       *plan,
		SuccessURL: h.baseURL + "/plans?checkout=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.baseURL + "/plans?checkout=cancelled",
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Provider(err, op, "We couldn't start checkout. Please try again."))
		return
	}

	h.logger.Info("checkout session created",
		"user_id", user.ID,
		"plan_id", plan.ID,
		"session_id", checkout.SessionID,
	)
	writeJSON(w, http.StatusAccepted, checkoutResponse{
		CheckoutURL: checkout.URL,
		SessionID:   checkout.SessionID,
	})
}

type creditRequest struct {
	UserPlanID string `json:"userPlanId"`
	AttemptID  string `json:"attemptId"`
}

// UseCredit spends one credit. A missing attemptId is generated and
// returned so the client can refund the same attempt later.
func (h *PlanHandler) UseCredit(w http.ResponseWriter, r *http.Request) {
	const op = "PlanHandler.UseCredit"

	params, err := h.creditParams(w, r, op, false)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if params.AttemptID == uuid.Nil {
		params.AttemptID = uuid.New()
	}

	up, err := h.credits.Consume(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, creditResponse{userPlanResponse: *toUserPlanResponse(up), AttemptID: params.AttemptID})
}

// RefundCredit returns the credit spent by an attempt. attemptId is
// required: only a credit that was actually consumed can come back.
func (h *PlanHandler) RefundCredit(w http.ResponseWriter, r *http.Request) {
	const op = "PlanHandler.RefundCredit"

	params, err := h.creditParams(w, r, op, true)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	up, err := h.credits.Refund(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, creditResponse{userPlanResponse: *toUserPlanResponse(up), AttemptID: params.AttemptID})
}

func (h *PlanHandler) creditParams(w http.ResponseWriter, r *http.Request, op string, requireAttempt bool) (domain.CreditMutationParams, error) {
	user := auth.GetUser(r.Context())

	var req creditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return domain.CreditMutationParams{}, err
	}

	if req.UserPlanID == "" {
		return domain.CreditMutationParams{}, domain.NewValidationError(op, "userPlanId", "Plan is required")
	}
	planID, err := parseUUID(op, "userPlanId", req.UserPlanID)
	if err != nil {
		return domain.CreditMutationParams{}, err
	}
	if requireAttempt && req.AttemptID == "" {
		return domain.CreditMutationParams{}, domain.NewValidationError(op, "attemptId", "Attempt is required")
	}
	attemptID, err := parseUUID(op, "attemptId", req.AttemptID)
	if err != nil {
		return domain.CreditMutationParams{}, err
	}

	return domain.CreditMutationParams{
		UserPlanID: planID,
		UserID:     user.ID,
		AttemptID:  attemptID,
	}, nil
}
