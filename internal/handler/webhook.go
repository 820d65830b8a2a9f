// This file implements the Stripe webhook handler that grants purchased plans.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/resumezen/internal/billing"
	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/service"
	"github.com/stripe/stripe-go/v79"
)

// maxWebhookBody caps webhook payloads at 64KB.
const maxWebhookBody = 65536

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing billing.Service
	credits service.CreditService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, credits service.CreditService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing: billingService,
		credits: credits,
		logger:  logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// A grant that fails for a server-side reason answers 500 so Stripe
// redelivers; grants are keyed by the session id, so redelivery never
// grants twice.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Verify signature
	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	switch string(event.Type) {
	case billing.EventCheckoutCompleted, billing.EventCheckoutAsyncPaymentSucceeded:
		if err := h.grantPlan(r.Context(), event); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

// grantPlan records the purchase behind a paid checkout session. Only
// errors worth a Stripe retry are returned.
func (h *WebhookHandler) grantPlan(ctx context.Context, event stripe.Event) error {
	checkout, err := billing.ParseCompletedCheckout(event)
	if errors.Is(err, billing.ErrNotPaid) {
		// Delayed payment methods finish with async_payment_succeeded.
		h.logger.Info("checkout completed but not yet paid", "event_id", event.ID)
		return nil
	}
	if err != nil {
		h.logger.Error("failed to parse checkout session", "error", err, "event_id", event.ID)
		return nil
	}

	up, created, err := h.credits.Purchase(context.WithoutCancel(ctx), domain.PurchasePlanParams{
		UserID:     checkout.UserID,
		PlanID:     checkout.PlanID,
		PaymentRef: checkout.SessionID,
	})
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.EINTERNAL:
			h.logger.Error("failed to grant plan", "error", err, "session_id", checkout.SessionID)
			return err
		default:
			h.logger.Error("checkout cannot be granted",
				"error", err,
				"session_id", checkout.SessionID,
				"user_id", checkout.UserID,
				"plan_id", checkout.PlanID,
			)
			return nil
		}
	}

	if !created {
		h.logger.Info("checkout already granted", "session_id", checkout.SessionID, "user_plan_id", up.ID)
	}
	return nil
}
