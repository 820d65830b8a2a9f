// Package billing provides Stripe checkout for one-time plan purchases.
package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Metadata keys written on every checkout session.
const (
	MetadataUserID = "user_id"
	MetadataPlanID = "plan_id"
)

// Event types that grant a plan.
const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// ErrNotPaid is returned by ParseCompletedCheckout for sessions whose
// payment has not cleared yet.
var ErrNotPaid = errors.New("checkout session is not paid")

// Service defines the interface for billing operations.
type Service interface {
	// CreateCustomer creates a new Stripe customer for the given email.
	CreateCustomer(email, name string) (string, error)

	// CreateCheckoutSession creates a one-time payment Checkout session for
	// a plan. The session carries the user and plan in its metadata.
	CreateCheckoutSession(params CheckoutParams) (*Checkout, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// CheckoutParams describes a plan purchase to send to Stripe.
type CheckoutParams struct {
	CustomerID string
	UserID     uuid.UUID
	Plan       domain.Plan
	SuccessURL string
	CancelURL  string
}

// Checkout is a created Checkout session.
type Checkout struct {
	SessionID string
	URL       string
}

// CompletedCheckout is the purchase a paid checkout session stands for.
type CompletedCheckout struct {
	SessionID string
	UserID    uuid.UUID
	PlanID    string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string) Service {
	stripe.Key = secretKey
	return &stripeService{webhookSecret: webhookSecret}
}

func (s *stripeService) CreateCustomer(email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(p CheckoutParams) (*Checkout, error) {
	sess, err := checkoutsession.New(NewCheckoutSessionParams(p))
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return &Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

// NewCheckoutSessionParams builds the Stripe request for a plan purchase.
// The price comes from the catalog, so no Stripe price objects are needed.
func NewCheckoutSessionParams(p CheckoutParams) *stripe.CheckoutSessionParams {
	currency := strings.ToLower(p.Plan.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(p.UserID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(p.Plan.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Plan.Name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	if p.Plan.Description != "" {
		params.LineItems[0].PriceData.ProductData.Description = stripe.String(p.Plan.Description)
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	params.AddMetadata(MetadataUserID, p.UserID.String())
	params.AddMetadata(MetadataPlanID, p.Plan.ID)
	return params
}

// ParseCompletedCheckout reads the purchase out of a checkout event.
// Returns ErrNotPaid when the session is still awaiting payment.
func ParseCompletedCheckout(event stripe.Event) (*CompletedCheckout, error) {
	if event.Data == nil {
		return nil, errors.New("checkout event has no data")
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("parse checkout session: %w", err)
	}

	if session.Mode != "" && session.Mode != stripe.CheckoutSessionModePayment {
		return nil, fmt.Errorf("checkout session %s has mode %q", session.ID, session.Mode)
	}
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return nil, ErrNotPaid
	}

	rawUser := session.Metadata[MetadataUserID]
	if rawUser == "" {
		rawUser = session.ClientReferenceID
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return nil, fmt.Errorf("checkout session %s has invalid user id %q", session.ID, rawUser)
	}

	planID := session.Metadata[MetadataPlanID]
	if planID == "" {
		return nil, fmt.Errorf("checkout session %s has no plan id", session.ID)
	}

	return &CompletedCheckout{
		SessionID: session.ID,
		UserID:    userID,
		PlanID:    planID,
	}, nil
}
