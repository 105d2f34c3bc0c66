// Package stripepay adapts the Stripe SDK to the domain interfaces.
//
// The client is constructed from configuration and injected — never a
// package-level singleton — so every consumer can be tested against fakes.
package stripepay

import (
	"context"
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/darkvsx/boostd/internal/app/reconcile"
	"github.com/darkvsx/boostd/internal/domain"
)

// Client wraps the Stripe API for payment-intent reads and webhook
// verification.
type Client struct {
	api           *client.API
	webhookSecret string
}

// New creates a Stripe client with the given secret key and webhook signing
// secret.
func New(secretKey, webhookSecret string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api, webhookSecret: webhookSecret}
}

// RetrieveIntent fetches a payment intent and normalizes it to the domain
// record. Implements domain.IntentRetriever.
func (c *Client) RetrieveIntent(ctx context.Context, intentID string) (domain.PaymentRecord, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("stripe retrieve %s: %w", intentID, err)
	}

	record := domain.PaymentRecord{
		IntentID:       pi.ID,
		Status:         normalizeStatus(pi.Status),
		CapturedAmount: pi.AmountReceived,
	}
	if len(pi.PaymentMethodTypes) > 0 {
		record.MethodType = pi.PaymentMethodTypes[0]
	}
	return record, nil
}

// VerifyEvent checks the webhook signature over the raw payload and
// normalizes the event. The payload must be the unparsed request body;
// signature verification happens before any JSON is trusted.
func (c *Client) VerifyEvent(payload []byte, signatureHeader string) (reconcile.Event, error) {
	ev, err := webhook.ConstructEvent(payload, signatureHeader, c.webhookSecret)
	if err != nil {
		return reconcile.Event{}, fmt.Errorf("webhook signature: %w", err)
	}

	var intent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.Data.Raw, &intent); err != nil {
		return reconcile.Event{}, fmt.Errorf("webhook payload: %w", err)
	}

	return reconcile.Event{
		Type:     reconcile.EventType(ev.Type),
		IntentID: intent.ID,
	}, nil
}

// normalizeStatus maps Stripe's intent statuses onto the domain lifecycle.
// The pre-confirmation states all read as requires_action: from this
// pipeline's perspective the customer still has something to do.
func normalizeStatus(s stripe.PaymentIntentStatus) domain.PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.PaymentSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return domain.PaymentProcessing
	case stripe.PaymentIntentStatusCanceled:
		return domain.PaymentCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture:
		return domain.PaymentRequiresAction
	default:
		return domain.PaymentFailed
	}
}
