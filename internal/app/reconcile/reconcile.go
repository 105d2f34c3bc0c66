// Package reconcile applies asynchronous payment-processor events to order
// state, independent of the synchronous creation path.
//
// Every update is a state-set, so processor redelivery is harmless. The one
// thing this package watches for beyond status bookkeeping is the
// reconciliation gap: a payment that succeeded with no order on record,
// which means the synchronous path failed after capture.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/darkvsx/boostd/internal/domain"
	"github.com/darkvsx/boostd/internal/infra/observability"
)

// EventType classifies the processor callbacks this system handles.
type EventType string

const (
	EventSucceeded      EventType = "payment_intent.succeeded"
	EventFailed         EventType = "payment_intent.payment_failed"
	EventProcessing     EventType = "payment_intent.processing"
	EventRequiresAction EventType = "payment_intent.requires_action"
	EventCanceled       EventType = "payment_intent.canceled"
)

// Event is a verified, normalized processor callback.
type Event struct {
	Type     EventType
	IntentID string
}

// Reconciler updates order status from processor events.
type Reconciler struct {
	store domain.OrderStore
}

// New creates a reconciler over the given order store.
func New(store domain.OrderStore) *Reconciler {
	return &Reconciler{store: store}
}

// HandleEvent applies one event. A nil return acknowledges the event to the
// processor; an error return asks for redelivery.
//
// Unknown event types are acknowledged without action — the processor sends
// more event kinds than this pipeline subscribes to.
func (r *Reconciler) HandleEvent(ctx context.Context, ev Event) error {
	status, description, handled := statusFor(ev.Type)
	if !handled {
		observability.WebhookEvents.WithLabelValues(string(ev.Type), "ignored").Inc()
		return nil
	}

	order, err := r.store.OrderByIntent(ctx, ev.IntentID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		if ev.Type == EventSucceeded {
			// Payment captured, no order: the synchronous path failed after
			// capture. Flag loudly for ops follow-up; acknowledging is
			// correct because redelivery cannot create the missing order.
			log.Printf("[webhook] RECONCILIATION GAP: payment %s succeeded but no order exists", ev.IntentID)
			observability.ReconciliationGaps.Inc()
		} else {
			log.Printf("[webhook] event %s for unknown intent %s, nothing to update", ev.Type, ev.IntentID)
		}
		observability.WebhookEvents.WithLabelValues(string(ev.Type), "no_order").Inc()
		return nil
	}
	if err != nil {
		observability.WebhookEvents.WithLabelValues(string(ev.Type), "error").Inc()
		return fmt.Errorf("lookup order for intent %s: %w", ev.IntentID, err)
	}

	if !domain.CanTransition(order.Status, status) {
		// Late or out-of-order delivery (e.g. a failure event after the
		// order completed). Never downgrade; acknowledge and move on.
		log.Printf("[webhook] dropping %s for order %s: %s -> %s not allowed",
			ev.Type, order.ID, order.Status, status)
		observability.WebhookEvents.WithLabelValues(string(ev.Type), "dropped").Inc()
		return nil
	}

	if err := r.store.SetOrderStatus(ctx, order.ID, status, description); err != nil {
		observability.WebhookEvents.WithLabelValues(string(ev.Type), "error").Inc()
		return fmt.Errorf("set order %s status %s: %w", order.ID, status, err)
	}

	observability.WebhookEvents.WithLabelValues(string(ev.Type), "applied").Inc()
	return nil
}

// statusFor maps an event type to the order status it sets.
func statusFor(t EventType) (domain.OrderStatus, string, bool) {
	switch t {
	case EventSucceeded:
		return domain.StatusConfirmed, "payment confirmed by processor", true
	case EventFailed:
		return domain.StatusFailed, "payment failed", true
	case EventProcessing:
		return domain.StatusProcessing, "payment processing", true
	case EventRequiresAction:
		return domain.StatusPendingAction, "payment requires customer action", true
	case EventCanceled:
		return domain.StatusCancelled, "payment canceled", true
	default:
		return "", "", false
	}
}
