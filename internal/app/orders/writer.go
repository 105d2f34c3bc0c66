// Package orders materializes verified orders exactly once per payment
// intent.
//
// The pre-check is an optimization; the storage uniqueness constraint on
// payment_intent_id is the real guarantee. A lost race surfaces as a
// constraint violation and is answered with the winner's order, never an
// error — callers cannot tell which request created the row, and must not
// care.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/darkvsx/boostd/internal/domain"
	"github.com/darkvsx/boostd/internal/infra/observability"
)

// Writer persists verified orders idempotently.
type Writer struct {
	store   domain.OrderStore
	credits domain.CreditStore
	node    *snowflake.Node
	now     func() time.Time
}

// New creates a writer. nodeID feeds the snowflake order-number generator and
// must be unique per running instance.
func New(store domain.OrderStore, credits domain.CreditStore, nodeID int64) (*Writer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return &Writer{store: store, credits: credits, node: node, now: time.Now}, nil
}

// Input is the fully-verified order data handed to the writer. Everything in
// it has already passed pricing, discount, and payment verification.
type Input struct {
	PaymentIntentID string
	Customer        domain.CustomerIdentity
	Items           []domain.PricedItem
	Breakdown       domain.PriceBreakdown
	Type            domain.OrderType
}

// Create persists the order, returning (order, duplicate, error).
//
// duplicate=true means an order already existed for the payment intent —
// either found by the pre-check or discovered when the insert lost a race —
// and the existing order is returned unchanged.
//
// The order insert is the financially authoritative write. The credit debit
// and ledger append are best-effort afterwards: a payment has been captured,
// so losing the order over a ledger hiccup is the one unacceptable outcome.
func (w *Writer) Create(ctx context.Context, in Input) (*domain.Order, bool, error) {
	// Idempotency pre-check (advisory; the constraint below is the guarantee).
	existing, err := w.store.OrderByIntent(ctx, in.PaymentIntentID)
	if err == nil {
		observability.DuplicateReplays.Inc()
		return existing, true, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, false, fmt.Errorf("idempotency pre-check: %w", err)
	}

	now := w.now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     fmt.Sprintf("BD-%s", w.node.Generate().Base36()),
		Customer:        in.Customer,
		Items:           in.Items,
		Breakdown:       in.Breakdown,
		PaymentIntentID: in.PaymentIntentID,
		Type:            in.Type,
		Status:          domain.StatusConfirmed,
		CreatedAt:       now,
	}

	err = w.store.InsertOrder(ctx, order)
	if errors.Is(err, domain.ErrDuplicateIntent) {
		// Lost the race to a concurrent writer: replay the winner's order.
		winner, ferr := w.store.OrderByIntent(ctx, in.PaymentIntentID)
		if ferr != nil {
			return nil, false, fmt.Errorf("re-fetch after duplicate insert: %w", ferr)
		}
		observability.DuplicateReplays.Inc()
		return winner, true, nil
	}
	if err != nil {
		// Payment captured, no order written — exactly the gap the webhook
		// reconciler exists to catch. Surface as a server fault.
		return nil, false, fmt.Errorf("insert order: %w", err)
	}

	observability.OrdersCreated.WithLabelValues(string(order.Type)).Inc()

	if in.Breakdown.CreditsApplied > 0 {
		w.debitCredits(ctx, order, in)
	}

	return order, false, nil
}

// debitCredits applies the stored-credit consumption recorded in the
// breakdown. Failures are logged loudly but never fail the order: the order
// row is the authoritative state and a missed debit is a reconciliation
// problem, not a lost sale.
func (w *Writer) debitCredits(ctx context.Context, order *domain.Order, in Input) {
	userID := in.Customer.UserID
	if userID == "" {
		log.Printf("[orders] RECONCILE: order %s has credits_applied=%d but no user id",
			order.ID, in.Breakdown.CreditsApplied)
		observability.CreditDebits.WithLabelValues("error").Inc()
		return
	}

	balance, ok, err := w.credits.DebitCredits(ctx, userID, in.Breakdown.CreditsApplied)
	if err != nil {
		log.Printf("[orders] RECONCILE: credit debit failed for order %s user %s: %v",
			order.ID, userID, err)
		observability.CreditDebits.WithLabelValues("error").Inc()
		return
	}
	if !ok {
		// The resolver validated the balance, but another order raced us.
		log.Printf("[orders] RECONCILE: credit debit refused for order %s user %s amount %d balance %d",
			order.ID, userID, in.Breakdown.CreditsApplied, balance)
		observability.CreditDebits.WithLabelValues("refused").Inc()
		return
	}
	observability.CreditDebits.WithLabelValues("applied").Inc()

	entry := domain.CreditLedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        domain.TxSpend,
		EntryType:   domain.EntryDebit,
		Amount:      in.Breakdown.CreditsApplied,
		OrderID:     order.ID,
		Description: fmt.Sprintf("credits applied to order %s", order.OrderNumber),
		Balance:     balance,
		CreatedAt:   w.now().UTC(),
	}
	if err := w.credits.InsertLedgerEntry(ctx, entry); err != nil {
		log.Printf("[orders] RECONCILE: ledger append failed for order %s: %v", order.ID, err)
	}
}
