// Package payment verifies that the processor actually captured what the
// pricing pipeline computed, before any order is written.
package payment

import (
	"context"
	"log"
	"time"

	"github.com/darkvsx/boostd/internal/domain"
	"github.com/darkvsx/boostd/internal/infra/observability"
)

// ToleranceCents absorbs sub-cent drift from independent rounding in the
// discount/tax math versus the processor's own minor-unit arithmetic.
// Exact equality would cause spurious rejections.
const ToleranceCents = 1

// Verifier checks captured payments against expected totals.
type Verifier struct {
	intents domain.IntentRetriever
	timeout time.Duration
}

// New creates a verifier. timeout bounds the processor lookup; on timeout the
// verification fails closed.
func New(intents domain.IntentRetriever, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Verifier{intents: intents, timeout: timeout}
}

// Verify fetches the payment intent and confirms it succeeded for the
// expected amount (cents) within tolerance. Returns the validated record.
func (v *Verifier) Verify(ctx context.Context, intentID string, expectedTotal int64) (domain.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	record, err := v.intents.RetrieveIntent(ctx, intentID)
	if err != nil {
		return domain.PaymentRecord{}, &domain.PaymentLookupError{IntentID: intentID, Err: err}
	}

	if record.Status != domain.PaymentSucceeded {
		return domain.PaymentRecord{}, &domain.PaymentNotCompletedError{
			IntentID: intentID,
			Status:   record.Status,
		}
	}

	diff := record.CapturedAmount - expectedTotal
	if diff < 0 {
		diff = -diff
	}
	if diff > ToleranceCents {
		// Pricing bug or tampering; log both sides, never proceed.
		log.Printf("[payment] AMOUNT MISMATCH intent=%s expected=%d captured=%d",
			intentID, expectedTotal, record.CapturedAmount)
		observability.AmountMismatches.Inc()
		return domain.PaymentRecord{}, &domain.PaymentAmountMismatchError{
			IntentID: intentID,
			Expected: expectedTotal,
			Captured: record.CapturedAmount,
		}
	}

	return record, nil
}
