package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrUserNotFound  = errors.New("user profile not found")
	ErrPromoNotFound = errors.New("promo code not found")

	// ErrDuplicateIntent is returned by OrderStore.InsertOrder when the
	// uniqueness constraint on payment_intent_id fires. It is NOT a failure:
	// the writer treats it as an idempotent replay of an existing order.
	ErrDuplicateIntent = errors.New("order already exists for payment intent")
)

// ─── Client-Facing Errors (4xx-equivalent) ──────────────────────────────────
// Each carries a stable machine code surfaced in the JSON error body.
// None of these are retried automatically; the client resubmits.

// InvalidLineItemError reports catalog items that are missing or not
// purchasable. All offending refs are named, never silently dropped.
type InvalidLineItemError struct {
	Refs []string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("invalid line items: %s", strings.Join(e.Refs, ", "))
}

func (e *InvalidLineItemError) Code() string { return "INVALID_LINE_ITEM" }

// InvalidPromoCodeError reports a promo or referral code that cannot be
// applied: unknown, expired, inactive, or usage-exhausted.
type InvalidPromoCodeError struct {
	PromoCode string
	Reason    string
}

func (e *InvalidPromoCodeError) Error() string {
	return fmt.Sprintf("promo code %q rejected: %s", e.PromoCode, e.Reason)
}

func (e *InvalidPromoCodeError) Code() string { return "INVALID_PROMO_CODE" }

// InsufficientCreditsError reports that the user requested more stored
// credit than is available. The order is rejected rather than silently
// clamped — the client's assumed balance was wrong and it must be told.
type InsufficientCreditsError struct {
	Requested int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientCreditsError) Code() string { return "INSUFFICIENT_CREDITS" }

// ─── Payment Verification Errors ────────────────────────────────────────────

// PaymentLookupError wraps a failed payment-intent retrieval. Retryable by
// client resubmission only, never auto-retried internally.
type PaymentLookupError struct {
	IntentID string
	Err      error
}

func (e *PaymentLookupError) Error() string {
	return fmt.Sprintf("payment lookup failed for %s: %v", e.IntentID, e.Err)
}

func (e *PaymentLookupError) Unwrap() error { return e.Err }

func (e *PaymentLookupError) Code() string { return "PAYMENT_LOOKUP_FAILED" }

// PaymentNotCompletedError reports a payment that has not reached the
// terminal succeeded state. Carries the actual status for the caller.
type PaymentNotCompletedError struct {
	IntentID string
	Status   PaymentStatus
}

func (e *PaymentNotCompletedError) Error() string {
	return fmt.Sprintf("payment %s not completed: status %s", e.IntentID, e.Status)
}

func (e *PaymentNotCompletedError) Code() string { return "PAYMENT_NOT_COMPLETED" }

// PaymentAmountMismatchError reports a captured amount that disagrees with
// the server-computed total beyond tolerance. Either a pricing bug or
// tampering — never silently proceed. Amounts are minor units.
type PaymentAmountMismatchError struct {
	IntentID string
	Expected int64
	Captured int64
}

func (e *PaymentAmountMismatchError) Error() string {
	return fmt.Sprintf("payment %s amount mismatch: expected %d, captured %d",
		e.IntentID, e.Expected, e.Captured)
}

func (e *PaymentAmountMismatchError) Code() string { return "PAYMENT_AMOUNT_MISMATCH" }

// ─── Error Classification ───────────────────────────────────────────────────

// Coded is implemented by every client-facing error above.
type Coded interface {
	error
	Code() string
}

// ClientFault reports whether err is a 4xx-equivalent failure the client
// must correct, as opposed to a storage/infrastructure fault.
func ClientFault(err error) bool {
	var c Coded
	return errors.As(err, &c)
}
