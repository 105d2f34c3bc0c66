package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// CatalogEntry is the store's authoritative view of a purchasable item.
type CatalogEntry struct {
	Ref       string
	Name      string
	UnitPrice int64 // minor units
	Active    bool
}

// CatalogStore abstracts authoritative price/active lookups.
type CatalogStore interface {
	// CatalogEntries resolves the given refs of one item type. Missing refs
	// are simply absent from the result map; the caller decides how to fail.
	CatalogEntries(ctx context.Context, kind ItemType, refs []string) (map[string]CatalogEntry, error)
}

// PromoCode is a stored promotion rule.
type PromoCode struct {
	Code         string
	DiscountType string // "flat" or "percent"
	Value        int64  // cents for flat, whole percent for percent
	Active       bool
	ExpiresAt    *time.Time
	MaxUses      int64 // 0 = unlimited
	UsedCount    int64
}

// ReferralCode ties a code to a referring user; the discount is a fixed
// configured percentage rather than a promo-table rule.
type ReferralCode struct {
	Code           string
	ReferrerUserID string
	Active         bool
}

// PromoStore abstracts promotion and referral code lookups.
type PromoStore interface {
	PromoCode(ctx context.Context, code string) (*PromoCode, error)
	ReferralCode(ctx context.Context, code string) (*ReferralCode, error)

	// ClaimPromoUse atomically increments a promo code's usage counter,
	// refusing (ok=false) once MaxUses is reached or the code is unknown,
	// so a code at MaxUses-1 cannot be redeemed twice concurrently.
	ClaimPromoUse(ctx context.Context, code string) (ok bool, err error)
}

// CreditStore abstracts the stored-credit balance and its audit ledger.
type CreditStore interface {
	CreditBalance(ctx context.Context, userID string) (int64, error)

	// DebitCredits atomically decrements the balance, failing (ok=false)
	// instead of going below zero. Returns the balance after the debit.
	DebitCredits(ctx context.Context, userID string, amount int64) (newBalance int64, ok bool, err error)

	InsertLedgerEntry(ctx context.Context, entry CreditLedgerEntry) error
}

// OrderStore abstracts durable order persistence. InsertOrder must enforce a
// uniqueness constraint on PaymentIntentID and report violations as
// ErrDuplicateIntent so the writer can treat a lost race as a replay.
type OrderStore interface {
	OrderByIntent(ctx context.Context, paymentIntentID string) (*Order, error)
	OrderByNumber(ctx context.Context, orderNumber string) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	SetOrderStatus(ctx context.Context, orderID string, status OrderStatus, description string) error
	StatusHistory(ctx context.Context, orderID string) ([]StatusChange, error)
}

// IntentRetriever abstracts the payment processor's read side.
type IntentRetriever interface {
	RetrieveIntent(ctx context.Context, intentID string) (PaymentRecord, error)
}

// Notifier sends the fire-and-forget order confirmation. Failures must never
// roll back an otherwise-successful order.
type Notifier interface {
	OrderConfirmation(ctx context.Context, o *Order) error
}
