// Package discount resolves promo/referral discounts, tax, and stored-credit
// usage into the final price breakdown.
//
// Two discount sources exist on purpose: promotion rules stored in the promo
// table, and referral codes which always grant a fixed configured percentage.
// Both feed the same tax-and-credit formula downstream.
package discount

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/darkvsx/boostd/internal/domain"
)

// Config carries the business constants for the resolver.
type Config struct {
	TaxRate         float64 // e.g. 0.08
	ReferralPercent int64   // e.g. 15
	MinChargeCents  int64   // processor minimum, e.g. 50
	Now             func() time.Time
}

// Resolver computes price breakdowns.
type Resolver struct {
	promos  domain.PromoStore
	credits domain.CreditStore
	cfg     Config
}

// New creates a resolver. cfg.Now defaults to time.Now.
func New(promos domain.PromoStore, credits domain.CreditStore, cfg Config) *Resolver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{promos: promos, credits: credits, cfg: cfg}
}

// Resolve turns a subtotal plus optional promo code and credit request into
// the final breakdown. All amounts are cents.
//
// Credits are clamped to the pre-credit order total silently; whenever the
// stored balance is the binding constraint instead, the order is rejected
// with InsufficientCreditsError — the client assumed a balance it does not
// have, and must be told rather than quietly under-credited.
func (r *Resolver) Resolve(ctx context.Context, subtotal int64, promoCode, userID string, requestedCredits int64) (domain.PriceBreakdown, error) {
	var out domain.PriceBreakdown
	out.Subtotal = subtotal

	if promoCode != "" {
		discount, err := r.resolveDiscount(ctx, promoCode, subtotal)
		if err != nil {
			return out, err
		}
		out.DiscountAmount = discount
	}

	out.TaxAmount = r.taxOn(subtotal - out.DiscountAmount)

	preCredit := subtotal - out.DiscountAmount + out.TaxAmount

	if requestedCredits > 0 {
		if userID == "" {
			return out, &domain.InsufficientCreditsError{Requested: requestedCredits, Available: 0}
		}
		available, err := r.credits.CreditBalance(ctx, userID)
		if err == domain.ErrUserNotFound {
			return out, &domain.InsufficientCreditsError{Requested: requestedCredits, Available: 0}
		}
		if err != nil {
			return out, err
		}

		// Clamping to the order total is silent; a short balance is not.
		usable := min64(requestedCredits, preCredit)
		if available < usable {
			return out, &domain.InsufficientCreditsError{Requested: requestedCredits, Available: available}
		}
		out.CreditsApplied = usable
	}

	total := preCredit - out.CreditsApplied
	if total < r.cfg.MinChargeCents {
		total = r.cfg.MinChargeCents
	}
	out.TotalAmount = total
	return out, nil
}

// resolveDiscount computes the discount in cents for a promo or referral
// code, clamped to the subtotal. Promo table first; referral codes fall
// through to the fixed-percentage rule.
func (r *Resolver) resolveDiscount(ctx context.Context, code string, subtotal int64) (int64, error) {
	promo, err := r.promos.PromoCode(ctx, code)
	switch err {
	case nil:
		return r.promoDiscount(promo, subtotal)
	case domain.ErrPromoNotFound:
		// fall through to referral lookup
	default:
		return 0, err
	}

	ref, err := r.promos.ReferralCode(ctx, code)
	if err == domain.ErrPromoNotFound {
		return 0, &domain.InvalidPromoCodeError{PromoCode: code, Reason: "not found"}
	}
	if err != nil {
		return 0, err
	}
	if !ref.Active {
		return 0, &domain.InvalidPromoCodeError{PromoCode: code, Reason: "inactive"}
	}
	return clamp(percentOf(subtotal, r.cfg.ReferralPercent), subtotal), nil
}

func (r *Resolver) promoDiscount(p *domain.PromoCode, subtotal int64) (int64, error) {
	if !p.Active {
		return 0, &domain.InvalidPromoCodeError{PromoCode: p.Code, Reason: "inactive"}
	}
	if p.ExpiresAt != nil && r.cfg.Now().After(*p.ExpiresAt) {
		return 0, &domain.InvalidPromoCodeError{PromoCode: p.Code, Reason: "expired"}
	}
	if p.MaxUses > 0 && p.UsedCount >= p.MaxUses {
		return 0, &domain.InvalidPromoCodeError{PromoCode: p.Code, Reason: "usage exhausted"}
	}

	switch p.DiscountType {
	case "flat":
		return clamp(p.Value, subtotal), nil
	case "percent":
		return clamp(percentOf(subtotal, p.Value), subtotal), nil
	default:
		return 0, &domain.InvalidPromoCodeError{PromoCode: p.Code, Reason: "unknown discount type"}
	}
}

// taxOn computes the fixed-rate tax on a discounted subtotal, never negative,
// rounded to the cent.
func (r *Resolver) taxOn(base int64) int64 {
	if base <= 0 {
		return 0
	}
	rate := decimal.NewFromFloat(r.cfg.TaxRate)
	return decimal.NewFromInt(base).Mul(rate).Round(0).IntPart()
}

// percentOf returns pct% of amount in cents, rounded to the cent.
func percentOf(amount, pct int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0).IntPart()
}

func clamp(v, max int64) int64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func min64(vals ...int64) int64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
