package discount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/darkvsx/boostd/internal/domain"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakePromos struct {
	promos    map[string]*domain.PromoCode
	referrals map[string]*domain.ReferralCode
}

func (f *fakePromos) PromoCode(_ context.Context, code string) (*domain.PromoCode, error) {
	if p, ok := f.promos[code]; ok {
		return p, nil
	}
	return nil, domain.ErrPromoNotFound
}

func (f *fakePromos) ReferralCode(_ context.Context, code string) (*domain.ReferralCode, error) {
	if r, ok := f.referrals[code]; ok {
		return r, nil
	}
	return nil, domain.ErrPromoNotFound
}

func (f *fakePromos) ClaimPromoUse(context.Context, string) (bool, error) { return true, nil }

type fakeCredits struct {
	balances map[string]int64
}

func (f *fakeCredits) CreditBalance(_ context.Context, userID string) (int64, error) {
	if b, ok := f.balances[userID]; ok {
		return b, nil
	}
	return 0, domain.ErrUserNotFound
}

func (f *fakeCredits) DebitCredits(context.Context, string, int64) (int64, bool, error) {
	return 0, false, nil
}

func (f *fakeCredits) InsertLedgerEntry(context.Context, domain.CreditLedgerEntry) error {
	return nil
}

func testResolver(promos *fakePromos, credits *fakeCredits) *Resolver {
	if promos == nil {
		promos = &fakePromos{}
	}
	if credits == nil {
		credits = &fakeCredits{}
	}
	return New(promos, credits, Config{
		TaxRate:         0.08,
		ReferralPercent: 15,
		MinChargeCents:  50,
		Now:             func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
}

// ─── Tax & Totals ───────────────────────────────────────────────────────────

func TestResolve_TaxDeterminism(t *testing.T) {
	// Subtotal $100, flat discount $20, 8% tax → tax $6.40, total $86.40.
	promos := &fakePromos{promos: map[string]*domain.PromoCode{
		"SAVE20": {Code: "SAVE20", DiscountType: "flat", Value: 2000, Active: true},
	}}
	r := testResolver(promos, nil)

	got, err := r.Resolve(context.Background(), 10000, "SAVE20", "", 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := domain.PriceBreakdown{
		Subtotal: 10000, DiscountAmount: 2000, TaxAmount: 640, TotalAmount: 8640,
	}
	if got != want {
		t.Errorf("breakdown = %+v, want %+v", got, want)
	}
}

func TestResolve_NoDiscountNoCredits(t *testing.T) {
	r := testResolver(nil, nil)
	got, err := r.Resolve(context.Background(), 10000, "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.TaxAmount != 800 || got.TotalAmount != 10800 {
		t.Errorf("breakdown = %+v, want tax 800 total 10800", got)
	}
}

func TestResolve_PercentPromo(t *testing.T) {
	promos := &fakePromos{promos: map[string]*domain.PromoCode{
		"TEN": {Code: "TEN", DiscountType: "percent", Value: 10, Active: true},
	}}
	r := testResolver(promos, nil)

	got, err := r.Resolve(context.Background(), 10000, "TEN", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.DiscountAmount != 1000 {
		t.Errorf("DiscountAmount = %d, want 1000", got.DiscountAmount)
	}
	// tax on 9000 = 720
	if got.TaxAmount != 720 || got.TotalAmount != 9720 {
		t.Errorf("breakdown = %+v", got)
	}
}

func TestResolve_FlatPromoClampedToSubtotal(t *testing.T) {
	promos := &fakePromos{promos: map[string]*domain.PromoCode{
		"HUGE": {Code: "HUGE", DiscountType: "flat", Value: 99999, Active: true},
	}}
	r := testResolver(promos, nil)

	got, err := r.Resolve(context.Background(), 2000, "HUGE", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.DiscountAmount != 2000 {
		t.Errorf("DiscountAmount = %d, want clamp to subtotal 2000", got.DiscountAmount)
	}
	// total floors at the minimum charge
	if got.TotalAmount != 50 {
		t.Errorf("TotalAmount = %d, want minimum charge 50", got.TotalAmount)
	}
}

func TestResolve_ReferralFixedPercent(t *testing.T) {
	promos := &fakePromos{referrals: map[string]*domain.ReferralCode{
		"FRIEND-7": {Code: "FRIEND-7", ReferrerUserID: "user-7", Active: true},
	}}
	r := testResolver(promos, nil)

	got, err := r.Resolve(context.Background(), 10000, "FRIEND-7", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.DiscountAmount != 1500 {
		t.Errorf("referral discount = %d, want 15%% = 1500", got.DiscountAmount)
	}
}

// ─── Promo Rejections ───────────────────────────────────────────────────────

func TestResolve_PromoRejections(t *testing.T) {
	expired := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	promos := &fakePromos{
		promos: map[string]*domain.PromoCode{
			"OLD":   {Code: "OLD", DiscountType: "flat", Value: 100, Active: true, ExpiresAt: &expired},
			"DEAD":  {Code: "DEAD", DiscountType: "flat", Value: 100, Active: false},
			"SPENT": {Code: "SPENT", DiscountType: "flat", Value: 100, Active: true, MaxUses: 5, UsedCount: 5},
		},
		referrals: map[string]*domain.ReferralCode{
			"GONE": {Code: "GONE", ReferrerUserID: "u", Active: false},
		},
	}
	r := testResolver(promos, nil)

	for _, code := range []string{"OLD", "DEAD", "SPENT", "GONE", "NEVER-WAS"} {
		_, err := r.Resolve(context.Background(), 10000, code, "", 0)
		var promoErr *domain.InvalidPromoCodeError
		if !errors.As(err, &promoErr) {
			t.Errorf("code %s: error = %v, want InvalidPromoCodeError", code, err)
		}
	}
}

// ─── Credits ────────────────────────────────────────────────────────────────

func TestResolve_InsufficientCreditsRejected(t *testing.T) {
	// Subtotal $100, tax 8% → $108 due. User requests $50 but holds $10:
	// reject, never silently clamp.
	credits := &fakeCredits{balances: map[string]int64{"user-1": 1000}}
	r := testResolver(nil, credits)

	_, err := r.Resolve(context.Background(), 10000, "", "user-1", 5000)
	var credErr *domain.InsufficientCreditsError
	if !errors.As(err, &credErr) {
		t.Fatalf("error = %v, want InsufficientCreditsError", err)
	}
	if credErr.Requested != 5000 || credErr.Available != 1000 {
		t.Errorf("error detail = %+v", credErr)
	}
}

func TestResolve_CreditsApplied(t *testing.T) {
	credits := &fakeCredits{balances: map[string]int64{"user-1": 5000}}
	r := testResolver(nil, credits)

	got, err := r.Resolve(context.Background(), 10000, "", "user-1", 3000)
	if err != nil {
		t.Fatal(err)
	}
	if got.CreditsApplied != 3000 {
		t.Errorf("CreditsApplied = %d, want 3000", got.CreditsApplied)
	}
	if got.TotalAmount != 7800 {
		t.Errorf("TotalAmount = %d, want 10800-3000 = 7800", got.TotalAmount)
	}
}

func TestResolve_CreditsClampedToOrderTotal(t *testing.T) {
	// Balance covers far more than the order; applying only up to the order
	// total is not a shortfall, so no rejection.
	credits := &fakeCredits{balances: map[string]int64{"user-1": 100000}}
	r := testResolver(nil, credits)

	got, err := r.Resolve(context.Background(), 1000, "", "user-1", 50000)
	if err != nil {
		t.Fatal(err)
	}
	if got.CreditsApplied != 1080 {
		t.Errorf("CreditsApplied = %d, want full pre-credit total 1080", got.CreditsApplied)
	}
	if got.TotalAmount != 50 {
		t.Errorf("TotalAmount = %d, want minimum charge floor 50", got.TotalAmount)
	}
}

func TestResolve_ShortBalanceBelowOrderTotalRejected(t *testing.T) {
	// Requested credits exceed the order total AND the balance is short of
	// that total. The order-total clamp must not mask the short balance:
	// silently applying 500 here would later trip payment verification as a
	// fraud-flagged amount mismatch instead of a correctable rejection.
	credits := &fakeCredits{balances: map[string]int64{"user-1": 500}}
	r := testResolver(nil, credits)

	// subtotal 1000, tax 80 → pre-credit total 1080; requested 50000.
	_, err := r.Resolve(context.Background(), 1000, "", "user-1", 50000)
	var credErr *domain.InsufficientCreditsError
	if !errors.As(err, &credErr) {
		t.Fatalf("error = %v, want InsufficientCreditsError", err)
	}
	if credErr.Requested != 50000 || credErr.Available != 500 {
		t.Errorf("error detail = %+v", credErr)
	}
}

func TestResolve_CreditsForUnknownUser(t *testing.T) {
	r := testResolver(nil, &fakeCredits{})
	_, err := r.Resolve(context.Background(), 10000, "", "ghost", 100)
	var credErr *domain.InsufficientCreditsError
	if !errors.As(err, &credErr) {
		t.Fatalf("error = %v, want InsufficientCreditsError", err)
	}
}

func TestResolve_CreditsWithoutUser(t *testing.T) {
	r := testResolver(nil, nil)
	_, err := r.Resolve(context.Background(), 10000, "", "", 100)
	var credErr *domain.InsufficientCreditsError
	if !errors.As(err, &credErr) {
		t.Fatalf("error = %v, want InsufficientCreditsError", err)
	}
}

// ─── Minimum Charge ─────────────────────────────────────────────────────────

func TestResolve_MinimumChargeFloor(t *testing.T) {
	// A $0.10 computed total must be raised to the configured $0.50 minimum.
	credits := &fakeCredits{balances: map[string]int64{"user-1": 100000}}
	promos := &fakePromos{promos: map[string]*domain.PromoCode{
		"ALMOST": {Code: "ALMOST", DiscountType: "flat", Value: 9991, Active: true},
	}}
	r := testResolver(promos, credits)

	// subtotal 10000, discount 9991 → 9, tax round(9*0.08)=1 → total 10
	got, err := r.Resolve(context.Background(), 10000, "ALMOST", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalAmount != 50 {
		t.Errorf("TotalAmount = %d, want floor 50", got.TotalAmount)
	}
}
