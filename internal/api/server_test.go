package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darkvsx/boostd/internal/app/discount"
	"github.com/darkvsx/boostd/internal/app/orders"
	"github.com/darkvsx/boostd/internal/app/payment"
	"github.com/darkvsx/boostd/internal/app/pricing"
	"github.com/darkvsx/boostd/internal/app/reconcile"
	"github.com/darkvsx/boostd/internal/domain"
	"github.com/darkvsx/boostd/internal/infra/sqlite"
)

// ─── Test Harness ───────────────────────────────────────────────────────────

// fakeIntents serves payment records from a map, standing in for Stripe.
type fakeIntents struct {
	records map[string]domain.PaymentRecord
}

func (f *fakeIntents) RetrieveIntent(_ context.Context, id string) (domain.PaymentRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return domain.PaymentRecord{}, fmt.Errorf("no such intent %s", id)
	}
	return rec, nil
}

func (f *fakeIntents) succeed(id string, amount int64) {
	f.records[id] = domain.PaymentRecord{
		IntentID:       id,
		Status:         domain.PaymentSucceeded,
		CapturedAmount: amount,
	}
}

// fakeEvents accepts only the literal signature "valid" and replays a fixed
// event per intent, standing in for webhook.ConstructEvent.
type fakeEvents struct {
	event reconcile.Event
}

func (f *fakeEvents) VerifyEvent(_ []byte, sig string) (reconcile.Event, error) {
	if sig != "valid" {
		return reconcile.Event{}, errors.New("signature mismatch")
	}
	return f.event, nil
}

type testEnv struct {
	server  *Server
	db      *sqlite.DB
	intents *fakeIntents
	events  *fakeEvents
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	if err := db.UpsertService(ctx, "svc-duo", "Duo Boost", 9999, true); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertProfile(ctx, "user-1", "user1@example.com", 5000); err != nil {
		t.Fatal(err)
	}

	intents := &fakeIntents{records: map[string]domain.PaymentRecord{}}
	events := &fakeEvents{}

	writer, err := orders.New(db, db, 1)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}

	srv := NewServer(
		pricing.New(db),
		discount.New(db, db, discount.Config{TaxRate: 0.08, ReferralPercent: 15, MinChargeCents: 50}),
		payment.New(intents, time.Second),
		writer,
		reconcile.New(db),
		db, db, events,
	)

	return &testEnv{server: srv, db: db, intents: intents, events: events}
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

// checkoutBody builds the standard two-unit checkout request.
// Catalog math: 2 × 9999 = 19998 subtotal, 1600 tax, 21598 total.
func checkoutBody(intentID string) map[string]interface{} {
	return map[string]interface{}{
		"paymentIntentId": intentID,
		"orderData": map[string]interface{}{
			"customerEmail": "buyer@example.com",
			"customerName":  "Buyer",
			"items": []map[string]interface{}{
				{"id": "svc-duo", "type": "service", "quantity": 2, "unitPrice": 1},
			},
		},
	}
}

const checkoutTotal = 21598

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

// ─── Order Creation ─────────────────────────────────────────────────────────

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	env.intents.succeed("pi_ok", checkoutTotal)

	w := env.post(t, "/api/orders", checkoutBody("pi_ok"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp createOrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.Duplicate {
		t.Error("first creation flagged duplicate")
	}
	if resp.OrderNumber == "" || resp.OrderNumber[:3] != "BD-" {
		t.Errorf("orderNumber = %q, want BD- prefix", resp.OrderNumber)
	}

	// The stored order must carry the server-computed breakdown, not the
	// client's 1-cent claim.
	order, err := env.db.OrderByIntent(context.Background(), "pi_ok")
	if err != nil {
		t.Fatal(err)
	}
	if order.Breakdown.Subtotal != 19998 || order.Breakdown.TotalAmount != checkoutTotal {
		t.Errorf("breakdown = %+v, want subtotal 19998 total %d", order.Breakdown, checkoutTotal)
	}
	if order.Status != domain.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", order.Status)
	}
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	env.intents.succeed("pi_replay", checkoutTotal)

	first := env.post(t, "/api/orders", checkoutBody("pi_replay"))
	second := env.post(t, "/api/orders", checkoutBody("pi_replay"))
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d / %d", first.Code, second.Code)
	}

	var r1, r2 createOrderResponse
	json.Unmarshal(first.Body.Bytes(), &r1)
	json.Unmarshal(second.Body.Bytes(), &r2)

	if r1.OrderID != r2.OrderID {
		t.Errorf("replay returned a different order: %s vs %s", r1.OrderID, r2.OrderID)
	}
	if r1.Duplicate || !r2.Duplicate {
		t.Errorf("duplicate flags = %v / %v, want false / true", r1.Duplicate, r2.Duplicate)
	}
}

func TestCreateOrder_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.intents.succeed("pi_ok", checkoutTotal)
	env.intents.records["pi_pending"] = domain.PaymentRecord{
		IntentID: "pi_pending", Status: domain.PaymentProcessing,
	}
	env.intents.succeed("pi_short", checkoutTotal-500)

	unknownItem := checkoutBody("pi_ok")
	unknownItem["orderData"].(map[string]interface{})["items"] = []map[string]interface{}{
		{"id": "svc-ghost", "type": "service", "quantity": 1},
	}

	noIntent := checkoutBody("pi_ok")
	noIntent["paymentIntentId"] = ""

	badPromo := checkoutBody("pi_ok")
	badPromo["orderData"].(map[string]interface{})["referralCode"] = "NOPE"

	tests := []struct {
		name     string
		body     map[string]interface{}
		wantCode string
	}{
		{"unknown item", unknownItem, "INVALID_LINE_ITEM"},
		{"missing intent id", noIntent, "INVALID_REQUEST"},
		{"unknown promo", badPromo, "INVALID_PROMO_CODE"},
		{"payment not completed", checkoutBody("pi_pending"), "PAYMENT_NOT_COMPLETED"},
		{"amount mismatch", checkoutBody("pi_short"), "PAYMENT_AMOUNT_MISMATCH"},
		{"lookup failure", checkoutBody("pi_missing"), "PAYMENT_LOOKUP_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.post(t, "/api/orders", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			if got := errCode(t, w); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
			// No partial order may exist after a rejection.
			if _, err := env.db.OrderByIntent(context.Background(), tt.body["paymentIntentId"].(string)); !errors.Is(err, domain.ErrOrderNotFound) {
				t.Errorf("order exists after rejection (err=%v)", err)
			}
		})
	}
}

func TestCreateOrder_CreditsDebited(t *testing.T) {
	env := newTestEnv(t)

	// 19998 subtotal + 1600 tax - 2000 credits = 19598.
	env.intents.succeed("pi_credits", 19598)

	body := checkoutBody("pi_credits")
	od := body["orderData"].(map[string]interface{})
	od["userId"] = "user-1"
	od["creditsUsed"] = 2000

	w := env.post(t, "/api/orders", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	balance, err := env.db.CreditBalance(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 3000 {
		t.Errorf("balance = %d, want 3000", balance)
	}
}

// ─── Order Lookup ───────────────────────────────────────────────────────────

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t)
	env.intents.succeed("pi_lookup", checkoutTotal)

	w := env.post(t, "/api/orders", checkoutBody("pi_lookup"))
	var created createOrderResponse
	json.Unmarshal(w.Body.Bytes(), &created)

	got := env.get(t, "/api/orders/"+created.OrderNumber)
	if got.Code != http.StatusOK {
		t.Fatalf("status = %d", got.Code)
	}

	var order domain.Order
	if err := json.Unmarshal(got.Body.Bytes(), &order); err != nil {
		t.Fatal(err)
	}
	if order.ID != created.OrderID {
		t.Errorf("order id = %s, want %s", order.ID, created.OrderID)
	}
	if len(order.History) == 0 {
		t.Error("order history missing from lookup")
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/api/orders/BD-NOPE")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if got := errCode(t, w); got != "ORDER_NOT_FOUND" {
		t.Errorf("code = %q", got)
	}
}

// ─── Webhook ────────────────────────────────────────────────────────────────

func TestStripeWebhook_RejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe",
		bytes.NewReader([]byte(`{"type":"payment_intent.succeeded"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=forged")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := errCode(t, w); got != "INVALID_SIGNATURE" {
		t.Errorf("code = %q", got)
	}
}

func TestStripeWebhook_AppliesEvent(t *testing.T) {
	env := newTestEnv(t)
	env.intents.succeed("pi_hook", checkoutTotal)
	env.post(t, "/api/orders", checkoutBody("pi_hook"))

	env.events.event = reconcile.Event{Type: reconcile.EventProcessing, IntentID: "pi_hook"}

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe",
		bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "valid")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	order, err := env.db.OrderByIntent(context.Background(), "pi_hook")
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != domain.StatusProcessing {
		t.Errorf("status = %s, want processing", order.Status)
	}
}

// ─── Rate Limiting ──────────────────────────────────────────────────────────

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.intents.succeed("pi_limit", checkoutTotal)
	env.server.SetRateLimiter(env.db, LimitPolicy{Window: time.Minute, MaxRequests: 2})

	for i := 0; i < 2; i++ {
		if w := env.post(t, "/api/orders", checkoutBody("pi_limit")); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}

	w := env.post(t, "/api/orders", checkoutBody("pi_limit"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := errCode(t, w); got != "RATE_LIMITED" {
		t.Errorf("code = %q", got)
	}
}

// ─── Health ─────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
