package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darkvsx/boostd/internal/domain"
)

func testOrder() *domain.Order {
	return &domain.Order{
		ID:          "ord-1",
		OrderNumber: "BD-TEST",
		Customer:    domain.CustomerIdentity{Email: "buyer@example.com"},
		Items: []domain.PricedItem{
			{ItemRef: "svc-1", Name: "Level Boost", Quantity: 2, UnitPrice: 5000, LineTotal: 10000},
		},
		Breakdown: domain.PriceBreakdown{Subtotal: 10000, TaxAmount: 800, TotalAmount: 10800},
	}
}

func TestOrderConfirmation(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := New(srv.URL, time.Second)
	if err := m.OrderConfirmation(context.Background(), testOrder()); err != nil {
		t.Fatalf("OrderConfirmation() error: %v", err)
	}

	if got["to"] != "buyer@example.com" || got["order_number"] != "BD-TEST" {
		t.Errorf("payload = %+v", got)
	}
	if got["total_cents"] != float64(10800) {
		t.Errorf("total_cents = %v, want 10800", got["total_cents"])
	}
}

func TestOrderConfirmation_RelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := New(srv.URL, time.Second)
	if err := m.OrderConfirmation(context.Background(), testOrder()); err == nil {
		t.Error("relay 502 not surfaced")
	}
}

func TestOrderConfirmation_DisabledEndpoint(t *testing.T) {
	m := New("", time.Second)
	if err := m.OrderConfirmation(context.Background(), testOrder()); err != nil {
		t.Errorf("disabled mailer returned error: %v", err)
	}
}
