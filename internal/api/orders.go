package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/darkvsx/boostd/internal/app/orders"
	"github.com/darkvsx/boostd/internal/domain"
	"github.com/darkvsx/boostd/internal/infra/observability"
)

// ─── Order Creation ─────────────────────────────────────────────────────────

// createOrderRequest is the storefront's checkout payload. Client-supplied
// prices are display hints only; everything that matters is recomputed.
type createOrderRequest struct {
	PaymentIntentID string    `json:"paymentIntentId"`
	OrderData       orderData `json:"orderData"`
}

type orderData struct {
	CustomerEmail string        `json:"customerEmail"`
	CustomerName  string        `json:"customerName"`
	UserID        string        `json:"userId"`
	Items         []requestItem `json:"items"`
	ReferralCode  string        `json:"referralCode"`
	CreditsUsed   int64         `json:"creditsUsed"`
}

type requestItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Total     int64  `json:"totalPrice"`
}

type createOrderResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

// handleCreateOrder runs the full verification pipeline:
// price from catalog, resolve discount and credits, verify the captured
// payment against the computed total, then write the order idempotently.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if req.PaymentIntentID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "paymentIntentId is required")
		return
	}
	if req.OrderData.CustomerEmail == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "customerEmail is required")
		return
	}

	items := make([]domain.LineItem, 0, len(req.OrderData.Items))
	for _, it := range req.OrderData.Items {
		items = append(items, domain.LineItem{
			ItemRef:    it.ID,
			ItemType:   domain.ItemType(it.Type),
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.Total,
		})
	}

	ctx := r.Context()

	priced, subtotal, err := s.pricer.Price(ctx, items)
	if err != nil {
		s.rejectOrder(w, err)
		return
	}

	breakdown, err := s.discounts.Resolve(ctx, subtotal,
		req.OrderData.ReferralCode, req.OrderData.UserID, req.OrderData.CreditsUsed)
	if err != nil {
		s.rejectOrder(w, err)
		return
	}

	if _, err := s.payments.Verify(ctx, req.PaymentIntentID, breakdown.TotalAmount); err != nil {
		s.rejectOrder(w, err)
		return
	}

	order, duplicate, err := s.writer.Create(ctx, orders.Input{
		PaymentIntentID: req.PaymentIntentID,
		Customer: domain.CustomerIdentity{
			UserID: req.OrderData.UserID,
			Email:  req.OrderData.CustomerEmail,
			Name:   req.OrderData.CustomerName,
		},
		Items:     priced,
		Breakdown: breakdown,
		Type:      domain.ClassifyItems(items),
	})
	if err != nil {
		s.rejectOrder(w, err)
		return
	}

	if !duplicate {
		s.recordPromoUse(ctx, req.OrderData.ReferralCode, breakdown)
		s.notify(order)
	}

	writeJSON(w, http.StatusOK, createOrderResponse{
		Success:     true,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Duplicate:   duplicate,
	})
}

// rejectOrder maps a pipeline failure to the wire. Client faults carry their
// stable code at 400; everything else is a 500 the client may safely retry,
// because creation is idempotent on the payment intent.
func (s *Server) rejectOrder(w http.ResponseWriter, err error) {
	var coded domain.Coded
	if errors.As(err, &coded) {
		observability.CreationFailures.WithLabelValues(coded.Code()).Inc()
		writeError(w, http.StatusBadRequest, coded.Code(), coded.Error())
		return
	}
	observability.CreationFailures.WithLabelValues("INTERNAL").Inc()
	log.Printf("[api] order creation failed: %v", err)
	writeError(w, http.StatusInternalServerError, "ORDER_CREATION_FAILED",
		"order could not be created; safe to retry with the same payment intent")
}

// recordPromoUse claims one use of a promo-table code. Referral codes live in
// their own table and simply fail to claim here; that is expected and silent.
// Best-effort either way: the discount was already granted at resolve time.
func (s *Server) recordPromoUse(ctx context.Context, code string, b domain.PriceBreakdown) {
	if code == "" || b.DiscountAmount == 0 {
		return
	}
	if _, err := s.promos.ClaimPromoUse(ctx, code); err != nil {
		log.Printf("[api] promo use count for %q not recorded: %v", code, err)
	}
}

// notify sends the confirmation email off the request path.
func (s *Server) notify(order *domain.Order) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.notifier.OrderConfirmation(ctx, order); err != nil {
			log.Printf("[api] confirmation email for order %s failed: %v", order.OrderNumber, err)
		}
	}()
}

// ─── Order Lookup ───────────────────────────────────────────────────────────

// handleGetOrder returns one order with its status history.
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	order, err := s.store.OrderByNumber(r.Context(), orderNumber)
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "no order with number "+orderNumber)
		return
	}
	if err != nil {
		log.Printf("[api] order lookup %s failed: %v", orderNumber, err)
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "order lookup failed")
		return
	}

	history, err := s.store.StatusHistory(r.Context(), order.ID)
	if err != nil {
		log.Printf("[api] status history for %s failed: %v", order.ID, err)
	} else {
		order.History = history
	}

	writeJSON(w, http.StatusOK, order)
}
