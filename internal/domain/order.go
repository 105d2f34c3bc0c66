// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"time"
)

// ─── Line Items ─────────────────────────────────────────────────────────────

// ItemType classifies what a line item references in the catalog.
type ItemType string

const (
	ItemService ItemType = "service"
	ItemBundle  ItemType = "bundle"
	ItemCustom  ItemType = "custom"
)

// LineItem is a requested purchase unit as submitted by the storefront.
//
// UnitPrice and TotalPrice are minor units (cents). For service and bundle
// items they are display-only and are never used in computation — pricing is
// re-derived from the catalog. For custom items they are authoritative,
// because they were computed server-side by the custom-pricing workflow
// before the client ever saw them.
type LineItem struct {
	ItemRef    string   `json:"item_ref"`
	ItemType   ItemType `json:"item_type"`
	Name       string   `json:"name,omitempty"`
	Quantity   int      `json:"quantity"`
	UnitPrice  int64    `json:"unit_price,omitempty"`
	TotalPrice int64    `json:"total_price,omitempty"`
}

// PricedItem is a line item after authoritative pricing.
type PricedItem struct {
	ItemRef   string   `json:"item_ref"`
	ItemType  ItemType `json:"item_type"`
	Name      string   `json:"name,omitempty"`
	Quantity  int      `json:"quantity"`
	UnitPrice int64    `json:"unit_price"`
	LineTotal int64    `json:"line_total"`
}

// ─── Order Type ─────────────────────────────────────────────────────────────

// OrderType is the tagged variant of an order's composition, computed once at
// verification time and stored, never re-derived from item contents later.
type OrderType string

const (
	OrderStandard OrderType = "standard"
	OrderBundle   OrderType = "bundle"
	OrderCustom   OrderType = "custom"
	OrderMixed    OrderType = "mixed"
)

// ClassifyItems derives the order type from the line item set.
// A homogeneous set maps to its item type; anything else is mixed.
func ClassifyItems(items []LineItem) OrderType {
	var seen ItemType
	for i, it := range items {
		if i == 0 {
			seen = it.ItemType
			continue
		}
		if it.ItemType != seen {
			return OrderMixed
		}
	}
	switch seen {
	case ItemBundle:
		return OrderBundle
	case ItemCustom:
		return OrderCustom
	default:
		return OrderStandard
	}
}

// ─── Price Breakdown ────────────────────────────────────────────────────────

// PriceBreakdown is the server-computed money snapshot for an order.
// All amounts are minor units (cents).
type PriceBreakdown struct {
	Subtotal       int64 `json:"subtotal"`
	DiscountAmount int64 `json:"discount_amount"`
	TaxAmount      int64 `json:"tax_amount"`
	CreditsApplied int64 `json:"credits_applied"`
	TotalAmount    int64 `json:"total_amount"`
}

// ─── Order Status ───────────────────────────────────────────────────────────

// OrderStatus is the order state machine.
//
//	confirmed → processing → in_progress → completed
//
// with a failure branch from any non-terminal state to cancelled or failed,
// and pending_action as an interim state for processor-driven
// requires-action events.
type OrderStatus string

const (
	StatusConfirmed     OrderStatus = "confirmed"
	StatusProcessing    OrderStatus = "processing"
	StatusPendingAction OrderStatus = "pending_action"
	StatusInProgress    OrderStatus = "in_progress"
	StatusCompleted     OrderStatus = "completed"
	StatusCancelled     OrderStatus = "cancelled"
	StatusFailed        OrderStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusProcessing, StatusPendingAction,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from → to is a legal status transition.
// Transitions out of terminal states are never legal; setting a status to
// itself is legal (webhook redelivery applies state-sets idempotently).
func CanTransition(from, to OrderStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	// Any non-terminal state may fail or be cancelled.
	if to == StatusCancelled || to == StatusFailed {
		return true
	}
	switch from {
	case StatusConfirmed:
		return to == StatusProcessing || to == StatusPendingAction || to == StatusInProgress
	case StatusProcessing:
		return to == StatusConfirmed || to == StatusPendingAction || to == StatusInProgress
	case StatusPendingAction:
		return to == StatusConfirmed || to == StatusProcessing
	case StatusInProgress:
		return to == StatusCompleted
	}
	return false
}

// ─── Order ──────────────────────────────────────────────────────────────────

// CustomerIdentity identifies who placed the order: a user ID when
// authenticated, otherwise email + name from checkout.
type CustomerIdentity struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

// StatusChange is one entry in an order's append-only status history.
type StatusChange struct {
	Status      OrderStatus `json:"status"`
	Description string      `json:"description,omitempty"`
	At          time.Time   `json:"at"`
}

// Order is the durable record the verification pipeline produces.
//
// PaymentIntentID carries a storage-level uniqueness constraint and is THE
// idempotency key: at most one order may ever exist per payment intent.
// Items and Breakdown are frozen at creation and never mutated afterwards;
// only Status (and its history) changes, via the writer's own first write or
// the webhook reconciler.
type Order struct {
	ID              string           `json:"id"`
	OrderNumber     string           `json:"order_number"`
	Customer        CustomerIdentity `json:"customer"`
	Items           []PricedItem     `json:"items"`
	Breakdown       PriceBreakdown   `json:"breakdown"`
	PaymentIntentID string           `json:"payment_intent_id"`
	Type            OrderType        `json:"type"`
	Status          OrderStatus      `json:"status"`
	History         []StatusChange   `json:"history,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}
