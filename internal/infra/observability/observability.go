// Package observability exposes Prometheus metrics for the order pipeline.
//
// Counters cover the two places money can silently go wrong — amount
// mismatches and reconciliation gaps — plus the ordinary traffic shape of
// order creation, webhook handling, and admission control.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Order Creation Metrics ─────────────────────────────────────────────────

// OrdersCreated tracks orders persisted by the writer.
var OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "boostd",
	Subsystem: "orders",
	Name:      "created_total",
	Help:      "Total orders created, by order type.",
}, []string{"order_type"})

// DuplicateReplays tracks idempotent replays (same payment intent seen again).
var DuplicateReplays = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "boostd",
	Subsystem: "orders",
	Name:      "duplicate_replays_total",
	Help:      "Total order-creation calls answered from an existing order.",
})

// CreationFailures tracks rejected order-creation attempts by error code.
var CreationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "boostd",
	Subsystem: "orders",
	Name:      "creation_failures_total",
	Help:      "Total rejected order-creation attempts, by error code.",
}, []string{"code"})

// ─── Payment Verification Metrics ───────────────────────────────────────────

// AmountMismatches tracks captured-vs-computed total disagreements.
// Any nonzero rate here is an integrity/fraud signal.
var AmountMismatches = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "boostd",
	Subsystem: "payment",
	Name:      "amount_mismatches_total",
	Help:      "Total payments whose captured amount disagreed with the computed total.",
})

// ─── Credit Metrics ─────────────────────────────────────────────────────────

// CreditDebits tracks stored-credit debits by outcome.
var CreditDebits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "boostd",
	Subsystem: "credits",
	Name:      "debits_total",
	Help:      "Total stored-credit debit attempts, by outcome (applied, refused, error).",
}, []string{"outcome"})

// ─── Webhook Metrics ────────────────────────────────────────────────────────

// WebhookEvents tracks processor events by type and handling outcome.
var WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "boostd",
	Subsystem: "webhook",
	Name:      "events_total",
	Help:      "Total webhook events received, by event type and outcome.",
}, []string{"event", "outcome"})

// ReconciliationGaps tracks payments that succeeded with no matching order.
var ReconciliationGaps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "boostd",
	Subsystem: "webhook",
	Name:      "reconciliation_gaps_total",
	Help:      "Total succeeded payments observed with no corresponding order.",
})

// ─── Admission Control Metrics ──────────────────────────────────────────────

// RateLimited tracks requests rejected by the admission-control window.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "boostd",
	Subsystem: "api",
	Name:      "rate_limited_total",
	Help:      "Total requests rejected by rate limiting.",
})
