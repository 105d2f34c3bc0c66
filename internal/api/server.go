// Package api provides the HTTP surface of the order pipeline: order
// creation and lookup, the processor webhook, health, and metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darkvsx/boostd/internal/app/discount"
	"github.com/darkvsx/boostd/internal/app/orders"
	"github.com/darkvsx/boostd/internal/app/payment"
	"github.com/darkvsx/boostd/internal/app/pricing"
	"github.com/darkvsx/boostd/internal/app/reconcile"
	"github.com/darkvsx/boostd/internal/domain"
)

// EventVerifier checks a raw webhook payload's signature and normalizes it.
// Implemented by the stripepay client; faked in tests.
type EventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (reconcile.Event, error)
}

// RateLimiter counts requests per bucket in fixed windows.
// Implemented by the sqlite store.
type RateLimiter interface {
	BumpRate(ctx context.Context, bucket string, window time.Duration, now time.Time) (int64, error)
}

// LimitPolicy is the admission-control policy for order creation.
// A zero MaxRequests disables limiting.
type LimitPolicy struct {
	Window      time.Duration
	MaxRequests int64
}

// Server is the order-pipeline HTTP API server.
type Server struct {
	pricer     *pricing.Service
	discounts  *discount.Resolver
	payments   *payment.Verifier
	writer     *orders.Writer
	reconciler *reconcile.Reconciler
	store      domain.OrderStore
	promos     domain.PromoStore

	events  EventVerifier
	limiter RateLimiter
	limits  LimitPolicy

	notifier       domain.Notifier
	metricsEnabled bool
}

// NewServer creates a new API server over the assembled pipeline services.
func NewServer(pricer *pricing.Service, discounts *discount.Resolver, payments *payment.Verifier,
	writer *orders.Writer, reconciler *reconcile.Reconciler,
	store domain.OrderStore, promos domain.PromoStore, events EventVerifier) *Server {
	return &Server{
		pricer:     pricer,
		discounts:  discounts,
		payments:   payments,
		writer:     writer,
		reconciler: reconciler,
		store:      store,
		promos:     promos,
		events:     events,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetNotifier sets the confirmation-mail sender.
func (s *Server) SetNotifier(n domain.Notifier) { s.notifier = n }

// SetRateLimiter enables admission control on order creation.
func (s *Server) SetRateLimiter(l RateLimiter, policy LimitPolicy) {
	s.limiter = l
	s.limits = policy
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	// Health check for the load balancer
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.With(s.rateLimit).Post("/orders", s.handleCreateOrder)
		r.Get("/orders/{orderNumber}", s.handleGetOrder)
		r.Post("/webhooks/stripe", s.handleStripeWebhook)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the JSON error body. code is the stable machine code a
// storefront can branch on; msg is human-readable detail.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error":     http.StatusText(status),
		"details":   msg,
		"code":      code,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// corsMiddleware adds CORS headers for the storefront frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Stripe-Signature")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
