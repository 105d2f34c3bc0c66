package api

import (
	"io"
	"log"
	"net/http"
)

// maxWebhookBody caps the raw payload read for signature verification.
const maxWebhookBody = 1 << 16

// handleStripeWebhook verifies and applies one processor event.
//
// The body must be read raw: the signature is computed over the exact bytes,
// so any JSON round-trip before verification would break it. A 2xx
// acknowledges the event; a 5xx asks the processor to redeliver.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "unreadable body")
		return
	}

	ev, err := s.events.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		// Unsigned or mis-signed: not from the processor. Reject outright so
		// forged status updates never reach the reconciler.
		log.Printf("[webhook] signature verification failed: %v", err)
		writeError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "webhook signature verification failed")
		return
	}

	if err := s.reconciler.HandleEvent(r.Context(), ev); err != nil {
		log.Printf("[webhook] event %s not applied: %v", ev.Type, err)
		writeError(w, http.StatusInternalServerError, "WEBHOOK_FAILED", "event not applied; will be redelivered")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
