package api

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/darkvsx/boostd/internal/infra/observability"
)

// rateLimit gates order creation per client IP using the store-backed
// windowed counter. Fails open on limiter errors: admission control must
// never take checkout down with it.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.limits.MaxRequests <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		bucket := clientIP(r)
		count, err := s.limiter.BumpRate(r.Context(), bucket, s.limits.Window, time.Now())
		if err != nil {
			log.Printf("[api] rate limiter unavailable, admitting %s: %v", bucket, err)
			next.ServeHTTP(w, r)
			return
		}
		if count > s.limits.MaxRequests {
			observability.RateLimited.Inc()
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many order attempts, slow down")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the caller's address. middleware.RealIP has already folded
// X-Forwarded-For into RemoteAddr when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
