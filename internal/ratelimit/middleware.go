package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	limiter "github.com/ulule/limiter/v3"

	"github.com/tahmidhoque/vstop-backend/internal/common"
)

// Middleware enforces a request rate per client IP using the shared limiter.
type Middleware struct {
	Limiter *limiter.Limiter
}

// New constructs middleware for the given rate over the given window.
func New(store limiter.Store, requests int64, window time.Duration) Middleware {
	rate := limiter.Rate{Period: window, Limit: requests}
	return Middleware{Limiter: limiter.New(store, rate)}
}

// Handler applies rate limiting before delegating to the next handler.
func (m Middleware) Handler(next http.Handler) http.Handler {
	if m.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.Limiter.Get(r.Context(), clientKey(r))
		if err != nil {
			// Fail open so a limiter store outage does not take the API down.
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))
		if ctx.Reached {
			common.JSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey buckets requests by originating IP. RealIP middleware runs before
// this one so RemoteAddr usually already carries the forwarded address; the
// headers are consulted for deployments without it.
func clientKey(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
