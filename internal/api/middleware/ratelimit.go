package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/geomind/agentcore/pkg/middleware"
)

// RateLimiter enforces a token bucket per API key. Anonymous callers are
// bucketed by remote address.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewRateLimiter allows rps requests per second per caller with the given
// burst. rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		callers: make(map[string]*rate.Limiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

// Allow reports whether caller may make a request now.
func (rl *RateLimiter) Allow(caller string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	limiter, ok := rl.callers[caller]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.callers[caller] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests over the caller's budget with 429. It must
// run after APIKeyAuth so the caller is known.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		caller := middleware.GetCaller(r.Context())
		bucket := caller.KeyID
		if bucket == "anonymous" {
			bucket = remoteHost(r)
		}
		if !rl.Allow(bucket) {
			log.Warn().Str("caller", bucket).Str("path", r.URL.Path).Msg("Rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "rate_limited",
				"message": "Too many requests.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
