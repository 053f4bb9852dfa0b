// Package ratelimit applies a per-caller token bucket to write endpoints, so
// a misbehaving player hammering progress reports cannot drown the store.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/example/stream-platform/internal/platform/api"
	"github.com/example/stream-platform/internal/platform/auth"
	"github.com/example/stream-platform/internal/platform/httpserver"
)

// Limiter holds one token bucket per caller key: the authenticated user id,
// or the client address for unauthenticated requests.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func New(rps float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.buckets[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware rejects callers that exhaust their bucket with a 429 envelope.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(key) == "" {
			key = r.RemoteAddr
			if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
				key = fwd
			}
		}
		if !l.allow(key) {
			rid := httpserver.RequestIDFromContext(r.Context())
			api.RateLimited(w, "RATE_LIMITED", "Too many requests", rid)
			return
		}
		next.ServeHTTP(w, r)
	})
}
