package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	limiterClients = 10_000
	limiterIdleTTL = 10 * time.Minute
)

type rateLimiter interface {
	Allow(key string) bool
}

// keyedLimiter gives every client its own token bucket. Idle buckets expire.
type keyedLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) rateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &keyedLimiter{
		rps:     rate.Limit(ratePerSecond),
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](limiterClients, nil, limiterIdleTTL),
	}
}

func (l *keyedLimiter) Allow(key string) bool {
	if l == nil || l.buckets == nil {
		return true
	}

	l.mu.Lock()
	limiter, ok := l.buckets.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.buckets.Add(key, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow(clientKey(r)) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}

// clientKey identifies the caller by shopper session, falling back to the
// remote address for anonymous requests.
func clientKey(r *http.Request) string {
	if scope := scopeFromRequest(r); scope != "" {
		return "s:" + scope
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "a:" + host
}
