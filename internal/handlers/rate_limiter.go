package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/platform/httpx"
)

// callerRateLimiter hands out a token bucket per caller and evicts buckets
// that have gone quiet so the map does not grow with one-off clients.
type callerRateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	callers map[string]*callerBucket
	sweepAt time.Time
}

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newCallerRateLimiter(limit int, window time.Duration) *callerRateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &callerRateLimiter{
		limit:   rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
		ttl:     3 * window,
		callers: make(map[string]*callerBucket),
	}
}

func (l *callerRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}

	now := time.Now()
	l.mu.Lock()
	bucket, ok := l.callers[key]
	if !ok {
		bucket = &callerBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.callers[key] = bucket
	}
	bucket.lastSeen = now
	l.evictIdleLocked(now)
	l.mu.Unlock()

	return bucket.limiter.Allow()
}

// evictIdleLocked sweeps at most once per ttl. A caller idle for a full ttl
// holds a refilled bucket anyway, so dropping it loses nothing.
func (l *callerRateLimiter) evictIdleLocked(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	l.sweepAt = now.Add(l.ttl)
	for key, bucket := range l.callers {
		if now.Sub(bucket.lastSeen) > l.ttl {
			delete(l.callers, key)
		}
	}
}

// RateLimitMiddleware throttles per caller: the authenticated UID when
// present, otherwise the client IP chi's RealIP middleware resolved.
func RateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	limiter := newCallerRateLimiter(limit, window)
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := r.RemoteAddr
			if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UID != "" {
				key = identity.UID
			}
			if !limiter.Allow(key) {
				httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests, slow down", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
