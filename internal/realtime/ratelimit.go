package realtime

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/slate-cms/internal/infrastructure/config"
)

// Limiter gates inbound frames with a token bucket per connection.
// A nil *Limiter is valid and admits everything, so callers never
// branch on whether rate limiting is configured.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewLimiter builds a Limiter from config, or returns nil when rate
// limiting is disabled or misconfigured to admit nothing sensible.
func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	if !cfg.Enabled || cfg.Points <= 0 {
		return nil
	}

	duration := cfg.Duration
	if duration <= 0 {
		duration = 1
	}

	// Points per duration-second window, with the full window available
	// as burst so a quiet connection can spend its allowance at once.
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(float64(cfg.Points) / float64(duration)),
		burst:   cfg.Points,
	}
}

// Allow consumes one unit from the bucket for key. When the bucket is
// exhausted it reports false along with how long the caller should wait
// before retrying.
func (l *Limiter) Allow(key string) (retryAfter time.Duration, ok bool) {
	if l == nil {
		return 0, true
	}

	l.mu.Lock()
	bucket, exists := l.buckets[key]
	if !exists {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	reservation := bucket.ReserveN(time.Now(), 1)
	delay := reservation.Delay()
	if delay > 0 {
		// Out of tokens: give the unit back and tell the caller to wait.
		reservation.Cancel()
		return delay, false
	}
	return 0, true
}

// Forget drops the bucket for a departed connection.
func (l *Limiter) Forget(key string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}
