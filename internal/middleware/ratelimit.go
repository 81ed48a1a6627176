package middleware

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = time.Minute

// Limiter is a sliding-window counter keyed by an arbitrary string.
type Limiter interface {
	Check(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64)
}

// RateLimiter is the single-process Limiter used when Redis is not configured.
// Each key holds the hit times still inside the window, oldest first.
type RateLimiter struct {
	mu          sync.Mutex
	window      time.Duration
	hits        map[string][]time.Time
	lastCleanup time.Time
	now         func() time.Time
}

func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{
		window:      window,
		hits:        make(map[string][]time.Time),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// prune drops keys whose newest hit has left the window.
func (rl *RateLimiter) prune(now time.Time) {
	if now.Sub(rl.lastCleanup) < cleanupInterval {
		return
	}
	rl.lastCleanup = now

	cutoff := now.Add(-rl.window)
	for key, times := range rl.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.hits, key)
		}
	}
}

func (rl *RateLimiter) Check(_ context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	cutoff := now.Add(-rl.window)
	times := rl.hits[key]
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	times = times[i:]

	resetAt = now.Add(rl.window).Unix()
	if len(times) > 0 {
		resetAt = times[0].Add(rl.window).Unix()
	}

	if len(times) >= limit {
		rl.hits[key] = times
		return false, 0, resetAt
	}

	times = append(times, now)
	rl.hits[key] = times
	return true, limit - len(times), resetAt
}
