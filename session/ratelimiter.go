package session

import (
	"sync"
	"time"
)

// rateLimiter blocks authentication attempts after too many failures
// within a sliding window.
type rateLimiter struct {
	mu            sync.Mutex
	failedCount   uint64
	windowStart   time.Time
	blockedUntil  time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{}
}

func (r *rateLimiter) isBlocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.blockedUntil.IsZero() && time.Now().Before(r.blockedUntil)
}

func (r *rateLimiter) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.windowStart.IsZero() || now.Sub(r.windowStart) > attemptWindow {
		r.failedCount = 1
		r.windowStart = now
		return
	}

	r.failedCount++
	if r.failedCount >= maxFailedAttempts {
		r.blockedUntil = now.Add(rateLimitBlock)
	}
}

func (r *rateLimiter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedCount = 0
	r.windowStart = time.Time{}
	r.blockedUntil = time.Time{}
}
