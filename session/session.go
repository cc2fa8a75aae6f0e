// Package session implements handshake token validation and per-session
// request admission: constant-time token comparison, sliding-window rate
// limiting, and expiry by session age.
package session

import (
	"sync"
	"time"
)

// state is the internal record kept for an authenticated session.
type state struct {
	createdAt time.Time

	mu               sync.Mutex
	lastActivity     time.Time
	connectionCount  int
	requestCount     uint64
	requestWindowAt  time.Time
}

const (
	// maxFailedAttempts is the number of failed handshakes tolerated within
	// attemptWindow before the rate limiter blocks new attempts.
	maxFailedAttempts = 5
	// rateLimitBlock is how long authentication is blocked once tripped.
	rateLimitBlock = 30 * time.Second
	// attemptWindow is the sliding window failed attempts are counted over.
	attemptWindow = 60 * time.Second
	// maxRequestsPerMinute bounds validated requests per session per window.
	maxRequestsPerMinute = 1000
	// requestWindow is the sliding window request counts are reset over.
	requestWindow = 60 * time.Second
	// minValidationTime pads Validate's latency so failing fast doesn't leak
	// timing information about which check rejected the request.
	minValidationTime = 100 * time.Microsecond
	// sessionIDPrefixLen is how much of a session ID audit log lines may show.
	sessionIDPrefixLen = 8
)
