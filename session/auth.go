package session

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	liberr "github.com/mythologiq/gg-core/errors"
)

// Token is an opaque, CSPRNG-derived session identifier issued by
// Authenticate and presented on every subsequent request.
type Token string

// Auth validates handshake tokens and tracks the sessions they mint. A
// single instance is shared across every accepted connection.
type Auth struct {
	expectedTokenHash [32]byte
	sessionTimeout    time.Duration
	limiter           *rateLimiter
	recorder          Recorder

	mu       sync.RWMutex
	sessions map[Token]*state
}

// New builds an Auth that accepts exactly expectedToken as the handshake
// secret and expires sessions after sessionTimeout of age. rec may be nil,
// in which case security events are discarded.
func New(expectedToken string, sessionTimeout time.Duration, rec Recorder) *Auth {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Auth{
		expectedTokenHash: sha256.Sum256([]byte(expectedToken)),
		sessionTimeout:    sessionTimeout,
		limiter:           newRateLimiter(),
		recorder:          rec,
		sessions:          make(map[Token]*state),
	}
}

// Authenticate validates a handshake token and, on success, mints a new
// session. Repeated failures trip the rate limiter for rateLimitBlock.
func (a *Auth) Authenticate(token string) (Token, error) {
	if a.limiter.isBlocked() {
		a.recorder.RecordSecurityEvent(EventRateLimited, "authentication blocked due to rate limiting",
			map[string]string{"reason": "too_many_failures"})
		return "", liberr.New(liberr.MinPkgSession+1, liberr.KindRateLimited, "too many failed attempts, please try again later")
	}

	hash := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(hash[:], a.expectedTokenHash[:]) != 1 {
		a.limiter.recordFailure()
		a.recorder.RecordSecurityEvent(EventAuthFailure, "invalid handshake token",
			map[string]string{"reason": "invalid_token"})
		return "", liberr.New(liberr.MinPkgSession+2, liberr.KindUnauthenticated, "invalid handshake token")
	}

	a.limiter.reset()

	id, err := generateSessionID()
	if err != nil {
		return "", liberr.New(liberr.MinPkgSession+3, liberr.KindInternal, "failed to generate session id", err)
	}
	tok := Token(id)

	now := time.Now()
	a.mu.Lock()
	a.sessions[tok] = &state{
		createdAt:       now,
		lastActivity:    now,
		requestWindowAt: now,
	}
	a.mu.Unlock()

	a.recorder.RecordSecurityEvent(EventAuthSuccess, "authentication successful",
		map[string]string{"session_prefix": sessionPrefix(id)})
	return tok, nil
}

// Validate checks that token names a live, unexpired, not-rate-limited
// session, bumping its request counter and last-activity time on success.
// The call is padded to at least minValidationTime so early rejection paths
// don't leak which check failed through response latency.
func (a *Auth) Validate(token Token) error {
	start := time.Now()
	err := a.validate(token)
	if elapsed := time.Since(start); elapsed < minValidationTime {
		time.Sleep(minValidationTime - elapsed)
	}
	return err
}

func (a *Auth) validate(token Token) error {
	a.mu.RLock()
	s, ok := a.sessions[token]
	a.mu.RUnlock()

	if !ok {
		a.recorder.RecordSecurityEvent(EventInvalidSession, "invalid session token used",
			map[string]string{"session_prefix": sessionPrefix(string(token))})
		return liberr.New(liberr.MinPkgSession+4, liberr.KindUnauthenticated, "session not found")
	}

	if time.Since(s.createdAt) > a.sessionTimeout {
		a.mu.Lock()
		delete(a.sessions, token)
		a.mu.Unlock()
		a.recorder.RecordSecurityEvent(EventSessionExpired, "session expired",
			map[string]string{"session_prefix": sessionPrefix(string(token))})
		return liberr.New(liberr.MinPkgSession+5, liberr.KindUnauthenticated, "session expired")
	}

	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.requestWindowAt) > requestWindow {
		s.requestCount = 1
		s.requestWindowAt = now
	} else {
		s.requestCount++
		if s.requestCount > maxRequestsPerMinute {
			count := s.requestCount
			s.mu.Unlock()
			a.recorder.RecordSecurityEvent(EventRateLimited, "session request rate limit exceeded",
				map[string]string{
					"session_prefix": sessionPrefix(string(token)),
					"request_count":  itoa(count),
				})
			return liberr.New(liberr.MinPkgSession+6, liberr.KindRateLimited, "session request rate limit exceeded")
		}
	}
	s.lastActivity = now
	s.mu.Unlock()

	return nil
}

// Cleanup removes every session older than the configured timeout. Callers
// run this periodically from a background ticker.
func (a *Auth) Cleanup() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for tok, s := range a.sessions {
		if time.Since(s.createdAt) > a.sessionTimeout {
			delete(a.sessions, tok)
		}
	}
}

// TrackConnection records a new connection against token's session and
// returns the resulting connection count.
func (a *Auth) TrackConnection(token Token) (int, error) {
	a.mu.RLock()
	s, ok := a.sessions[token]
	a.mu.RUnlock()
	if !ok {
		return 0, liberr.New(liberr.MinPkgSession+7, liberr.KindUnauthenticated, "session not found")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionCount++
	return s.connectionCount, nil
}

// ReleaseConnection decrements token's session connection count.
func (a *Auth) ReleaseConnection(token Token) {
	a.mu.RLock()
	s, ok := a.sessions[token]
	a.mu.RUnlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectionCount > 0 {
		s.connectionCount--
	}
}

// ConnectionCount returns token's session's current connection count.
func (a *Auth) ConnectionCount(token Token) (int, error) {
	a.mu.RLock()
	s, ok := a.sessions[token]
	a.mu.RUnlock()
	if !ok {
		return 0, liberr.New(liberr.MinPkgSession+8, liberr.KindUnauthenticated, "session not found")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionCount, nil
}

func generateSessionID() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
