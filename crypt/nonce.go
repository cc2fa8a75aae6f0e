package crypt

import "sync"

// nonceTrackerCap bounds the set of recently issued nonces; on overflow the
// oldest half is trimmed rather than growing without bound.
const nonceTrackerCap = 10_000

// NonceTracker detects nonce reuse across Encrypt calls. It is the second of
// the two justified process-wide singletons: a single global instance
// (DefaultNonceTracker) backs every Encrypt call so reuse is caught
// regardless of which Cipher instance produced the nonce.
type NonceTracker struct {
	mu    sync.Mutex
	seen  map[[12]byte]struct{}
	order [][12]byte
}

func NewNonceTracker() *NonceTracker {
	return &NonceTracker{seen: make(map[[12]byte]struct{}, nonceTrackerCap)}
}

// Register returns false if nonce was already registered (reuse detected),
// true if it was newly recorded.
func (t *NonceTracker) Register(nonce [12]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[nonce]; ok {
		return false
	}

	if len(t.order) >= nonceTrackerCap {
		half := len(t.order) / 2
		for _, n := range t.order[:half] {
			delete(t.seen, n)
		}
		t.order = append(t.order[:0], t.order[half:]...)
	}

	t.seen[nonce] = struct{}{}
	t.order = append(t.order, nonce)
	return true
}

var (
	defaultNonceTrackerOnce sync.Once
	defaultNonceTracker     *NonceTracker
)

// DefaultNonceTracker returns the process-wide nonce tracker shared by all
// Cipher instances, creating it on first use.
func DefaultNonceTracker() *NonceTracker {
	defaultNonceTrackerOnce.Do(func() { defaultNonceTracker = NewNonceTracker() })
	return defaultNonceTracker
}
