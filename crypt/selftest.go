package crypt

import (
	"bytes"
	"crypto/sha256"

	liberr "github.com/mythologiq/gg-core/errors"
)

// knownAnswerKey and knownAnswerPlaintext are fixed inputs for SelfTest; the
// test only cares that encrypt-then-decrypt round-trips and that a tampered
// ciphertext is rejected, not that the output matches a published KAT vector.
var (
	knownAnswerKey       = sha256.Sum256([]byte("gg-core-fips-self-test-key"))
	knownAnswerPlaintext = []byte("gg-core power-on self-test")
)

// SelfTest runs the power-on self-tests required before any cryptographic
// operation is trusted: an AES-256-GCM round trip, and a tamper check that
// confirms a flipped ciphertext byte is rejected rather than silently
// misdecrypted. A start sequence must forbid startup on any failure here.
func SelfTest() error {
	c, err := New(knownAnswerKey)
	if err != nil {
		return liberr.New(liberr.MinPkgCrypt+1, liberr.KindInternal, "self-test cipher init failed", err)
	}

	nonce, ciphertext, err := c.Encrypt(knownAnswerPlaintext)
	if err != nil {
		return liberr.New(liberr.MinPkgCrypt+2, liberr.KindInternal, "self-test encrypt failed", err)
	}

	plaintext, err := c.Decrypt(nonce, ciphertext)
	if err != nil {
		return liberr.New(liberr.MinPkgCrypt+3, liberr.KindInternal, "self-test decrypt failed", err)
	}
	if !bytes.Equal(plaintext, knownAnswerPlaintext) {
		return liberr.New(liberr.MinPkgCrypt+4, liberr.KindInternal, "self-test round trip mismatch")
	}

	tampered := make([]byte, len(ciphertext))
	copy(tampered, ciphertext)
	tampered[0] ^= 0xFF
	if _, err := c.Decrypt(nonce, tampered); err == nil {
		return liberr.New(liberr.MinPkgCrypt+5, liberr.KindInternal, "self-test failed to detect tampered ciphertext")
	}

	if _, err := DeriveKeyFromPasswordSelfCheck(); err != nil {
		return liberr.New(liberr.MinPkgCrypt+6, liberr.KindInternal, "self-test key derivation failed", err)
	}

	return nil
}

// DeriveKeyFromPasswordSelfCheck exercises PBKDF2 key derivation with a
// fixed password/salt, confirming it deterministically reproduces the same
// key twice.
func DeriveKeyFromPasswordSelfCheck() ([32]byte, error) {
	salt := []byte("gg-core-self-test-salt-000000000")
	a := DeriveKeyFromPassword("self-test-password", salt, 1000)
	b := DeriveKeyFromPassword("self-test-password", salt, 1000)
	if a != b {
		return a, liberr.New(liberr.MinPkgCrypt+7, liberr.KindInternal, "pbkdf2 derivation is not deterministic")
	}
	return a, nil
}
