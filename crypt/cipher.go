// Package crypt provides AES-256-GCM encryption at rest with PBKDF2 key
// derivation, an installation-bound salt cache and nonce-reuse detection,
// built as a thin wrapper over the standard library cipher primitives.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"io"

	liberr "github.com/mythologiq/gg-core/errors"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

// Cipher wraps an AES-256-GCM AEAD with nonce-reuse detection on Encrypt.
type Cipher struct {
	gcm     cipher.AEAD
	tracker *NonceTracker
}

// New builds a Cipher from a 32-byte key, checking nonces for reuse against
// the process-wide nonce tracker.
func New(key [32]byte) (*Cipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, liberr.New(liberr.MinPkgCrypt+20, liberr.KindInternal, "invalid key", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, liberr.New(liberr.MinPkgCrypt+21, liberr.KindInternal, "gcm init failed", err)
	}

	return &Cipher{gcm: gcm, tracker: DefaultNonceTracker()}, nil
}

// Encrypt draws a fresh nonce from the OS CSPRNG, registers it against the
// nonce tracker, and returns (nonce, ciphertext||tag). A colliding nonce
// yields NonceReuseDetected rather than silently encrypting.
func (c *Cipher) Encrypt(plaintext []byte) (nonce [12]byte, ciphertext []byte, err error) {
	if _, err = io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, nil, liberr.New(liberr.MinPkgCrypt+22, liberr.KindInternal, "failed to draw nonce", err)
	}

	if !c.tracker.Register(nonce) {
		return nonce, nil, liberr.New(liberr.MinPkgCrypt+23, liberr.KindAuthenticationTampered, "nonce reuse detected")
	}

	ciphertext = c.gcm.Seal(nil, nonce[:], plaintext, nil)
	return nonce, ciphertext, nil
}

// Decrypt authenticates and decrypts ciphertext||tag under nonce. Any
// tamper — of ciphertext, tag or nonce — surfaces as KindAuthenticationTampered,
// indistinguishable from a genuine tamper attempt by design.
func (c *Cipher) Decrypt(nonce [12]byte, ciphertext []byte) ([]byte, error) {
	plaintext, err := c.gcm.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, liberr.New(liberr.MinPkgCrypt+24, liberr.KindAuthenticationTampered, "authentication failed", err)
	}
	return plaintext, nil
}

// File format constants: magic + version + nonce + payload length + ciphertext.
var (
	magicCurrent = [5]byte{'G', 'G', 'G', 'C', 'M'}
	magicLegacy  = [5]byte{'H', 'L', 'G', 'C', 'M'}
	magicECB     = [5]byte{'H', 'L', 'I', 'N', 'K'}
)

var fileVersion = [2]byte{2, 0}

// EncodeFile serializes ciphertext produced by Encrypt into the on-disk
// container format: magic || version || nonce || length(u64 LE) || ciphertext.
func EncodeFile(nonce [12]byte, ciphertext []byte) []byte {
	out := make([]byte, 0, 5+2+12+8+len(ciphertext))
	out = append(out, magicCurrent[:]...)
	out = append(out, fileVersion[:]...)
	out = append(out, nonce[:]...)

	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], uint64(len(ciphertext)))
	out = append(out, length[:]...)

	out = append(out, ciphertext...)
	return out
}

// DecodeFile parses the on-disk container format, accepting the legacy
// magic for read compatibility and rejecting the legacy ECB magic outright.
func DecodeFile(data []byte) (nonce [12]byte, ciphertext []byte, err error) {
	if len(data) < 5+2+12+8 {
		return nonce, nil, liberr.New(liberr.MinPkgCrypt+25, liberr.KindInvalidInput, "truncated file header")
	}

	var magic [5]byte
	copy(magic[:], data[:5])

	switch magic {
	case magicCurrent, magicLegacy:
		// accepted
	case magicECB:
		return nonce, nil, liberr.New(liberr.MinPkgCrypt+26, liberr.KindInvalidInput, "legacy ECB format requires re-encryption")
	default:
		return nonce, nil, liberr.New(liberr.MinPkgCrypt+27, liberr.KindInvalidInput, "unrecognized file magic")
	}

	copy(nonce[:], data[7:19])
	length := binary.LittleEndian.Uint64(data[19:27])

	if uint64(len(data[27:])) < length {
		return nonce, nil, liberr.New(liberr.MinPkgCrypt+28, liberr.KindInvalidInput, "truncated ciphertext")
	}

	ciphertext = data[27 : 27+length]
	return nonce, ciphertext, nil
}
