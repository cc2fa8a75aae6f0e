package crypt_test

import (
	"github.com/mythologiq/gg-core/crypt"
	"github.com/mythologiq/gg-core/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cipher", func() {
	var key [32]byte
	BeforeEach(func() {
		for i := range key {
			key[i] = byte(i)
		}
	})

	It("round-trips plaintext through encrypt/decrypt", func() {
		c, err := crypt.New(key)
		Expect(err).NotTo(HaveOccurred())

		nonce, ct, err := c.Encrypt([]byte("Hello, World!"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ct).To(HaveLen(len("Hello, World!") + crypt.TagSize))

		pt, err := c.Decrypt(nonce, ct)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(pt)).To(Equal("Hello, World!"))
	})

	It("produces distinct nonces across repeated calls", func() {
		c, err := crypt.New(key)
		Expect(err).NotTo(HaveOccurred())

		seen := map[[12]byte]bool{}
		for i := 0; i < 100; i++ {
			nonce, _, err := c.Encrypt([]byte("Hello, World!"))
			Expect(err).NotTo(HaveOccurred())
			Expect(seen[nonce]).To(BeFalse())
			seen[nonce] = true
		}
	})

	It("flags tampered ciphertext as AuthenticationTampered", func() {
		c, err := crypt.New(key)
		Expect(err).NotTo(HaveOccurred())

		nonce, ct, err := c.Encrypt([]byte("Hello, World!"))
		Expect(err).NotTo(HaveOccurred())

		tampered := append([]byte(nil), ct...)
		tampered[0] ^= 0xFF

		_, err = c.Decrypt(nonce, tampered)
		Expect(err).To(HaveOccurred())
		Expect(errors.Has(err, 0)).To(BeFalse())
		Expect(errors.Get(err).Kind()).To(Equal(errors.KindAuthenticationTampered))
	})

	It("detects nonce reuse on the second registration", func() {
		tracker := crypt.NewNonceTracker()
		var n [12]byte
		Expect(tracker.Register(n)).To(BeTrue())
		Expect(tracker.Register(n)).To(BeFalse())
	})

	It("round-trips the on-disk file format", func() {
		c, err := crypt.New(key)
		Expect(err).NotTo(HaveOccurred())

		nonce, ct, err := c.Encrypt([]byte("payload"))
		Expect(err).NotTo(HaveOccurred())

		encoded := crypt.EncodeFile(nonce, ct)
		gotNonce, gotCt, err := crypt.DecodeFile(encoded)
		Expect(err).NotTo(HaveOccurred())
		Expect(gotNonce).To(Equal(nonce))
		Expect(gotCt).To(Equal(ct))
	})
})
