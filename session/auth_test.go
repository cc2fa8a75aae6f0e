package session_test

import (
	"time"

	"github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/session"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Auth", func() {
	It("authenticates a valid token and rejects an invalid one", func() {
		a := session.New("correct-horse-battery-staple", time.Hour, nil)

		tok, err := a.Authenticate("correct-horse-battery-staple")
		Expect(err).NotTo(HaveOccurred())
		Expect(tok).NotTo(BeEmpty())

		_, err = a.Authenticate("wrong-token")
		Expect(err).To(HaveOccurred())
		Expect(errors.Get(err).Kind()).To(Equal(errors.KindUnauthenticated))
	})

	It("validates a minted session and rejects an unknown one", func() {
		a := session.New("secret", time.Hour, nil)
		tok, err := a.Authenticate("secret")
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Validate(tok)).To(Succeed())
		Expect(a.Validate(session.Token("nonexistent"))).To(HaveOccurred())
	})

	It("expires sessions older than the configured timeout", func() {
		a := session.New("secret", time.Millisecond, nil)
		tok, err := a.Authenticate("secret")
		Expect(err).NotTo(HaveOccurred())

		time.Sleep(5 * time.Millisecond)
		err = a.Validate(tok)
		Expect(err).To(HaveOccurred())
		Expect(errors.Get(err).Kind()).To(Equal(errors.KindUnauthenticated))
	})

	It("rate-limits authentication after repeated failures", func() {
		a := session.New("secret", time.Hour, nil)
		for i := 0; i < 5; i++ {
			_, _ = a.Authenticate("wrong")
		}

		_, err := a.Authenticate("wrong")
		Expect(err).To(HaveOccurred())
		Expect(errors.Get(err).Kind()).To(Equal(errors.KindRateLimited))
	})

	It("tracks and releases per-session connection counts", func() {
		a := session.New("secret", time.Hour, nil)
		tok, err := a.Authenticate("secret")
		Expect(err).NotTo(HaveOccurred())

		n, err := a.TrackConnection(tok)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		n, err = a.TrackConnection(tok)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		a.ReleaseConnection(tok)
		n, err = a.ConnectionCount(tok)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})
})
