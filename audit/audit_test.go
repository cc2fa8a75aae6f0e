package audit_test

import (
	"fmt"
	"testing"

	"github.com/mythologiq/gg-core/audit"
	"github.com/mythologiq/gg-core/session"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAudit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Suite")
}

var _ = Describe("Audit", func() {
	It("records and retrieves recent events in order", func() {
		a := audit.New(0, nil)
		a.Record(audit.SeverityInfo, audit.CategorySystem, audit.TypeFIPSFailure, "first")
		a.Record(audit.SeverityWarning, audit.CategorySystem, audit.TypeFIPSFailure, "second")

		recent := a.Recent(10)
		Expect(recent).To(HaveLen(2))
		Expect(recent[0].Message).To(Equal("first"))
		Expect(recent[1].Message).To(Equal("second"))
		Expect(recent[1].Sequence).To(Equal(recent[0].Sequence + 1))
	})

	It("caps retention at the configured capacity", func() {
		a := audit.New(3, nil)
		for i := 0; i < 10; i++ {
			a.Record(audit.SeverityInfo, audit.CategorySystem, audit.TypeFIPSFailure, fmt.Sprintf("event-%d", i))
		}
		recent := a.Recent(100)
		Expect(recent).To(HaveLen(3))
		Expect(recent[2].Message).To(Equal("event-9"))
	})

	It("attaches fields passed via WithField", func() {
		a := audit.New(0, nil)
		a.Record(audit.SeverityWarning, audit.CategoryAuth, audit.TypeAuthFailure, "bad token",
			audit.WithField("reason", "invalid_token"))

		recent := a.Recent(1)
		Expect(recent[0].Fields).To(HaveKeyWithValue("reason", "invalid_token"))
	})

	It("implements session.Recorder and classifies severity by event", func() {
		a := audit.New(0, nil)
		a.RecordSecurityEvent(session.EventRateLimited, "too many failures", map[string]string{"reason": "too_many_failures"})

		recent := a.Recent(1)
		Expect(recent[0].Severity).To(Equal(audit.SeverityCritical))
		Expect(recent[0].Type).To(Equal(audit.TypeRateLimited))
		Expect(recent[0].Category).To(Equal(audit.CategoryAuth))
	})
})
