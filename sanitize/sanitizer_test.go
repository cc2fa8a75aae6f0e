package sanitize_test

import (
	"strings"
	"testing"

	"github.com/mythologiq/gg-core/sanitize"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSanitize(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sanitize Suite")
}

var _ = Describe("Detector", func() {
	It("detects and redacts an email address", func() {
		d := sanitize.NewDetector()
		matches := d.Detect("Contact support@example.com for assistance")
		Expect(matches).NotTo(BeEmpty())
		Expect(matches[0].Type).To(Equal(sanitize.TypeEmail))

		redacted := d.Redact("Contact support@example.com for assistance")
		Expect(redacted).To(ContainSubstring("[REDACTED:Email Address]"))
	})

	It("rejects a credit-card-shaped number that fails the Luhn check", func() {
		d := sanitize.NewDetector()
		matches := d.Detect("card 1234 5678 9012 3456")
		for _, m := range matches {
			Expect(m.Type).NotTo(Equal(sanitize.TypeCreditCard))
		}
	})
})

var _ = Describe("Sanitizer", func() {
	It("redacts PII and reports it as modified", func() {
		s := sanitize.NewDefault()
		result := s.Sanitize("Contact support@example.com for assistance")
		Expect(result.Modified).To(BeTrue())
		Expect(result.PIIRedacted).To(BeNumerically(">", 0))
		Expect(result.Output).To(ContainSubstring("[REDACTED:Email Address]"))
	})

	It("leaves ordinary text unmodified", func() {
		s := sanitize.NewDefault()
		result := s.Sanitize("The weather is nice today.")
		Expect(result.Modified).To(BeFalse())
		Expect(result.PIIRedacted).To(Equal(0))
	})

	It("truncates output past the configured max length", func() {
		cfg := sanitize.DefaultConfig()
		cfg.MaxLength = 50
		s := sanitize.New(cfg)

		result := s.Sanitize(strings.Repeat("x", 200))
		Expect(result.Modified).To(BeTrue())
		Expect(len(result.Output)).To(BeNumerically("<=", 50))
		Expect(result.Warnings).NotTo(BeEmpty())
	})

	It("redacts multiple PII types in one pass", func() {
		s := sanitize.NewDefault()
		result := s.Sanitize("Email: test@example.com, Phone: 555-123-4567, SSN: 123-45-6789")
		Expect(result.PIIRedacted).To(BeNumerically(">=", 2))
	})

	It("only redacts the configured PII types", func() {
		cfg := sanitize.DefaultConfig()
		cfg.RedactTypes = []sanitize.Type{sanitize.TypeEmail}
		s := sanitize.New(cfg)

		result := s.Sanitize("Email: test@example.com, Phone: 555-123-4567")
		Expect(result.Output).To(ContainSubstring("[REDACTED:Email Address]"))
		Expect(result.Output).To(ContainSubstring("555-123-4567"))
	})

	It("flags null bytes as an invalid format", func() {
		s := sanitize.NewDefault()
		Expect(s.ValidateFormat("clean output")).To(Succeed())
		Expect(s.ValidateFormat("broken\x00output")).To(HaveOccurred())
	})

	It("flags excessive phrase repetition", func() {
		s := sanitize.NewDefault()
		repetitive := strings.Repeat("hello world test ", 8)
		Expect(s.ValidateFormat(repetitive)).To(HaveOccurred())

		normal := "The quick brown fox jumps over the lazy dog and runs through the forest."
		Expect(s.ValidateFormat(normal)).To(Succeed())
	})

	It("redacts PII split across streaming chunks", func() {
		s := sanitize.NewDefault()
		state := &sanitize.StreamingState{}

		chunks := []string{"My email is j", "ohn.sm", "ith@example.com", " and more text"}
		var outputs []string
		for _, c := range chunks {
			outputs = append(outputs, s.SanitizeChunk(c, state))
		}

		full := strings.Join(outputs, "")
		Expect(full).To(SatisfyAny(
			ContainSubstring("john.smith@example.com"),
			ContainSubstring("[REDACTED"),
		))
	})
})
