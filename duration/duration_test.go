package duration_test

import (
	"testing"

	"github.com/mythologiq/gg-core/duration"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDuration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Duration Suite")
}

var _ = Describe("Uptime", func() {
	It("shows days, hours and minutes past one day", func() {
		Expect(duration.Uptime(90061)).To(Equal("1d 1h 1m"))
	})

	It("drops the day component under 24 hours", func() {
		Expect(duration.Uptime(3*3600 + 2*60)).To(Equal("3h 2m"))
	})

	It("shows minutes alone under an hour", func() {
		Expect(duration.Uptime(45 * 60)).To(Equal("45m"))
		Expect(duration.Uptime(30)).To(Equal("0m"))
	})
})
