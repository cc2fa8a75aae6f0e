package size_test

import (
	"testing"

	"github.com/mythologiq/gg-core/size"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSize(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Size Suite")
}

var _ = Describe("Size", func() {
	It("formats a size at each unit boundary", func() {
		Expect(size.Size(512).String()).To(Equal("512.0 B"))
		Expect(size.Size(1024).String()).To(Equal("1.0 KB"))
		Expect(size.Size(1048576).String()).To(Equal("1.0 MB"))
		Expect(size.Size(1073741824).String()).To(Equal("1.0 GB"))
	})

	It("picks the largest unit not exceeding the value", func() {
		Expect(size.Size(1048575).Unit(0)).To(Equal("KB"))
		Expect(size.Size(1536).String()).To(Equal("1.5 KB"))
	})

	It("converts to whole unit counts", func() {
		Expect(size.Size(3 * 1048576).MegaBytes()).To(Equal(uint64(3)))
		Expect(size.Size(1048576).KiloBytes()).To(Equal(uint64(1024)))
	})

	It("appends a custom unit suffix", func() {
		Expect(size.Size(2048).Unit('i')).To(Equal("Ki"))
	})
})
