package workerpool_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/mythologiq/gg-core/workerpool"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWorkerPool(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "WorkerPool Suite")
}

var _ = Describe("Pool", func() {
	It("executes every submitted task", func() {
		cfg := workerpool.DefaultConfig()
		cfg.NumThreads = 4
		p := workerpool.New(cfg, nil)
		defer p.Join()

		var count atomic.Int64
		const n = 200
		for i := 0; i < n; i++ {
			Expect(p.Submit(func() { count.Add(1) })).To(Succeed())
		}

		Eventually(func() int64 { return count.Load() }, time.Second, time.Millisecond).Should(Equal(int64(n)))
	})

	It("recovers from a panicking task without wedging the pool", func() {
		cfg := workerpool.DefaultConfig()
		cfg.NumThreads = 2
		p := workerpool.New(cfg, nil)
		defer p.Join()

		Expect(p.Submit(func() { panic("boom") })).To(Succeed())

		var ran atomic.Bool
		Expect(p.Submit(func() { ran.Store(true) })).To(Succeed())

		Eventually(func() bool { return ran.Load() }, time.Second, time.Millisecond).Should(BeTrue())
	})

	It("rejects submissions after Shutdown", func() {
		p := workerpool.New(workerpool.DefaultConfig(), nil)
		p.Join()

		err := p.Submit(func() {})
		Expect(err).To(HaveOccurred())
	})

	It("updates stats after executing tasks", func() {
		cfg := workerpool.DefaultConfig()
		cfg.NumThreads = 2
		p := workerpool.New(cfg, nil)
		defer p.Join()

		Expect(p.Submit(func() { time.Sleep(time.Millisecond) })).To(Succeed())
		Eventually(func() uint64 { return p.Stats().TotalTasksExecuted }, time.Second, time.Millisecond).Should(Equal(uint64(1)))
	})
})
