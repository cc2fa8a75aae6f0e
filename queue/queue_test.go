package queue_test

import (
	"testing"
	"time"

	"github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/queue"
	"github.com/mythologiq/gg-core/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestQueue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Queue Suite")
}

var _ = Describe("Queue", func() {
	It("dequeues higher priority ahead of lower, FIFO within a tier", func() {
		q := queue.New(10, 0)
		low1, err := q.Enqueue("m", "a", wire.SamplingParams{}, 0)
		Expect(err).NotTo(HaveOccurred())
		high, err := q.Enqueue("m", "b", wire.SamplingParams{}, 5)
		Expect(err).NotTo(HaveOccurred())
		low2, err := q.Enqueue("m", "c", wire.SamplingParams{}, 0)
		Expect(err).NotTo(HaveOccurred())

		first, err := q.Dequeue()
		Expect(err).NotTo(HaveOccurred())
		Expect(first.ID).To(Equal(high.ID))

		second, err := q.Dequeue()
		Expect(err).NotTo(HaveOccurred())
		Expect(second.ID).To(Equal(low1.ID))

		third, err := q.Dequeue()
		Expect(err).NotTo(HaveOccurred())
		Expect(third.ID).To(Equal(low2.ID))
	})

	It("rejects admission once at capacity", func() {
		q := queue.New(1, 0)
		_, err := q.Enqueue("m", "a", wire.SamplingParams{}, 0)
		Expect(err).NotTo(HaveOccurred())

		_, err = q.Enqueue("m", "b", wire.SamplingParams{}, 0)
		Expect(err).To(HaveOccurred())
		Expect(errors.Get(err).Kind()).To(Equal(errors.KindResourceExhausted))
	})

	It("rejects prompts estimated to exceed the context budget", func() {
		q := queue.New(10, 1)
		_, err := q.Enqueue("m", "this prompt is far too long", wire.SamplingParams{}, 0)
		Expect(err).To(HaveOccurred())
		Expect(errors.Get(err).Kind()).To(Equal(errors.KindInvalidInput))
	})

	It("discards a cancelled entry at dequeue time", func() {
		q := queue.New(10, 0)
		req, err := q.Enqueue("m", "a", wire.SamplingParams{}, 0)
		Expect(err).NotTo(HaveOccurred())
		other, err := q.Enqueue("m", "b", wire.SamplingParams{}, 0)
		Expect(err).NotTo(HaveOccurred())

		Expect(q.Cancel(req.ID)).To(BeTrue())

		got, err := q.Dequeue()
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(other.ID))

		res := <-req.Sink()
		Expect(res.Err).To(HaveOccurred())
		Expect(errors.Get(res.Err).Kind()).To(Equal(errors.KindCancelled))
	})

	It("discards an expired entry at dequeue time", func() {
		q := queue.New(10, 0)
		req, err := q.Enqueue("m", "a", wire.SamplingParams{TimeoutMs: 1}, 0)
		Expect(err).NotTo(HaveOccurred())
		time.Sleep(5 * time.Millisecond)

		other, err := q.Enqueue("m", "b", wire.SamplingParams{}, 0)
		Expect(err).NotTo(HaveOccurred())

		got, err := q.Dequeue()
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(other.ID))

		res := <-req.Sink()
		Expect(errors.Get(res.Err).Kind()).To(Equal(errors.KindDeadlineExceeded))
	})

	It("unblocks a waiting Dequeue on Close", func() {
		q := queue.New(10, 0)
		done := make(chan error, 1)
		go func() {
			_, err := q.Dequeue()
			done <- err
		}()

		time.Sleep(5 * time.Millisecond)
		q.Close()

		select {
		case err := <-done:
			Expect(err).To(HaveOccurred())
			Expect(errors.Get(err).Kind()).To(Equal(errors.KindShuttingDown))
		case <-time.After(time.Second):
			Fail("Dequeue did not unblock on Close")
		}
	})
})
