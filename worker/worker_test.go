package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/mythologiq/gg-core/queue"
	"github.com/mythologiq/gg-core/wire"
	"github.com/mythologiq/gg-core/worker"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWorker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Worker Suite")
}

type stubModel struct {
	resp wire.InferenceResponse
	err  error
}

func (m stubModel) Infer(ctx context.Context, modelID, prompt string, params wire.SamplingParams) (wire.InferenceResponse, error) {
	return m.resp, m.err
}

var _ = Describe("Worker", func() {
	It("delivers a model result back through the request sink", func() {
		q := queue.New(10, 0)
		w := worker.New(q, stubModel{resp: wire.InferenceResponse{Text: "hello"}}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)
		defer w.Stop()

		req, err := q.Enqueue("m", "prompt", wire.SamplingParams{}, 0)
		Expect(err).NotTo(HaveOccurred())

		select {
		case res := <-req.Sink():
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Response.Text).To(Equal("hello"))
		case <-time.After(time.Second):
			Fail("worker did not deliver a result")
		}
	})

	It("stops draining once Stop is called", func() {
		q := queue.New(10, 0)
		w := worker.New(q, stubModel{}, nil)

		ctx := context.Background()
		go w.Run(ctx)

		done := make(chan struct{})
		go func() {
			w.Stop()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			Fail("Stop did not return")
		}
	})
})
