package ipc_test

import (
	"context"
	"testing"
	"time"

	"github.com/mythologiq/gg-core/ipc"
	"github.com/mythologiq/gg-core/queue"
	"github.com/mythologiq/gg-core/session"
	"github.com/mythologiq/gg-core/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIPC(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "IPC Suite")
}

func newHandler() (*ipc.Handler, *queue.Queue) {
	auth := session.New("secret", time.Hour, nil)
	q := queue.New(16, 0)
	return &ipc.Handler{Auth: auth, Queue: q}, q
}

func encode(t Type, v interface{}) []byte {
	frame, err := wire.Encode(wire.V1, t, v)
	Expect(err).NotTo(HaveOccurred())
	return frame
}

type Type = wire.Type

var _ = Describe("Handler.Dispatch", func() {
	It("rejects a non-handshake first frame", func() {
		h, _ := newHandler()
		var got []wire.ErrorPayload
		emit := func(typ wire.Type, payload interface{}) error {
			if typ == wire.TypeError {
				got = append(got, payload.(wire.ErrorPayload))
			}
			return nil
		}

		frame := encode(wire.TypeHealthCheck, wire.HealthCheck{})
		sess, err := h.Dispatch(context.Background(), "", frame, emit)
		Expect(err).To(HaveOccurred())
		Expect(sess).To(BeEmpty())
		Expect(got).To(HaveLen(1))
		Expect(got[0].Code).To(Equal(401))
	})

	It("authenticates a handshake and issues a session token", func() {
		h, _ := newHandler()
		var acks []wire.HandshakeAck
		emit := func(typ wire.Type, payload interface{}) error {
			if typ == wire.TypeHandshakeAck {
				acks = append(acks, payload.(wire.HandshakeAck))
			}
			return nil
		}

		frame := encode(wire.TypeHandshake, wire.Handshake{Token: "secret"})
		sess, err := h.Dispatch(context.Background(), "", frame, emit)
		Expect(err).NotTo(HaveOccurred())
		Expect(sess).NotTo(BeEmpty())
		Expect(acks).To(HaveLen(1))
		Expect(acks[0].SessionToken).To(Equal(string(sess)))
	})

	It("rejects a request carrying an unvalidated session", func() {
		h, _ := newHandler()
		emit := func(wire.Type, interface{}) error { return nil }

		frame := encode(wire.TypeHealthCheck, wire.HealthCheck{})
		_, err := h.Dispatch(context.Background(), session.Token("bogus"), frame, emit)
		Expect(err).To(HaveOccurred())
	})

	It("answers a health check once a session is established", func() {
		h, _ := newHandler()
		sess, err := h.Auth.Authenticate("secret")
		Expect(err).NotTo(HaveOccurred())

		var healths []wire.HealthResponse
		emit := func(typ wire.Type, payload interface{}) error {
			if typ == wire.TypeHealthResponse {
				healths = append(healths, payload.(wire.HealthResponse))
			}
			return nil
		}

		frame := encode(wire.TypeHealthCheck, wire.HealthCheck{})
		_, err = h.Dispatch(context.Background(), sess, frame, emit)
		Expect(err).NotTo(HaveOccurred())
		Expect(healths).To(HaveLen(1))
		Expect(healths[0].Healthy).To(BeTrue())
	})

	It("enqueues an inference request and replies with the resolved result", func() {
		h, q := newHandler()
		sess, err := h.Auth.Authenticate("secret")
		Expect(err).NotTo(HaveOccurred())

		done := make(chan struct{})
		go func() {
			defer close(done)
			req, derr := q.Dequeue()
			Expect(derr).NotTo(HaveOccurred())
			req.Resolve(queue.Result{Response: wire.InferenceResponse{Text: "hello"}})
		}()

		var resps []wire.InferenceResponse
		emit := func(typ wire.Type, payload interface{}) error {
			if typ == wire.TypeInferenceResponse {
				resps = append(resps, payload.(wire.InferenceResponse))
			}
			return nil
		}

		frame := encode(wire.TypeInferenceRequest, wire.InferenceRequest{
			ModelID: "m1",
			Prompt:  "hi",
			Params:  wire.SamplingParams{MaxTokens: 8, TopP: 1},
		})
		_, err = h.Dispatch(context.Background(), sess, frame, emit)
		Expect(err).NotTo(HaveOccurred())
		Eventually(done).Should(BeClosed())
		Expect(resps).To(HaveLen(1))
		Expect(resps[0].Text).To(Equal("hello"))
	})

	It("streams chunks ending in exactly one terminal marker when asked to", func() {
		h, q := newHandler()
		sess, err := h.Auth.Authenticate("secret")
		Expect(err).NotTo(HaveOccurred())

		done := make(chan struct{})
		go func() {
			defer close(done)
			req, derr := q.Dequeue()
			Expect(derr).NotTo(HaveOccurred())
			req.Resolve(queue.Result{Response: wire.InferenceResponse{Text: "hello"}})
		}()

		var chunks []wire.StreamChunk
		emit := func(typ wire.Type, payload interface{}) error {
			if typ == wire.TypeStreamChunk {
				chunks = append(chunks, payload.(wire.StreamChunk))
			}
			return nil
		}

		frame := encode(wire.TypeInferenceRequest, wire.InferenceRequest{
			ModelID: "m1",
			Prompt:  "hi",
			Params:  wire.SamplingParams{MaxTokens: 8, TopP: 1, Stream: true},
		})
		_, err = h.Dispatch(context.Background(), sess, frame, emit)
		Expect(err).NotTo(HaveOccurred())
		Eventually(done).Should(BeClosed())
		Expect(chunks).To(HaveLen(2))
		Expect(chunks[0].Text).To(Equal("hello"))
		Expect(chunks[0].IsFinal).To(BeFalse())
		Expect(chunks[1].IsFinal).To(BeTrue())
	})

	It("cancels a queued request", func() {
		h, q := newHandler()
		sess, err := h.Auth.Authenticate("secret")
		Expect(err).NotTo(HaveOccurred())

		req, err := q.Enqueue("m1", "hi", wire.SamplingParams{MaxTokens: 8, TopP: 1}, 0)
		Expect(err).NotTo(HaveOccurred())

		var resps []wire.CancelResponse
		emit := func(typ wire.Type, payload interface{}) error {
			if typ == wire.TypeCancelResponse {
				resps = append(resps, payload.(wire.CancelResponse))
			}
			return nil
		}

		frame := encode(wire.TypeCancelRequest, wire.CancelRequest{RequestID: req.ID})
		_, err = h.Dispatch(context.Background(), sess, frame, emit)
		Expect(err).NotTo(HaveOccurred())
		Expect(resps).To(HaveLen(1))
		Expect(resps[0].Cancelled).To(BeTrue())
	})

	It("reports elapsed time for a warmup", func() {
		h, _ := newHandler()
		h.Warmup = func(ctx context.Context, modelID string) (time.Duration, error) {
			return 5 * time.Millisecond, nil
		}
		sess, err := h.Auth.Authenticate("secret")
		Expect(err).NotTo(HaveOccurred())

		var resps []wire.WarmupResponse
		emit := func(typ wire.Type, payload interface{}) error {
			if typ == wire.TypeWarmupResponse {
				resps = append(resps, payload.(wire.WarmupResponse))
			}
			return nil
		}

		frame := encode(wire.TypeWarmupRequest, wire.WarmupRequest{ModelID: "m1"})
		_, err = h.Dispatch(context.Background(), sess, frame, emit)
		Expect(err).NotTo(HaveOccurred())
		Expect(resps).To(HaveLen(1))
		Expect(resps[0].Loaded).To(BeTrue())
		Expect(resps[0].ElapsedMs).To(Equal(int64(5)))
	})

	It("rejects warmup when no warmup function is configured", func() {
		h, _ := newHandler()
		sess, err := h.Auth.Authenticate("secret")
		Expect(err).NotTo(HaveOccurred())

		var errs []wire.ErrorPayload
		emit := func(typ wire.Type, payload interface{}) error {
			if typ == wire.TypeError {
				errs = append(errs, payload.(wire.ErrorPayload))
			}
			return nil
		}

		frame := encode(wire.TypeWarmupRequest, wire.WarmupRequest{ModelID: "m1"})
		_, err = h.Dispatch(context.Background(), sess, frame, emit)
		Expect(err).To(HaveOccurred())
		Expect(errs).To(HaveLen(1))
		Expect(errs[0].Code).To(Equal(501))
	})
})
