package wire_test

import (
	"strings"

	"github.com/mythologiq/gg-core/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Codec", func() {
	It("round-trips an inference request", func() {
		req := wire.InferenceRequest{
			ModelID: "llama-3-8b",
			Prompt:  "hello",
			Params:  wire.SamplingParams{MaxTokens: 64, Temperature: 0.7, TopP: 0.9},
		}

		frame, err := wire.Encode(wire.V1, wire.TypeInferenceRequest, req)
		Expect(err).NotTo(HaveOccurred())

		env, err := wire.Decode(frame)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Type).To(Equal(wire.TypeInferenceRequest))

		var got wire.InferenceRequest
		Expect(wire.DecodePayload(env, &got)).To(Succeed())
		Expect(got).To(Equal(req))
	})

	It("rejects a frame over the size cap", func() {
		huge := make([]byte, wire.MaxFrameSize+1)
		_, err := wire.Decode(huge)
		Expect(err).To(HaveOccurred())
	})

	It("replaces an oversize encode with a 413 error envelope", func() {
		big := strings.Repeat("x", wire.MaxFrameSize+1)
		frame, err := wire.Encode(wire.V1, wire.TypeInferenceResponse, wire.InferenceResponse{Text: big})
		Expect(err).NotTo(HaveOccurred())

		env, err := wire.Decode(frame)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Type).To(Equal(wire.TypeError))

		var got wire.ErrorPayload
		Expect(wire.DecodePayload(env, &got)).To(Succeed())
		Expect(got.Code).To(Equal(413))
	})

	It("rejects an unsupported protocol version", func() {
		_, err := wire.Decode([]byte(`{"version":99,"type":"health_check"}`))
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("sampling parameter validation",
		func(params wire.SamplingParams, wantErr bool) {
			req := &wire.InferenceRequest{ModelID: "m", Prompt: "p", Params: params}
			err := wire.ValidateInferenceRequest(req)
			if wantErr {
				Expect(err).To(HaveOccurred())
			} else {
				Expect(err).NotTo(HaveOccurred())
			}
		},
		Entry("valid", wire.SamplingParams{MaxTokens: 1, Temperature: 0, TopP: 1}, false),
		Entry("zero max_tokens", wire.SamplingParams{MaxTokens: 0, Temperature: 0, TopP: 1}, true),
		Entry("negative temperature", wire.SamplingParams{MaxTokens: 1, Temperature: -1, TopP: 1}, true),
		Entry("top_p zero", wire.SamplingParams{MaxTokens: 1, Temperature: 0, TopP: 0}, true),
		Entry("top_p over one", wire.SamplingParams{MaxTokens: 1, Temperature: 0, TopP: 1.1}, true),
	)
})
