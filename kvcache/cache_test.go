package kvcache_test

import (
	"testing"

	"github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/kvcache"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestKVCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "KVCache Suite")
}

const hiddenDim = 4

func row(v float32) []float32 {
	out := make([]float32, hiddenDim)
	for i := range out {
		out[i] = v
	}
	return out
}

var _ = Describe("Manager", func() {
	var m *kvcache.Manager

	BeforeEach(func() {
		m = kvcache.New(kvcache.Config{HiddenDim: hiddenDim, MaxPages: 64, MaxSeqLen: 256})
	})

	It("appends and reads back keys/values across a page boundary", func() {
		id := m.AllocateSequence()
		for i := 0; i < kvcache.PageTokens+1; i++ {
			Expect(m.AppendKV(id, row(float32(i)), row(float32(i)*2))).To(Succeed())
		}

		keysOut := make([]float32, hiddenDim)
		valsOut := make([]float32, hiddenDim)
		Expect(m.ReadKV(id, kvcache.PageTokens, keysOut, valsOut)).To(Succeed())
		Expect(keysOut).To(Equal(row(float32(kvcache.PageTokens))))
		Expect(valsOut).To(Equal(row(float32(kvcache.PageTokens) * 2)))

		n, err := m.SeqLen(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(kvcache.PageTokens + 1))
		Expect(m.SequencePageCount(id)).To(Equal(2))
	})

	It("rejects reads past the current sequence length", func() {
		id := m.AllocateSequence()
		Expect(m.AppendKV(id, row(1), row(1))).To(Succeed())

		out := make([]float32, hiddenDim)
		err := m.ReadKV(id, 5, out, out)
		Expect(err).To(HaveOccurred())
		Expect(errors.Get(err).Kind()).To(Equal(errors.KindInvalidInput))
	})

	It("reports not-found for an unknown sequence", func() {
		_, err := m.SeqLen(kvcache.SequenceID(999))
		Expect(err).To(HaveOccurred())
		Expect(errors.Get(err).Kind()).To(Equal(errors.KindNotFound))
	})

	It("frees a sequence and releases its pages", func() {
		id := m.AllocateSequence()
		Expect(m.AppendKV(id, row(1), row(1))).To(Succeed())
		Expect(m.ActiveSequences()).To(Equal(1))

		Expect(m.FreeSequence(id)).To(Succeed())
		Expect(m.HasSequence(id)).To(BeFalse())
		Expect(m.ActiveSequences()).To(Equal(0))
	})

	It("evicts the least-recently-used sequence when pages are exhausted", func() {
		small := kvcache.New(kvcache.Config{HiddenDim: hiddenDim, MaxPages: 1, MaxSeqLen: 256})
		first := small.AllocateSequence()
		Expect(small.AppendKV(first, row(1), row(1))).To(Succeed())

		second := small.AllocateSequence()
		Expect(small.AppendKV(second, row(2), row(2))).To(Succeed())

		Expect(small.HasSequence(first)).To(BeFalse())
		Expect(small.HasSequence(second)).To(BeTrue())
	})

	It("evicts pages beyond a configured sliding window", func() {
		sw := kvcache.New(kvcache.Config{
			HiddenDim: hiddenDim, MaxPages: 64, MaxSeqLen: 256,
			SlidingWindow: &kvcache.SlidingWindow{WindowSize: kvcache.PageTokens, OverlapTokens: 0},
		})
		id := sw.AllocateSequence()
		for i := 0; i < kvcache.PageTokens*3; i++ {
			Expect(sw.AppendKV(id, row(float32(i)), row(float32(i)))).To(Succeed())
		}

		evicted, err := sw.EvictBeyondWindow(id, kvcache.PageTokens*3)
		Expect(err).NotTo(HaveOccurred())
		Expect(evicted).To(BeNumerically(">", 0))
		Expect(sw.SequencePageCount(id)).To(BeNumerically("<", 3))
	})

	It("keeps appending and reading correctly after window eviction", func() {
		sw := kvcache.New(kvcache.Config{
			HiddenDim: hiddenDim, MaxPages: 64, MaxSeqLen: 256,
			SlidingWindow: &kvcache.SlidingWindow{WindowSize: kvcache.PageTokens, OverlapTokens: 0},
		})
		id := sw.AllocateSequence()
		for i := 0; i < kvcache.PageTokens*3; i++ {
			Expect(sw.AppendKV(id, row(float32(i)), row(float32(i)))).To(Succeed())
			_, err := sw.EvictBeyondWindow(id, i)
			Expect(err).NotTo(HaveOccurred())
		}

		keys := make([]float32, hiddenDim)
		values := make([]float32, hiddenDim)
		last := kvcache.PageTokens*3 - 1
		Expect(sw.ReadKV(id, last, keys, values)).To(Succeed())
		Expect(keys[0]).To(Equal(float32(last)))

		err := sw.ReadKV(id, 0, keys, values)
		Expect(err).To(HaveOccurred())
	})

	It("computes attention scores via the quantized shadow store", func() {
		q := kvcache.New(kvcache.Config{HiddenDim: hiddenDim, MaxPages: 64, MaxSeqLen: 256, EnableQuantization: true})
		id := q.AllocateSequence()
		Expect(q.AppendKV(id, row(1), row(1))).To(Succeed())
		Expect(q.AppendKV(id, row(2), row(2))).To(Succeed())

		scores := make([]float32, 2)
		Expect(q.AttentionScores(id, row(1), scores)).To(Succeed())
		Expect(scores[0]).To(BeNumerically("~", 4, 0.5))
		Expect(scores[1]).To(BeNumerically("~", 8, 0.5))
	})
})
