package metrics_test

import (
	"testing"

	"github.com/mythologiq/gg-core/metrics"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

var _ = Describe("Registry", func() {
	It("renders Prometheus text exposition format", func() {
		r := metrics.New()
		r.SetQueueDepth(3)
		r.ObserveInference("model-a", 12.5, "")

		text, err := r.PrometheusText()
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("gg_core_queue_depth"))
		Expect(text).To(ContainSubstring("gg_core_requests_total"))
	})

	It("reports gauge values in its JSON snapshot", func() {
		r := metrics.New()
		r.SetQueueDepth(7)
		r.SetActiveConnections(2)
		r.SetModelsLoaded(1)
		r.SetUptimeSeconds(90061)
		r.SetKVCacheBytes(1 << 20)

		snap, err := r.Snapshot()
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.QueueDepth).To(Equal(int64(7)))
		Expect(snap.ActiveConnections).To(Equal(int64(2)))
		Expect(snap.ModelsLoaded).To(Equal(int64(1)))
		Expect(snap.UptimeSeconds).To(Equal(90061.0))
		Expect(snap.KVCacheBytes).To(Equal(int64(1 << 20)))
	})

	It("counts requests and errors across observations", func() {
		r := metrics.New()
		r.ObserveInference("model-a", 10, "")
		r.ObserveInference("model-a", 20, "resource_exhausted")
		r.ObserveInference("model-b", 5, "")

		snap, err := r.Snapshot()
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.RequestsTotal).To(Equal(3.0))
		Expect(snap.ErrorsTotal).To(Equal(1.0))
	})

	It("computes latency quantiles from real histogram buckets", func() {
		r := metrics.New()
		for i := 0; i < 100; i++ {
			r.ObserveInference("model-a", 50, "")
		}
		for i := 0; i < 5; i++ {
			r.ObserveInference("model-a", 5000, "")
		}

		snap, err := r.Snapshot()
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.LatencyP50Ms).To(BeNumerically("<", 200))
		Expect(snap.LatencyP99Ms).To(BeNumerically(">", snap.LatencyP50Ms))
	})

	It("renders a JSON-friendly map via ToMap", func() {
		r := metrics.New()
		snap, err := r.Snapshot()
		Expect(err).NotTo(HaveOccurred())
		m := snap.ToMap()
		Expect(m).To(HaveKey("queue_depth"))
		Expect(m).To(HaveKey("latency_p99_ms"))
	})
})
