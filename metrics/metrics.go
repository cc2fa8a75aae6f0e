// Package metrics wraps a prometheus registry exposing the runtime's
// counters, gauges, and latency histogram two ways: Prometheus text
// exposition format and a JSON snapshot, both served over the wire
// protocol's metrics message types.
package metrics

import (
	"bytes"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	liberr "github.com/mythologiq/gg-core/errors"
)

const namespace = "gg_core"

// Registry collects every metric the runtime exposes.
type Registry struct {
	reg *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestErrors    *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	activeConns      prometheus.Gauge
	modelsLoaded     prometheus.Gauge
	uptimeSeconds    prometheus.Gauge
	kvCacheBytes     prometheus.Gauge
	inferenceLatency *prometheus.HistogramVec
}

// New builds a Registry with every metric registered and ready to record.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total inference requests completed, labeled by model.",
		}, []string{"model_id"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Total inference requests that failed, labeled by model and error kind.",
		}, []string{"model_id", "kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of requests admitted but not yet dequeued.",
		}),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Current number of live transport connections.",
		}),
		modelsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_loaded",
			Help:      "Current number of models resident in the registry.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the runtime started serving.",
		}),
		kvCacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kv_cache_bytes",
			Help:      "Bytes currently held by the paged KV cache.",
		}),
		inferenceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_latency_ms",
			Help:      "Inference latency in milliseconds, labeled by model.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"model_id"}),
	}

	reg.MustRegister(r.requestsTotal, r.requestErrors, r.queueDepth, r.activeConns, r.modelsLoaded, r.uptimeSeconds, r.kvCacheBytes, r.inferenceLatency)
	return r
}

// ObserveInference records one completed (or failed) inference.
func (r *Registry) ObserveInference(modelID string, latencyMs float64, errKind string) {
	r.requestsTotal.WithLabelValues(modelID).Inc()
	if errKind != "" {
		r.requestErrors.WithLabelValues(modelID, errKind).Inc()
	}
	r.inferenceLatency.WithLabelValues(modelID).Observe(latencyMs)
}

// SetQueueDepth records the queue's current pending count.
func (r *Registry) SetQueueDepth(n int) { r.queueDepth.Set(float64(n)) }

// SetActiveConnections records the transport's current live connection
// count.
func (r *Registry) SetActiveConnections(n int64) { r.activeConns.Set(float64(n)) }

// SetModelsLoaded records the registry's current resident model count.
func (r *Registry) SetModelsLoaded(n int) { r.modelsLoaded.Set(float64(n)) }

// SetUptimeSeconds records the elapsed serving time.
func (r *Registry) SetUptimeSeconds(secs float64) { r.uptimeSeconds.Set(secs) }

// SetKVCacheBytes records the KV cache's current resident byte count.
func (r *Registry) SetKVCacheBytes(n int) { r.kvCacheBytes.Set(float64(n)) }

// PrometheusText renders every registered metric in Prometheus text
// exposition format.
func (r *Registry) PrometheusText() (string, error) {
	mfs, err := r.reg.Gather()
	if err != nil {
		return "", liberr.New(liberr.MinPkgMetrics+1, liberr.KindInternal, "failed to gather metrics", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return "", liberr.New(liberr.MinPkgMetrics+2, liberr.KindInternal, "failed to encode metric family", err)
		}
	}
	return buf.String(), nil
}

// Snapshot is a point-in-time JSON-friendly view of the registry.
type Snapshot struct {
	QueueDepth        int64   `json:"queue_depth"`
	ActiveConnections int64   `json:"active_connections"`
	ModelsLoaded      int64   `json:"models_loaded"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	KVCacheBytes      int64   `json:"kv_cache_bytes"`
	RequestsTotal     float64 `json:"requests_total"`
	ErrorsTotal       float64 `json:"errors_total"`
	LatencyAvgMs      float64 `json:"latency_avg_ms"`
	LatencyP50Ms      float64 `json:"latency_p50_ms"`
	LatencyP95Ms      float64 `json:"latency_p95_ms"`
	LatencyP99Ms      float64 `json:"latency_p99_ms"`
}

// ToMap renders the snapshot as the free-form map MetricsResponse carries
// over the wire.
func (s Snapshot) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"queue_depth":        s.QueueDepth,
		"active_connections": s.ActiveConnections,
		"models_loaded":      s.ModelsLoaded,
		"uptime_seconds":     s.UptimeSeconds,
		"kv_cache_bytes":     s.KVCacheBytes,
		"requests_total":     s.RequestsTotal,
		"errors_total":       s.ErrorsTotal,
		"latency_avg_ms":     s.LatencyAvgMs,
		"latency_p50_ms":     s.LatencyP50Ms,
		"latency_p95_ms":     s.LatencyP95Ms,
		"latency_p99_ms":     s.LatencyP99Ms,
	}
}

// Snapshot gathers every metric and computes latency quantiles from the
// histogram's real bucket counts rather than a max-based placeholder.
func (r *Registry) Snapshot() (Snapshot, error) {
	mfs, err := r.reg.Gather()
	if err != nil {
		return Snapshot{}, liberr.New(liberr.MinPkgMetrics+3, liberr.KindInternal, "failed to gather metrics", err)
	}

	var snap Snapshot
	merged := make(map[float64]uint64)
	var histCount uint64
	var histSum float64

	for _, mf := range mfs {
		switch mf.GetName() {
		case namespace + "_queue_depth":
			snap.QueueDepth = int64(firstGaugeValue(mf))
		case namespace + "_active_connections":
			snap.ActiveConnections = int64(firstGaugeValue(mf))
		case namespace + "_models_loaded":
			snap.ModelsLoaded = int64(firstGaugeValue(mf))
		case namespace + "_uptime_seconds":
			snap.UptimeSeconds = firstGaugeValue(mf)
		case namespace + "_kv_cache_bytes":
			snap.KVCacheBytes = int64(firstGaugeValue(mf))
		case namespace + "_requests_total":
			snap.RequestsTotal = sumCounters(mf)
		case namespace + "_request_errors_total":
			snap.ErrorsTotal = sumCounters(mf)
		case namespace + "_inference_latency_ms":
			for _, m := range mf.GetMetric() {
				h := m.GetHistogram()
				histCount += h.GetSampleCount()
				histSum += h.GetSampleSum()
				for _, b := range h.GetBucket() {
					merged[b.GetUpperBound()] += b.GetCumulativeCount()
				}
			}
		}
	}

	buckets := mergedBuckets(merged)
	snap.LatencyP50Ms = quantile(buckets, histCount, 0.50)
	snap.LatencyP95Ms = quantile(buckets, histCount, 0.95)
	snap.LatencyP99Ms = quantile(buckets, histCount, 0.99)
	if histCount > 0 {
		snap.LatencyAvgMs = histSum / float64(histCount)
	}
	return snap, nil
}

func firstGaugeValue(mf *dto.MetricFamily) float64 {
	if len(mf.GetMetric()) == 0 {
		return 0
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

func sumCounters(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}

type bucket struct {
	upperBound      float64
	cumulativeCount uint64
}

func mergedBuckets(m map[float64]uint64) []bucket {
	out := make([]bucket, 0, len(m))
	for bound, count := range m {
		out = append(out, bucket{upperBound: bound, cumulativeCount: count})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].upperBound > out[j].upperBound; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// quantile interpolates the q-th quantile from cumulative bucket counts,
// linearly interpolating between the bucket boundaries that straddle the
// target rank rather than reporting a bucket boundary outright.
func quantile(buckets []bucket, total uint64, q float64) float64 {
	if total == 0 || len(buckets) == 0 {
		return 0
	}

	target := q * float64(total)
	var prevBound float64
	var prevCount uint64
	for _, b := range buckets {
		if float64(b.cumulativeCount) >= target {
			if b.cumulativeCount == prevCount {
				return b.upperBound
			}
			frac := (target - float64(prevCount)) / float64(b.cumulativeCount-prevCount)
			return prevBound + frac*(b.upperBound-prevBound)
		}
		prevBound = b.upperBound
		prevCount = b.cumulativeCount
	}
	return buckets[len(buckets)-1].upperBound
}
