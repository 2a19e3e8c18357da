package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsClient is a narrow metrics surface: named counters and a latency
// observer. No pipeline or handler records to it at present.
type MetricsClient interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, labels map[string]string, seconds float64)
}

// PrometheusMetrics implements MetricsClient with lazily-registered
// CounterVec/HistogramVec collectors, namespaced under claimsearch.
type PrometheusMetrics struct {
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics constructs a PrometheusMetrics client.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (m *PrometheusMetrics) IncCounter(name string, labels map[string]string) {
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		c = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claimsearch",
			Name:      name,
			Help:      name,
		}, labelKeys(labels))
		m.counters[name] = c
	}
	m.mu.Unlock()
	c.With(prometheus.Labels(labels)).Inc()
}

func (m *PrometheusMetrics) ObserveLatency(name string, labels map[string]string, seconds float64) {
	m.mu.Lock()
	h, ok := m.histograms[name]
	if !ok {
		h = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "claimsearch",
			Name:      name,
			Help:      name,
			Buckets:   prometheus.DefBuckets,
		}, labelKeys(labels))
		m.histograms[name] = h
	}
	m.mu.Unlock()
	h.With(prometheus.Labels(labels)).Observe(seconds)
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	return keys
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(string, map[string]string)              {}
func (NoopMetrics) ObserveLatency(string, map[string]string, float64) {}

// NewNoopMetrics returns a MetricsClient that discards everything.
func NewNoopMetrics() MetricsClient { return NoopMetrics{} }
