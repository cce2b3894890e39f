package netoff

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics by registering counters and a
// histogram with a prometheus.Registerer, for deployments that already
// scrape a /metrics endpoint rather than polling DefaultMetrics in-process.
// Grounded on the shared use of prometheus/client_golang across the
// dittofs and sockstats repos in the retrieval pack.
type PrometheusMetrics struct {
	requestsSent     prometheus.Counter
	requestsReceived prometheus.Counter
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	roundTrip        prometheus.Histogram
}

// NewPrometheusMetrics registers <namespace>_* collectors with reg and returns a
// Metrics implementation backed by them. Pass prometheus.DefaultRegisterer
// to use the global registry.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		requestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_sent_total",
			Help: "Requests sent by this peer.",
		}),
		requestsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_received_total",
			Help: "Requests received by this peer.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total",
			Help: "Raw wire bytes sent by this peer.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total",
			Help: "Raw wire bytes received by this peer.",
		}),
		roundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "round_trip_seconds",
			Help:    "Request/response round-trip latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requestsSent, m.requestsReceived, m.bytesSent, m.bytesReceived, m.roundTrip)
	return m
}

func (m *PrometheusMetrics) IncrementRequestsSent()         { m.requestsSent.Inc() }
func (m *PrometheusMetrics) IncrementRequestsReceived()     { m.requestsReceived.Inc() }
func (m *PrometheusMetrics) IncrementBytesSent(n int64)     { m.bytesSent.Add(float64(n)) }
func (m *PrometheusMetrics) IncrementBytesReceived(n int64) { m.bytesReceived.Add(float64(n)) }
func (m *PrometheusMetrics) ObserveRoundTrip(d time.Duration) {
	m.roundTrip.Observe(d.Seconds())
}

// GetRequestsSent etc. have no cheap Prometheus-side readback; they exist
// only to satisfy Metrics for code that reads counters back locally (e.g.
// DefaultMetrics in tests), so PrometheusMetrics reports zero values here.
// Scraping /metrics is the intended read path for this implementation.
func (m *PrometheusMetrics) GetRequestsSent() int64     { return 0 }
func (m *PrometheusMetrics) GetRequestsReceived() int64 { return 0 }
func (m *PrometheusMetrics) GetBytesSent() int64        { return 0 }
func (m *PrometheusMetrics) GetBytesReceived() int64    { return 0 }
