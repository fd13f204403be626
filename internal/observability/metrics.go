package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "go_accel"

// Metrics holds the gateway collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	duration         *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled, by protocol family",
		}, []string{"family"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_rejections_total",
			Help:      "Requests refused before dispatch, by reason",
		}, []string{"reason"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Upstream round trips that failed after retries",
		}, []string{"platform"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End to end request latency, by protocol family",
			Buckets:   prometheus.DefBuckets,
		}, []string{"family"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.rejections,
		m.upstreamFailures,
		m.duration,
	)
	return m
}

func (m *Metrics) IncRequests(family string)   { m.requests.WithLabelValues(family).Inc() }
func (m *Metrics) IncRejections(reason string) { m.rejections.WithLabelValues(reason).Inc() }
func (m *Metrics) IncUpstreamFailures(platform string) {
	m.upstreamFailures.WithLabelValues(platform).Inc()
}

func (m *Metrics) ObserveDuration(family string, d time.Duration) {
	m.duration.WithLabelValues(family).Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
