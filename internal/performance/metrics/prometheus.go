package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver mirrors engine samples into Prometheus collectors on a
// private registry.
type PrometheusObserver struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	checks   *prometheus.CounterVec
	vus      prometheus.Gauge
}

// NewPrometheusObserver creates an observer whose metric names start with
// namespace.
func NewPrometheusObserver(namespace string) *PrometheusObserver {
	reg := prometheus.NewRegistry()

	p := &PrometheusObserver{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests sent to the target, by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_bytes_total",
			Help:      "Response body bytes received, by operation.",
		}, []string{"op"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Verification checks, by check and result.",
		}, []string{"check", "result"}),
		vus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_vus",
			Help:      "Virtual users currently running.",
		}),
	}

	reg.MustRegister(
		p.requests, p.duration, p.bytes, p.checks, p.vus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

// ObserveRequest implements Observer.
func (p *PrometheusObserver) ObserveRequest(name string, d time.Duration, success bool, bytes int64) {
	if name == "" {
		name = "unnamed"
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	p.requests.WithLabelValues(name, outcome).Inc()
	p.duration.WithLabelValues(name).Observe(d.Seconds())
	p.bytes.WithLabelValues(name).Add(float64(bytes))
}

// ObserveCheck implements Observer.
func (p *PrometheusObserver) ObserveCheck(name string, passed bool) {
	result := "pass"
	if !passed {
		result = "fail"
	}
	p.checks.WithLabelValues(name, result).Inc()
}

// ObserveVUs implements Observer.
func (p *PrometheusObserver) ObserveVUs(count int) {
	p.vus.Set(float64(count))
}

// Registry returns the private registry.
func (p *PrometheusObserver) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

var _ Observer = (*PrometheusObserver)(nil)
