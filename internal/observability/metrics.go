package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the default registry in the Prometheus
// exposition format for a /metrics scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Metrics holds the core's request and domain gauges/counters,
// grounded on the teacher's ApiInflightInc/Dec + ObserveAPI shape but
// backed by real prometheus.CounterVec/HistogramVec/GaugeVec types
// rather than the teacher's own hand-rolled bookkeeping.
type Metrics struct {
	apiInflight    prometheus.Gauge
	apiRequests    *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
	reaperReaped   *prometheus.CounterVec
	reaperDuration prometheus.Histogram
}

// NewMetrics registers every gauge/counter/histogram against reg. Pass
// prometheus.NewRegistry() for isolated tests, or
// prometheus.DefaultRegisterer in production so MetricsHandler's
// promhttp.Handler() (which gathers from the default registry) can see
// them. A nil reg builds unregistered metrics, useful only when the
// caller has no intention of exposing them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		apiInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "foldcore",
			Subsystem: "api",
			Name:      "inflight_requests",
			Help:      "Number of HTTP requests currently being served.",
		}),
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foldcore",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total HTTP requests served, labeled by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "foldcore",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds, labeled by method/route/status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "foldcore",
			Subsystem: "jobs",
			Name:      "event_queue_depth",
			Help:      "Number of persisted events for a job's event queue at last observation.",
		}, []string{"job_id"}),
		reaperReaped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foldcore",
			Subsystem: "reaper",
			Name:      "reaped_total",
			Help:      "Total records deleted by the reaper, labeled by kind (stale_terminal/orphan_meta).",
		}, []string{"kind"}),
		reaperDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "foldcore",
			Subsystem: "reaper",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a full reaper sweep pass in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ApiInflightInc/ApiInflightDec bracket one HTTP request's lifetime.
func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveAPI records one completed HTTP request's outcome and latency.
func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

// ObserveQueueDepth records the event queue length last seen for jobID.
func (m *Metrics) ObserveQueueDepth(jobID string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(jobID).Set(float64(depth))
}

// ObserveReaperSweep records one reaper pass's outcome.
func (m *Metrics) ObserveReaperSweep(staleTerminalReaped, orphanMetaReaped int, dur time.Duration) {
	if m == nil {
		return
	}
	m.reaperReaped.WithLabelValues("stale_terminal").Add(float64(staleTerminalReaped))
	m.reaperReaped.WithLabelValues("orphan_meta").Add(float64(orphanMetaReaped))
	m.reaperDuration.Observe(dur.Seconds())
}
