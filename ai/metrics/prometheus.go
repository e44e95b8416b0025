// Package metrics provides Prometheus metrics export for the routing engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "agentrouter"
	subsystem = "routing"
)

// PrometheusExporter exports routing metrics in Prometheus format.
// It satisfies routing.Observer.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Decision metrics
	decisions    *prometheus.CounterVec
	routeLatency *prometheus.HistogramVec
	confidence   *prometheus.HistogramVec
	abstentions  *prometheus.CounterVec

	// Learning metrics
	feedback       *prometheus.CounterVec
	cachedPatterns prometheus.Gauge
	maturePatterns prometheus.Gauge

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64

	// RuntimeCollectors adds the Go runtime and process collectors.
	RuntimeCollectors bool
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets:    []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		RuntimeCollectors: true,
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decisions_total",
			Help:      "Total number of routing decisions by method and agent",
		},
		[]string{"method", "agent"},
	)

	e.routeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "route_latency_seconds",
			Help:      "Routing pipeline latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"method"},
	)

	e.confidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decision_confidence",
			Help:      "Confidence of routing decisions",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"method"},
	)

	e.abstentions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "abstentions_total",
			Help:      "Total number of stage abstentions by stage and reason",
		},
		[]string{"stage", "reason"},
	)

	e.feedback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "feedback_total",
			Help:      "Total number of feedback submissions by kind and status",
		},
		[]string{"kind", "status"},
	)

	e.cachedPatterns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cached_patterns",
			Help:      "Number of (agent, pattern) performance rows in memory",
		},
	)

	e.maturePatterns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mature_patterns",
			Help:      "Number of performance rows that take part in scoring",
		},
	)

	e.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	e.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"route"},
	)

	registry.MustRegister(
		e.decisions,
		e.routeLatency,
		e.confidence,
		e.abstentions,
		e.feedback,
		e.cachedPatterns,
		e.maturePatterns,
		e.httpRequests,
		e.httpLatency,
	)
	if cfg.RuntimeCollectors {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return e
}

// ObserveDecision records a routing decision.
func (e *PrometheusExporter) ObserveDecision(method, agent string, confidence float64, latency time.Duration) {
	if agent == "" {
		agent = "none"
	}
	e.decisions.WithLabelValues(method, agent).Inc()
	e.routeLatency.WithLabelValues(method).Observe(latency.Seconds())
	e.confidence.WithLabelValues(method).Observe(confidence)
}

// ObserveAbstention records a stage that declined to decide.
func (e *PrometheusExporter) ObserveAbstention(stage, reason string) {
	e.abstentions.WithLabelValues(stage, reason).Inc()
}

// ObserveFeedback records a feedback submission outcome.
func (e *PrometheusExporter) ObserveFeedback(kind, status string) {
	e.feedback.WithLabelValues(kind, status).Inc()
}

// ObservePatterns sets the pattern gauges.
func (e *PrometheusExporter) ObservePatterns(cached, mature int) {
	e.cachedPatterns.Set(float64(cached))
	e.maturePatterns.Set(float64(mature))
}

// RecordHTTPRequest records one served HTTP request.
func (e *PrometheusExporter) RecordHTTPRequest(route string, code int, latency time.Duration) {
	e.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	e.httpLatency.WithLabelValues(route).Observe(latency.Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
