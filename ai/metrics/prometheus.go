// Package metrics provides Prometheus metrics export for the retrieval
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stage labels.
const (
	StageSeed      = "seed"
	StageGraph     = "graph"
	StageExpand    = "expand"
	StageFeatures  = "features"
	StageAuthority = "authority"
	StageSelect    = "select"
	StageRender    = "render"
)

// PrometheusExporter exports retrieval metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	degraded     *prometheus.CounterVec

	seedCount     prometheus.Histogram
	subgraphNodes prometheus.Histogram
	contextTokens prometheus.Histogram
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
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

	e := &PrometheusExporter{
		registry: registry,
	}

	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hyphora",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total number of context requests",
		},
		[]string{"status"},
	)

	e.stageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hyphora",
			Subsystem: "retrieval",
			Name:      "stage_latency_seconds",
			Help:      "Pipeline stage latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"stage"},
	)

	e.degraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hyphora",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Total number of degraded-mode requests",
		},
		[]string{"reason"},
	)

	e.seedCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hyphora",
			Subsystem: "retrieval",
			Name:      "seed_count",
			Help:      "Number of seeds per request",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		},
	)

	e.subgraphNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hyphora",
			Subsystem: "retrieval",
			Name:      "subgraph_nodes",
			Help:      "Number of subgraph nodes per request",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	e.contextTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hyphora",
			Subsystem: "retrieval",
			Name:      "context_tokens",
			Help:      "Total rendered tokens per request",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		},
	)

	registry.MustRegister(
		e.requests,
		e.stageLatency,
		e.degraded,
		e.seedCount,
		e.subgraphNodes,
		e.contextTokens,
	)

	return e
}

// RecordRequest records one pipeline invocation.
func (e *PrometheusExporter) RecordRequest(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.requests.WithLabelValues(status).Inc()
}

// RecordStage records one stage's latency.
func (e *PrometheusExporter) RecordStage(stage string, latency time.Duration) {
	e.stageLatency.WithLabelValues(stage).Observe(latency.Seconds())
}

// RecordDegraded records a degraded-mode request with its reason.
func (e *PrometheusExporter) RecordDegraded(reason string) {
	e.degraded.WithLabelValues(reason).Inc()
}

// RecordSizes records the per-request size observations.
func (e *PrometheusExporter) RecordSizes(seeds, subgraphNodes, tokens int) {
	e.seedCount.Observe(float64(seeds))
	e.subgraphNodes.Observe(float64(subgraphNodes))
	e.contextTokens.Observe(float64(tokens))
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
