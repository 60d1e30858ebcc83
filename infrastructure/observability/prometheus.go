// Package observability provides metrics backends for the consensus
// pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-conclave/internal/ports"
)

// PrometheusCollector implements the MetricsCollector interface using
// Prometheus. It exposes pipeline progress (levels, elections, failures)
// and generation traffic (requests, latency, token usage) for real-time
// monitoring.
type PrometheusCollector struct {
	levelDuration     *prometheus.HistogramVec
	levelGroups       *prometheus.GaugeVec
	pipelineCounters  *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	generationCounter *prometheus.CounterVec
	tokenCounter      *prometheus.CounterVec
	systemGauges      *prometheus.GaugeVec
}

// Compile-time verification that PrometheusCollector implements
// MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector registered in the global
// Prometheus registry.
func NewPrometheusCollector() *PrometheusCollector {
	return NewPrometheusCollectorWith(prometheus.DefaultRegisterer)
}

// NewPrometheusCollectorWith creates a collector registered in the given
// registry. Tests use this to avoid duplicate registration in the global
// registry.
func NewPrometheusCollectorWith(registerer prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(registerer)

	return &PrometheusCollector{
		levelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "consensus_level_duration_seconds",
				Help:    "Wall-clock time spent per recursion level of the consensus pipeline.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"level"},
		),
		levelGroups: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "consensus_level_groups",
				Help: "Number of deliberation groups at each recursion level.",
			},
			[]string{"level"},
		),
		pipelineCounters: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consensus_events_total",
				Help: "Pipeline events (elections run, group failures, candidate shortfalls) by recursion level.",
			},
			[]string{"event", "level"},
		),
		generationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "generation_latency_seconds",
				Help:    "Latency of text generation requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		generationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_requests_total",
				Help: "Total text generation requests by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		tokenCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_tokens_total",
				Help: "Total tokens consumed and produced by generation requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "consensus_system_state",
				Help: "Current state values for the consensus pipeline.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records execution latency in a Prometheus histogram.
func (pc *PrometheusCollector) RecordLatency(
	operation string, duration time.Duration, labels map[string]string,
) {
	switch operation {
	case "consensus_level":
		pc.levelDuration.WithLabelValues(levelLabel(labels)).Observe(duration.Seconds())
	default:
		pc.generationLatency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "success"),
		).Observe(duration.Seconds())
	}
}

// RecordCounter increments Prometheus counters, routing by metric name.
func (pc *PrometheusCollector) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "generation_requests_total":
		pc.generationCounter.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "success"),
		).Add(value)
	case "generation_tokens_total":
		pc.tokenCounter.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "token_type", "unknown"),
		).Add(value)
	default:
		pc.pipelineCounters.WithLabelValues(metric, levelLabel(labels)).Add(value)
	}
}

// RecordGauge sets Prometheus gauge values.
func (pc *PrometheusCollector) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "consensus_level_groups":
		pc.levelGroups.WithLabelValues(levelLabel(labels)).Set(value)
	default:
		pc.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram records a pre-computed value in the matching histogram.
func (pc *PrometheusCollector) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "generation_latency_seconds":
		pc.generationLatency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "success"),
		).Observe(value)
	default:
		pc.levelDuration.WithLabelValues(levelLabel(labels)).Observe(value)
	}
}

func levelLabel(labels map[string]string) string {
	return labelOr(labels, "level", "unknown")
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return fallback
}
