package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/ports"
)

// capturingCollector records every metric call with its labels for
// assertion.
type capturingCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
	labels     map[string]map[string]string
}

func newCapturingCollector() *capturingCollector {
	return &capturingCollector{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
		labels:     make(map[string]map[string]string),
	}
}

func (c *capturingCollector) RecordLatency(string, time.Duration, map[string]string) {}

func (c *capturingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := metric
	if tokenType, ok := labels["token_type"]; ok {
		key += ":" + tokenType
	}
	c.counters[key] += value
	c.labels[key] = cloneLabels(labels)
}

func (c *capturingCollector) RecordGauge(string, float64, map[string]string) {}

func (c *capturingCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histograms[metric] = append(c.histograms[metric], value)
	c.labels[metric] = cloneLabels(labels)
}

func cloneLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func TestMetricsMiddleware_RecordsSuccess(t *testing.T) {
	mock := NewMockCoreGenerator()
	mock.Model = "gpt-4o-mini"
	mock.Result = ports.GenerateResult{Text: "ok", TokensIn: 12, TokensOut: 34}
	collector := newCapturingCollector()

	core := Wrap(mock, MetricsMiddleware(collector))

	_, err := core.DoGenerate(context.Background(), ports.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)

	assert.Equal(t, float64(1), collector.counters["generation_requests_total"])
	assert.Equal(t, float64(12), collector.counters["generation_tokens_total:input"])
	assert.Equal(t, float64(34), collector.counters["generation_tokens_total:output"])
	assert.Len(t, collector.histograms["generation_latency_seconds"], 1)

	labels := collector.labels["generation_requests_total"]
	assert.Equal(t, "success", labels["status"])
	assert.Equal(t, "openai", labels["provider"])
	assert.Equal(t, "gpt-4o-mini", labels["model"])
}

func TestMetricsMiddleware_StatusLabels(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus string
	}{
		{
			name:       "generic failure",
			err:        NewProviderError("test", ErrorTypeServerError, 503, "down", nil),
			wantStatus: "error",
		},
		{
			name:       "rate limited",
			err:        NewProviderError("test", ErrorTypeRateLimit, 429, "slow down", nil),
			wantStatus: "rate_limited",
		},
		{
			name:       "circuit open",
			err:        ErrCircuitOpen,
			wantStatus: "circuit_open",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreGenerator()
			mock.Error = tt.err
			collector := newCapturingCollector()

			core := Wrap(mock, MetricsMiddleware(collector))

			_, err := core.DoGenerate(context.Background(), ports.GenerateRequest{Prompt: "hi"})
			require.Error(t, err)

			assert.Equal(t, tt.wantStatus, collector.labels["generation_requests_total"]["status"])
			// Token counters are only recorded for successful requests.
			assert.Zero(t, collector.counters["generation_tokens_total:input"])
		})
	}
}

func TestMetricsMiddleware_NilCollectorPassesThrough(t *testing.T) {
	mock := NewMockCoreGenerator()

	core := Wrap(mock, MetricsMiddleware(nil))

	result, err := core.DoGenerate(context.Background(), ports.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "test response", result.Text)
}

func TestMetricsMiddleware_ProviderFromModelName(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o-mini", "openai"},
		{"o1-preview", "openai"},
		{"claude-sonnet-4-20250514", "anthropic"},
		{"gemini-2.0-flash", "google"},
		{"mistral-large", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			mock := NewMockCoreGenerator()
			mock.Model = tt.model

			m := &metricsGenerator{next: mock}
			assert.Equal(t, tt.want, m.extractProvider())
		})
	}
}
