package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ahrav/go-conclave/internal/ports"
)

// metricsGenerator collects per-request latency, status, and token-usage
// metrics for operational monitoring.
type metricsGenerator struct {
	next      CoreGenerator
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that records request metrics to the
// given collector. A nil collector disables collection.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreGenerator) CoreGenerator {
		return &metricsGenerator{
			next:      next,
			collector: collector,
		}
	}
}

// DoGenerate executes the request while recording latency, request counts
// by status, and token usage.
func (m *metricsGenerator) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	start := time.Now()
	result, err := m.next.DoGenerate(ctx, req)

	labels := map[string]string{
		"provider": m.extractProvider(),
		"model":    m.next.GetModel(),
		"status":   "success",
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrCircuitOpen):
			labels["status"] = "circuit_open"
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			labels["status"] = "timeout"
		case errors.Is(err, ports.ErrRateLimited):
			labels["status"] = "rate_limited"
		default:
			labels["status"] = "error"
		}
	}

	if m.collector != nil {
		m.collector.RecordHistogram("generation_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("generation_requests_total", 1, labels)

		if err == nil {
			labels["token_type"] = "input"
			m.collector.RecordCounter("generation_tokens_total", float64(result.TokensIn), labels)

			labels["token_type"] = "output"
			m.collector.RecordCounter("generation_tokens_total", float64(result.TokensOut), labels)
		}
	}

	return result, err
}

// extractProvider infers the backend from the model name for labeling.
func (m *metricsGenerator) extractProvider() string {
	model := m.next.GetModel()
	switch {
	case strings.Contains(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "openai"
	case strings.Contains(model, "claude"):
		return "anthropic"
	case strings.Contains(model, "gemini"):
		return "google"
	}
	return "unknown"
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsGenerator) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsGenerator) SetModel(model string) { m.next.SetModel(model) }
