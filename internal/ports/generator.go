// Package ports defines the interfaces that separate the consensus core
// from the infrastructure layer. The core depends only on these contracts,
// which keeps it fully testable without a live generator backend.
package ports

import (
	"context"
	"time"
)

// SamplingParams are the generation parameters forwarded to the backend.
// Zero values mean "use the provider default".
type SamplingParams struct {
	// Temperature controls output randomness (0.0-2.0 depending on provider).
	Temperature float64 `json:"temperature"`

	// TopP is the nucleus-sampling threshold (0.0-1.0).
	TopP float64 `json:"top_p"`

	// TopK limits sampling to the K most likely tokens where supported.
	TopK int `json:"top_k"`

	// MaxTokens caps the length of the generated text.
	MaxTokens int `json:"max_tokens"`
}

// GenerateRequest is one text-generation call.
type GenerateRequest struct {
	// Prompt is the user-level prompt text.
	Prompt string

	// System is the optional system prompt. Providers without a native
	// system role prepend it to the prompt.
	System string

	// Params are the sampling parameters for this call.
	Params SamplingParams

	// OnToken, when non-nil, receives generated text incrementally from
	// streaming backends. Non-streaming backends deliver the final text in
	// a single call. Consumers must only rely on GenerateResult.Text.
	OnToken func(token string)
}

// GenerateResult is the outcome of one successful generation call.
type GenerateResult struct {
	// Text is the complete generated text.
	Text string

	// TokensIn and TokensOut report token usage when the backend provides
	// it, estimated otherwise.
	TokensIn  int
	TokensOut int
}

// TextGenerator is the capability the consensus core consumes to produce
// text. Implementations must honor context cancellation: an in-flight call
// must abort when ctx is cancelled, not merely be ignored afterward.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// ProgressObserver receives incremental pipeline progress at three
// granularities so a presentation layer can render the run as it happens.
// All methods may be called from concurrent goroutines; implementations
// must be safe for concurrent use. The pipeline functions correctly with a
// no-op observer.
type ProgressObserver interface {
	// CandidateGenerated fires once per generated candidate statement.
	CandidateGenerated(level, group, index int, text string)

	// RankingPredicted fires once per voter whose ranking was obtained,
	// including random-fallback rankings.
	RankingPredicted(level, group, voter int, ranking []int)

	// GroupWinnerChosen fires once per completed group election.
	GroupWinnerChosen(level, group, winner int, text string)
}

// NopObserver is a ProgressObserver that ignores every event. It is the
// default when the caller supplies no observer.
type NopObserver struct{}

// CandidateGenerated implements ProgressObserver.
func (NopObserver) CandidateGenerated(int, int, int, string) {}

// RankingPredicted implements ProgressObserver.
func (NopObserver) RankingPredicted(int, int, int, []int) {}

// GroupWinnerChosen implements ProgressObserver.
func (NopObserver) GroupWinnerChosen(int, int, int, string) {}

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations integrate with observability platforms such as
// Prometheus; a nil collector disables collection.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
