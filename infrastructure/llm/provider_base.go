package llm

import (
	"sync"

	"github.com/ahrav/go-conclave/internal/ports"
)

// DefaultMaxTokens is the generation cap applied when a request does not
// specify one. Providers reject requests without an explicit cap.
const DefaultMaxTokens = 1024

// BaseProvider provides common, thread-safe model-name management for all
// provider backends.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the currently configured model name. Safe for concurrent
// use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name. Safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// normalizeParams clamps sampling parameters into the ranges shared by all
// providers and applies the default token cap. Zero-valued Temperature and
// TopP pass through; providers treat zero as "use the provider default".
func normalizeParams(params ports.SamplingParams) ports.SamplingParams {
	params.Temperature = ClampFloat64(params.Temperature, MinTemperature, MaxTemperature)
	params.TopP = ClampFloat64(params.TopP, MinTopP, MaxTopP)
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultMaxTokens
	}
	return params
}

// TokenCounter estimates token counts when an exact tokenizer is not
// available for a model.
type TokenCounter struct {
	// CharactersPerToken is the average number of characters per token.
	CharactersPerToken float64
}

// NewTokenCounter creates a TokenCounter with a character-per-token ratio
// that approximates English text.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens returns an estimated token count for the given text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount returns the actual token count when positive, otherwise an
// estimate from the text.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
