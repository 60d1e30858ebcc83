// Package testutils provides deterministic test doubles for the consensus
// pipeline, most importantly a scriptable TextGenerator that stands in for
// a live model backend.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-conclave/internal/ports"
)

// MockGenerator implements ports.TextGenerator with deterministic
// responses for reliable pipeline testing. Responses are selected by
// substring matching against the prompt, with an optional GenerateFn hook
// for full control. Every received request is recorded for assertions.
// The mock is safe for concurrent use.
type MockGenerator struct {
	mu sync.Mutex

	// GenerateFn, when non-nil, handles every call and bypasses pattern
	// matching. Useful for per-call scripting and error injection.
	GenerateFn func(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error)

	responses map[string]string
	calls     []ports.GenerateRequest
}

// NewMockGenerator creates an empty MockGenerator. With no patterns and no
// GenerateFn configured, every call returns an error, which makes
// unconfigured prompts loud during test development.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{responses: make(map[string]string)}
}

// AddResponse registers a response returned for any prompt containing
// pattern. The empty pattern acts as the default response. When several
// patterns match, the longest one wins.
func (m *MockGenerator) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[pattern] = response
}

// Generate implements ports.TextGenerator. It honors context cancellation,
// records the request, and streams the final text to OnToken when set so
// streaming consumers are exercised too.
func (m *MockGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.GenerateResult{}, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn := m.GenerateFn
	response, ok := m.matchLocked(req.Prompt)
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	if !ok {
		return ports.GenerateResult{}, fmt.Errorf("mock generator: no response configured for prompt %.60q", req.Prompt)
	}

	if req.OnToken != nil {
		req.OnToken(response)
	}

	return ports.GenerateResult{
		Text:      response,
		TokensIn:  (len(req.Prompt) + 3) / 4,
		TokensOut: (len(response) + 3) / 4,
	}, nil
}

// matchLocked selects the longest matching pattern. Callers hold m.mu.
func (m *MockGenerator) matchLocked(prompt string) (string, bool) {
	bestLen := -1
	var best string
	for pattern, response := range m.responses {
		if pattern == "" || strings.Contains(prompt, pattern) {
			if len(pattern) > bestLen {
				bestLen = len(pattern)
				best = response
			}
		}
	}
	return best, bestLen >= 0
}

// Calls returns a copy of every request received so far, in order.
func (m *MockGenerator) Calls() []ports.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.GenerateRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of requests received so far.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// RankingResponse renders the JSON object the ranking system prompt asks
// for, using 1-indexed candidate numbers.
func RankingResponse(order ...int) string {
	parts := make([]string, len(order))
	for i, v := range order {
		parts[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf(`{"ranking": [%s]}`, strings.Join(parts, ", "))
}
