package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-conclave/internal/ports"
)

// MockCoreGenerator provides a configurable mock implementation of
// CoreGenerator for testing. It allows precise control over response
// behavior, timing, and error conditions to exercise the middleware chain.
type MockCoreGenerator struct {
	mu sync.Mutex

	// Response configuration.
	Result        ports.GenerateResult
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt makes the first N calls fail, then succeed.
	FailUntilAttempt int

	// Tracking.
	CallCount      int
	LastRequest    ports.GenerateRequest
	CallTimestamps []time.Time
}

// NewMockCoreGenerator creates a mock with default successful behavior.
func NewMockCoreGenerator() *MockCoreGenerator {
	return &MockCoreGenerator{
		Result: ports.GenerateResult{Text: "test response", TokensIn: 10, TokensOut: 20},
		Model:  "test-model",
	}
}

// DoGenerate implements CoreGenerator with configurable behavior.
func (m *MockCoreGenerator) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	m.mu.Lock()
	m.CallCount++
	callCount := m.CallCount
	m.LastRequest = req
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ports.GenerateResult{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUntilAttempt > 0 && callCount <= m.FailUntilAttempt {
		if m.Error != nil {
			return ports.GenerateResult{}, m.Error
		}
		return ports.GenerateResult{}, errors.New("simulated failure")
	}

	if m.Error != nil {
		return ports.GenerateResult{}, m.Error
	}

	return m.Result, nil
}

// GetModel returns the configured model name.
func (m *MockCoreGenerator) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreGenerator) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns the number of DoGenerate calls so far.
func (m *MockCoreGenerator) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// TimeBetweenCalls returns the duration between two recorded calls, or nil
// when either index is out of range.
func (m *MockCoreGenerator) TimeBetweenCalls(call1, call2 int) *time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call1 < 0 || call2 < 0 || call1 >= len(m.CallTimestamps) || call2 >= len(m.CallTimestamps) {
		return nil
	}

	duration := m.CallTimestamps[call2].Sub(m.CallTimestamps[call1])
	return &duration
}
