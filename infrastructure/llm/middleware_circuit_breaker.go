package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-conclave/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a request
// without calling the downstream provider.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

const (
	// StateClosed allows all requests to pass through normally.
	StateClosed CircuitBreakerState = iota

	// StateOpen rejects all requests immediately. The circuit enters this
	// state after too many consecutive failures.
	StateOpen

	// StateHalfOpen allows a probe request to test provider recovery after
	// the cooldown period expires.
	StateHalfOpen
)

// CircuitBreakerMetrics enables observability of circuit breaker behavior:
// state changes, trips, and request outcomes.
type CircuitBreakerMetrics interface {
	// RecordState updates the current circuit breaker state metric.
	RecordState(state CircuitBreakerState)

	// RecordTrip increments the circuit breaker trip counter.
	RecordTrip()

	// RecordSuccess increments the successful request counter.
	RecordSuccess()

	// RecordFailure increments the failed request counter.
	RecordFailure()
}

// CircuitBreaker tracks consecutive failures and opens when they exceed the
// threshold, then tests recovery through a half-open probe.
type CircuitBreaker struct {
	mu               sync.RWMutex
	state            CircuitBreakerState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	lastFailure      time.Time
}

// NewCircuitBreaker creates a circuit breaker that opens after maxFailures
// consecutive errors and stays open for cooldownDuration before probing.
func NewCircuitBreaker(maxFailures int, cooldownDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		maxFailures:      maxFailures,
		cooldownDuration: cooldownDuration,
	}
}

// Call executes fn through the circuit breaker. When the circuit is open it
// returns ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.cooldownDuration {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		fallthrough
	case StateHalfOpen:
		err := fn()
		if err != nil {
			cb.failureCount++
			cb.lastFailure = time.Now()
			cb.state = StateOpen
			return err
		}
		cb.failureCount = 0
		cb.state = StateClosed
		return nil
	case StateClosed:
		err := fn()
		if err != nil {
			cb.failureCount++
			cb.lastFailure = time.Now()
			if cb.failureCount >= cb.maxFailures {
				cb.state = StateOpen
			}
			return err
		}
		cb.failureCount = 0
		return nil
	}
	return nil
}

// GetState returns the current circuit breaker state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// circuitBreakedGenerator fails fast when the provider is unhealthy so the
// pipeline does not pile requests onto a failing backend.
type circuitBreakedGenerator struct {
	next    CoreGenerator
	cb      *CircuitBreaker
	metrics CircuitBreakerMetrics
}

// CircuitBreakerMiddleware creates circuit breaker middleware. The circuit
// opens after maxFailures consecutive errors and stays open for the
// cooldown duration before attempting recovery.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics creates circuit breaker middleware
// with metrics support. metrics may be nil.
func CircuitBreakerMiddlewareWithMetrics(maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)

	return func(next CoreGenerator) CoreGenerator {
		return &circuitBreakedGenerator{
			next:    next,
			cb:      cb,
			metrics: metrics,
		}
	}
}

// DoGenerate executes the request through the circuit breaker.
func (c *circuitBreakedGenerator) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	var result ports.GenerateResult

	err := c.cb.Call(func() error {
		var err error
		result, err = c.next.DoGenerate(ctx, req)
		return err
	})

	if c.metrics != nil {
		switch {
		case err == nil:
			c.metrics.RecordSuccess()
		case errors.Is(err, ErrCircuitOpen):
			c.metrics.RecordTrip()
		default:
			c.metrics.RecordFailure()
		}
		c.metrics.RecordState(c.cb.GetState())
	}

	return result, err
}

// GetModel returns the model name from the wrapped implementation.
func (c *circuitBreakedGenerator) GetModel() string { return c.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (c *circuitBreakedGenerator) SetModel(m string) { c.next.SetModel(m) }
