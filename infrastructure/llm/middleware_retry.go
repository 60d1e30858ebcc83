package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-conclave/internal/ports"
)

// retryGenerator implements automatic retry with exponential backoff for
// transient provider failures.
type retryGenerator struct {
	next       CoreGenerator
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware creates middleware that retries failed requests with
// exponential backoff and jitter. Only retryable failures (rate limits,
// server errors, timeouts) are retried; authentication and bad-request
// errors surface immediately, as do open-circuit and exhausted-budget
// rejections and cancellation.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreGenerator) CoreGenerator {
		return &retryGenerator{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// DoGenerate executes the request with retry logic.
func (r *retryGenerator) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		result, err := r.next.DoGenerate(ctx, req)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrBudgetExceeded) || ctx.Err() != nil || !isRetryableError(err) {
			break
		}

		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ports.GenerateResult{}, ctx.Err()
		case <-time.After(r.calculateDelay(attempt)):
		}
	}

	return ports.GenerateResult{}, fmt.Errorf("request failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

// isRetryableError reports whether the error represents a transient failure
// worth retrying. Unclassified errors are treated as retryable.
func isRetryableError(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}
	return true
}

func (r *retryGenerator) calculateDelay(attempt int) time.Duration {
	attempt = ClampInt(attempt, 0, 30)
	multiplier := 1 << uint(attempt)
	delay := time.Duration(float64(r.baseDelay) * float64(multiplier))

	// Jitter of roughly ±25% spreads out synchronized retries.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - (delay / 4)

	if delay > r.maxDelay {
		delay = r.maxDelay
	}

	return delay
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryGenerator) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *retryGenerator) SetModel(m string) { r.next.SetModel(m) }
