package llm

import (
	"context"
	"time"

	"github.com/ahrav/go-conclave/internal/ports"
)

// timeoutGenerator bounds each request with a deadline so generation calls
// cannot hang indefinitely.
type timeoutGenerator struct {
	next    CoreGenerator
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces a per-request timeout.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreGenerator) CoreGenerator {
		return &timeoutGenerator{
			next:    next,
			timeout: timeout,
		}
	}
}

// DoGenerate executes the request under a timeout context.
func (t *timeoutGenerator) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoGenerate(ctx, req)
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutGenerator) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *timeoutGenerator) SetModel(m string) { t.next.SetModel(m) }
