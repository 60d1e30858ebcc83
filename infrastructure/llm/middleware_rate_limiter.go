package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-conclave/internal/ports"
)

// rateLimitedGenerator enforces request pacing with a token bucket so the
// pipeline stays within provider rate limits.
type rateLimitedGenerator struct {
	next    CoreGenerator
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces a token bucket rate
// limit. The limit parameter sets sustained requests per second; burst
// allows temporary spikes above it. The limiter is shared by every client
// the middleware wraps.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next CoreGenerator) CoreGenerator {
		return &rateLimitedGenerator{
			next:    next,
			limiter: limiter,
		}
	}
}

// DoGenerate blocks until a rate token is available, then forwards the
// request.
func (r *rateLimitedGenerator) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ports.GenerateResult{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoGenerate(ctx, req)
}

// GetModel returns the model name from the wrapped implementation.
func (r *rateLimitedGenerator) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *rateLimitedGenerator) SetModel(m string) { r.next.SetModel(m) }
