package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-conclave/internal/ports"
)

func TestRateLimitMiddleware_PacesRequests(t *testing.T) {
	mock := NewMockCoreGenerator()

	// 20 requests per second with no burst headroom beyond the first.
	core := Wrap(mock, RateLimitMiddleware(rate.Limit(20), 1))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := core.DoGenerate(ctx, ports.GenerateRequest{Prompt: "hi"})
		require.NoError(t, err)
	}

	// Three of the four calls must wait for a token (50ms apart).
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
	assert.Equal(t, 4, mock.GetCallCount())
}

func TestRateLimitMiddleware_BurstAllowsSpike(t *testing.T) {
	mock := NewMockCoreGenerator()

	core := Wrap(mock, RateLimitMiddleware(rate.Limit(1), 5))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		_, err := core.DoGenerate(ctx, ports.GenerateRequest{Prompt: "hi"})
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimitMiddleware_CancellationWhileWaiting(t *testing.T) {
	mock := NewMockCoreGenerator()

	core := Wrap(mock, RateLimitMiddleware(rate.Limit(0.1), 1))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := core.DoGenerate(ctx, ports.GenerateRequest{Prompt: "first"})
	require.NoError(t, err)

	// The second call would wait 10 seconds for a token.
	_, err = core.DoGenerate(ctx, ports.GenerateRequest{Prompt: "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, mock.GetCallCount())
}
