// Package llm provides text generation backends for the consensus pipeline
// with built-in support for rate limiting, retries, circuit breaking,
// metrics, and tracing.
//
// The package abstracts multiple providers (OpenAI, Anthropic, Google)
// behind the ports.TextGenerator interface while adding operational
// cross-cutting concerns through a middleware pattern. This allows the
// pipeline to switch providers or add resilience features without changing
// any deliberation code.
//
// Basic usage:
//
//	gen, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
//	result, err := gen.Generate(ctx, ports.GenerateRequest{Prompt: "Hello"})
//
// With middleware:
//
//	gen, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-sonnet-4-20250514",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(10, 20),
//	        llm.RetryMiddleware(3, time.Second, 30*time.Second),
//	        llm.CircuitBreakerMiddleware(5, 30*time.Second),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-conclave/internal/ports"
)

// CoreGenerator defines the minimal interface that provider backends must
// implement. It mirrors ports.TextGenerator closely enough that middleware
// can wrap any conforming implementation, while also exposing the model
// name for observability and dynamic switching.
type CoreGenerator interface {
	// DoGenerate sends one generation request to the provider and returns
	// the generated text with token usage.
	DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model used for subsequent requests.
	SetModel(model string)
}

// Middleware wraps a CoreGenerator to add cross-cutting functionality such
// as rate limiting, retries, circuit breaking, metrics, or tracing, without
// modifying provider logic.
type Middleware func(CoreGenerator) CoreGenerator

// ClientConfig holds all configuration for creating a generation client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies which model to use. Empty selects the provider's
	// default.
	Model string

	// BaseURL overrides the provider's default API endpoint. Leave empty
	// to use the default.
	BaseURL string

	// Timeout bounds individual requests. Zero means no client-side
	// timeout.
	Timeout time.Duration

	// Middleware is applied in the order given; the first entry becomes
	// the outermost wrapper.
	Middleware []Middleware
}

// Client adapts a middleware-wrapped CoreGenerator to ports.TextGenerator.
type Client struct {
	core CoreGenerator
}

var _ ports.TextGenerator = (*Client)(nil)

// NewClient creates a generation client for the named provider type,
// assembling the middleware chain around the provider backend.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return &Client{core: Wrap(core, config.Middleware...)}, nil
}

// Wrap applies middleware around a CoreGenerator so the first middleware is
// the outermost. It is exported for callers assembling custom backends.
func Wrap(core CoreGenerator, middleware ...Middleware) CoreGenerator {
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return core
}

// Generate implements ports.TextGenerator. Providers in this package do not
// stream; when the caller supplied an OnToken callback it receives the
// complete text once.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	result, err := c.core.DoGenerate(ctx, req)
	if err != nil {
		return ports.GenerateResult{}, err
	}

	if req.OnToken != nil {
		req.OnToken(result.Text)
	}
	return result, nil
}

// Model returns the active model name from the underlying provider.
func (c *Client) Model() string { return c.core.GetModel() }

// SetModel switches the underlying provider to a different model.
func (c *Client) SetModel(model string) { c.core.SetModel(model) }

// ProviderFactory creates a CoreGenerator from configuration. The factory
// registry creates provider instances without knowing their implementation.
type ProviderFactory func(ClientConfig) (CoreGenerator, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a custom provider factory under the
// given type name. Built-in providers register themselves at init time.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
