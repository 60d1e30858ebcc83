package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Registry manages generation clients across multiple providers with shared
// default settings. Clients are created lazily per provider/model pair and
// cached for reuse; each client carries its own middleware chain.
type Registry struct {
	// providers maps provider names to their configuration.
	providers map[string]ProviderConfig
	// clients caches created clients keyed by "provider/model".
	clients map[string]*Client
	// defaultProvider is used when a spec names no provider.
	defaultProvider string
	// defaultMiddleware is applied to every created client, before any
	// provider-specific middleware.
	defaultMiddleware []Middleware
	// defaultTimeout is the request timeout for created clients.
	defaultTimeout time.Duration

	mu sync.RWMutex
}

// ProviderConfig holds provider-specific configuration, overriding registry
// defaults for one provider.
type ProviderConfig struct {
	// Type selects the provider implementation (openai, anthropic, google).
	Type string
	// EnvVar names the environment variable holding the API key.
	EnvVar string
	// DefaultModel is used when a spec names no model.
	DefaultModel string
	// BaseURL overrides the provider's default API endpoint.
	BaseURL string
	// Middleware is provider-specific middleware, applied inside the
	// registry defaults.
	Middleware []Middleware
}

// RegistryConfig defines the registry's defaults.
type RegistryConfig struct {
	// Providers defines the available providers and their configurations.
	Providers map[string]ProviderConfig
	// DefaultProvider is used when no provider is specified.
	DefaultProvider string
	// DefaultTimeout bounds requests from all created clients.
	DefaultTimeout time.Duration
	// DefaultMiddleware is applied to all created clients.
	DefaultMiddleware []Middleware
}

// DefaultProviders provides standard configurations for the built-in
// providers. Applications can use this as a starting point and override
// specific settings.
var DefaultProviders = map[string]ProviderConfig{
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: OpenAIDefaultModel,
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: GoogleDefaultModel,
	},
}

// NewRegistry creates a provider registry. The default provider must be
// present in the providers map.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}

	if _, exists := config.Providers[config.DefaultProvider]; !exists {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", config.DefaultProvider)
	}

	return &Registry{
		providers:         config.Providers,
		clients:           make(map[string]*Client),
		defaultProvider:   config.DefaultProvider,
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
	}, nil
}

// GetDefaultClient returns a client for the default provider with its
// default model.
func (r *Registry) GetDefaultClient() (*Client, error) {
	providerConfig, exists := r.providers[r.defaultProvider]
	if !exists {
		return nil, fmt.Errorf("default provider %q not found in configuration", r.defaultProvider)
	}

	return r.GetClient(r.defaultProvider + "/" + providerConfig.DefaultModel)
}

// GetClient retrieves a client by specification string. Two formats are
// supported: "provider" (using the provider's default model) and
// "provider/model". Clients are created on first request and cached.
func (r *Registry) GetClient(spec string) (*Client, error) {
	if spec == "" {
		return nil, fmt.Errorf("provider specification cannot be empty; use GetDefaultClient for the default provider")
	}

	provider, model := r.parseSpec(spec)
	key := r.buildCacheKey(provider, model)

	r.mu.RLock()
	if client, exists := r.clients[key]; exists {
		r.mu.RUnlock()
		return client, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[key]; exists {
		return client, nil
	}

	client, err := r.createClient(provider, model)
	if err != nil {
		return nil, err
	}

	r.clients[key] = client
	return client, nil
}

// RegisterClient registers a client under the given name with explicit
// configuration, inheriting registry defaults for timeout and middleware.
func (r *Registry) RegisterClient(name string, config ClientConfig) error {
	if name == "" {
		return fmt.Errorf("client name cannot be empty")
	}

	provider, model := r.parseSpec(name)
	if model == "" {
		model = config.Model
	}
	if config.Model == "" {
		config.Model = model
	}

	providerConfig, exists := r.providers[provider]
	if !exists {
		return fmt.Errorf("unknown provider %q", provider)
	}

	if config.Timeout == 0 {
		config.Timeout = r.defaultTimeout
	}
	config.Middleware = append(append([]Middleware{}, r.defaultMiddleware...), config.Middleware...)

	client, err := NewClient(providerConfig.Type, config)
	if err != nil {
		return fmt.Errorf("failed to create client %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[r.buildCacheKey(provider, model)] = client
	return nil
}

// parseSpec splits a "provider" or "provider/model" specification, filling
// in the provider's default model when none is given.
func (r *Registry) parseSpec(spec string) (provider, model string) {
	parts := strings.SplitN(spec, "/", 2)
	provider = parts[0]

	if len(parts) > 1 {
		model = parts[1]
	} else if providerConfig, ok := r.providers[provider]; ok {
		model = providerConfig.DefaultModel
	}

	return
}

func (r *Registry) buildCacheKey(provider, model string) string {
	if model == "" {
		return provider
	}
	return provider + "/" + model
}

// createClient builds a client for the given provider and model, reading
// the API key from the provider's environment variable. Callers hold r.mu.
func (r *Registry) createClient(provider, model string) (*Client, error) {
	providerConfig, exists := r.providers[provider]
	if !exists {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	apiKey := os.Getenv(providerConfig.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", providerConfig.EnvVar, provider)
	}

	config := ClientConfig{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: providerConfig.BaseURL,
		Timeout: r.defaultTimeout,
	}
	config.Middleware = append([]Middleware{}, r.defaultMiddleware...)
	config.Middleware = append(config.Middleware, providerConfig.Middleware...)

	return NewClient(providerConfig.Type, config)
}

// AvailableProviders returns the provider names whose API key environment
// variables are set.
func (r *Registry) AvailableProviders() []string {
	available := make([]string, 0, len(r.providers))
	for name, cfg := range r.providers {
		if os.Getenv(cfg.EnvVar) != "" {
			available = append(available, name)
		}
	}
	return available
}
