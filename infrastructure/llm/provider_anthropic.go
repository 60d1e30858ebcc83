package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ahrav/go-conclave/internal/ports"
)

// AnthropicDefaultModel is the model used when none is configured.
const AnthropicDefaultModel = "claude-sonnet-4-20250514"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreGenerator for Anthropic's Messages API.
type anthropicProvider struct {
	BaseProvider
	client          anthropic.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newAnthropicProvider(config ClientConfig) (CoreGenerator, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &anthropicProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          anthropic.NewClient(opts...),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoGenerate sends one Messages API request and returns the generated text
// with token usage.
func (p *anthropicProvider) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	message, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return ports.GenerateResult{}, p.handleError(err)
	}

	var responseText strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			responseText.WriteString(content.Text)
		}
	}

	text := responseText.String()
	if text == "" {
		return ports.GenerateResult{}, ErrEmptyResponse
	}

	return ports.GenerateResult{
		Text:      text,
		TokensIn:  p.tokenCounter.GetTokenCount(int(message.Usage.InputTokens), req.Prompt),
		TokensOut: p.tokenCounter.GetTokenCount(int(message.Usage.OutputTokens), text),
	}, nil
}

func (p *anthropicProvider) buildParams(req ports.GenerateRequest) anthropic.MessageNewParams {
	samplingParams := normalizeParams(req.Params)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.GetModel()),
		MaxTokens: int64(samplingParams.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	// Anthropic rejects temperatures above 1.0.
	if samplingParams.Temperature > 0 {
		params.Temperature = anthropic.Float(ClampFloat64(samplingParams.Temperature, 0, 1))
	}
	if samplingParams.TopP > 0 {
		params.TopP = anthropic.Float(samplingParams.TopP)
	}
	if samplingParams.TopK > 0 {
		params.TopK = anthropic.Int(int64(samplingParams.TopK))
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	return params
}

func (p *anthropicProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return p.errorClassifier.ClassifyHTTPError(anthropicErr.StatusCode, "", err)
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
