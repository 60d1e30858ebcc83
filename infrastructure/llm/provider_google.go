package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-conclave/internal/ports"
)

// GoogleDefaultModel is the model used when none is configured.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreGenerator for Google's Gemini API.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreGenerator, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	authConfig, err := buildAuthConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	client, err := genai.NewClient(context.Background(), authConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoGenerate sends one generateContent request and returns the generated
// text with token usage.
func (p *googleProvider) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	contents := p.buildContents(req)
	config := p.buildGenerationConfig(req)

	resp, err := p.client.Models.GenerateContent(ctx, p.GetModel(), contents, config)
	if err != nil {
		return ports.GenerateResult{}, p.handleError(err)
	}

	text := resp.Text()
	if text == "" {
		return ports.GenerateResult{}, ErrEmptyResponse
	}

	return ports.GenerateResult{
		Text:      text,
		TokensIn:  p.promptTokens(resp.UsageMetadata, req.Prompt),
		TokensOut: p.completionTokens(resp.UsageMetadata, text),
	}, nil
}

func (p *googleProvider) promptTokens(usage *genai.GenerateContentResponseUsageMetadata, prompt string) int {
	if usage != nil && usage.PromptTokenCount > 0 {
		return int(usage.PromptTokenCount)
	}
	return p.tokenCounter.EstimateTokens(prompt)
}

func (p *googleProvider) completionTokens(usage *genai.GenerateContentResponseUsageMetadata, text string) int {
	if usage != nil && usage.CandidatesTokenCount > 0 {
		return int(usage.CandidatesTokenCount)
	}
	return p.tokenCounter.EstimateTokens(text)
}

// buildContents assembles the request content. Gemini has no separate
// system role on this path, so a system prompt is prepended to the user
// prompt in a structured form.
func (p *googleProvider) buildContents(req ports.GenerateRequest) []*genai.Content {
	finalPrompt := req.Prompt
	if req.System != "" {
		finalPrompt = fmt.Sprintf("System: %s\n\nUser: %s", req.System, req.Prompt)
	}

	return []*genai.Content{
		genai.NewContentFromText(finalPrompt, genai.RoleUser),
	}
}

func (p *googleProvider) buildGenerationConfig(req ports.GenerateRequest) *genai.GenerateContentConfig {
	params := normalizeParams(req.Params)
	config := &genai.GenerateContentConfig{}

	if params.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(params.Temperature))
	}
	if params.TopP > 0 {
		config.TopP = genai.Ptr(float32(params.TopP))
	}
	if params.TopK > 0 {
		// Gemini supports top-K values between 1 and 40.
		config.TopK = genai.Ptr(float32(ClampInt(params.TopK, 1, 40)))
	}
	if params.MaxTokens > 0 {
		config.MaxOutputTokens = int32(params.MaxTokens)
	}

	return config
}

// handleError classifies Google API errors, with special handling for
// content policy blocks so callers get a clear, non-retryable failure.
func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if containsContentPolicyError(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}

		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

// buildAuthConfig creates the client config for API key authentication. A
// value that looks like a credentials file path is rejected with guidance;
// service accounts go through GOOGLE_APPLICATION_CREDENTIALS instead.
func buildAuthConfig(config ClientConfig) (*genai.ClientConfig, error) {
	if looksLikeFilePath(config.APIKey) {
		if !fileExists(config.APIKey) {
			return nil, fmt.Errorf("credentials file not found: %s", config.APIKey)
		}
		return nil, fmt.Errorf("service account authentication requires additional configuration. " +
			"Please use API key authentication or set GOOGLE_APPLICATION_CREDENTIALS environment variable")
	}

	return &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}, nil
}

// looksLikeFilePath checks whether a string appears to be a file path
// rather than an API key.
func looksLikeFilePath(s string) bool {
	if filepath.IsAbs(s) {
		return true
	}

	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	lower := strings.ToLower(s)
	return strings.HasSuffix(lower, ".json") ||
		strings.HasSuffix(lower, ".p12") ||
		strings.HasSuffix(lower, ".pem") ||
		strings.Contains(lower, "credentials")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// containsContentPolicyError checks whether a Google API error is a content
// policy violation.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	if apiErr.Message != "" {
		lower := strings.ToLower(apiErr.Message)
		if strings.Contains(lower, "safety") ||
			strings.Contains(lower, "policy") ||
			strings.Contains(lower, "blocked") {
			return true
		}
	}

	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}

	return false
}
