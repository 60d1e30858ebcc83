package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/ports"
)

// newOpenAIStub serves canned chat completion responses and captures the
// request body for assertions.
func newOpenAIStub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func openAIClientFor(t *testing.T, serverURL string) CoreGenerator {
	t.Helper()
	core, err := newOpenAIProvider(ClientConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: serverURL,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return core
}

func TestOpenAIProvider_Generate(t *testing.T) {
	var captured openai.ChatCompletionRequest
	server := newOpenAIStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "generated text"}},
			},
			Usage: openai.Usage{PromptTokens: 15, CompletionTokens: 7},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	core := openAIClientFor(t, server.URL)

	result, err := core.DoGenerate(context.Background(), ports.GenerateRequest{
		Prompt: "summarize these views",
		System: "you are a mediator",
		Params: ports.SamplingParams{Temperature: 0.7, MaxTokens: 256},
	})
	require.NoError(t, err)

	assert.Equal(t, "generated text", result.Text)
	assert.Equal(t, 15, result.TokensIn)
	assert.Equal(t, 7, result.TokensOut)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "you are a mediator", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, 256, captured.MaxTokens)
	assert.InDelta(t, 0.7, captured.Temperature, 0.001)
}

func TestOpenAIProvider_NoSystemPromptSendsSingleMessage(t *testing.T) {
	var captured openai.ChatCompletionRequest
	server := newOpenAIStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "ok"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	core := openAIClientFor(t, server.URL)

	_, err := core.DoGenerate(context.Background(), ports.GenerateRequest{Prompt: "just a prompt"})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestOpenAIProvider_EstimatesTokensWhenUsageMissing(t *testing.T) {
	server := newOpenAIStub(t, func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "twelve chars"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	core := openAIClientFor(t, server.URL)

	result, err := core.DoGenerate(context.Background(), ports.GenerateRequest{Prompt: "12345678"})
	require.NoError(t, err)

	// Four characters per token.
	assert.Equal(t, 2, result.TokensIn)
	assert.Equal(t, 3, result.TokensOut)
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	server := newOpenAIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(openai.ChatCompletionResponse{}))
	})

	core := openAIClientFor(t, server.URL)

	_, err := core.DoGenerate(context.Background(), ports.GenerateRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNoResponseChoice)
}

func TestOpenAIProvider_ClassifiesAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantType   ErrorType
		sentinel   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrorTypeAuthentication, ports.ErrAuthenticationFailed},
		{"rate limited", http.StatusTooManyRequests, ErrorTypeRateLimit, ports.ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrorTypeServerError, ports.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newOpenAIStub(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "test"}}`))
			})

			core := openAIClientFor(t, server.URL)

			_, err := core.DoGenerate(context.Background(), ports.GenerateRequest{Prompt: "hi"})
			require.Error(t, err)

			var provErr *ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, tt.wantType, provErr.Type)
			assert.Equal(t, tt.statusCode, provErr.StatusCode)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestOpenAIProvider_ContextCancellation(t *testing.T) {
	server := newOpenAIStub(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can detect the
		// client disconnect and cancel the request context; otherwise the
		// handler blocks forever and Cleanup deadlocks in server.Close.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	core := openAIClientFor(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := core.DoGenerate(ctx, ports.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ErrorTypeTimeout, provErr.Type)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenAIProvider_RejectsInvalidBaseURL(t *testing.T) {
	_, err := newOpenAIProvider(ClientConfig{APIKey: "test-key", BaseURL: "not a url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid BaseURL")
}
