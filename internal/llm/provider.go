package llm

import (
	"context"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
)

// Provider defines the interface for extraction backends. Callers send a
// prompt and parse structured JSON out of the raw completion text; a backend
// wrapping its JSON in prose is the caller's problem, not the provider's.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a prompt and returns the raw completion text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is the input for one backend call
type CompletionRequest struct {
	// System primes the model's role (e.g., "You are an event data extractor").
	System string

	// Prompt is the task text, including any content to extract from.
	Prompt string

	// Model overrides the configured model for this call.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int
}

// CompletionResponse is the backend's reply
type CompletionResponse struct {
	// Text is the raw completion, possibly JSON wrapped in prose.
	Text string

	// Model is the model that generated the response.
	Model string

	// TokensUsed tracks token consumption.
	TokensUsed int
}

// Config holds backend configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI or Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible proxies)
	BaseURL string

	// Timeout per API request, seconds. A stuck call must not hang a batch.
	Timeout int

	// MaxTokens for response generation
	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Model:     "",
		Timeout:   30,
		MaxTokens: 2000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.Model,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		Timeout:   mc.Timeout,
		MaxTokens: mc.MaxTokens,
	}
}
