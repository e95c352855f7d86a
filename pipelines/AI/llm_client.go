package AI

import (
	"context"
	"fmt"
)

// LLMProvider represents different LLM providers
type LLMProvider string

const (
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderMock      LLMProvider = "mock"
)

// LLMMessage represents a single message in a conversation
type LLMMessage struct {
	Role    string `json:"role"`    // system, user, assistant
	Content string `json:"content"` // message content
}

// LLMRequest represents a request to an LLM
type LLMRequest struct {
	Messages    []LLMMessage   `json:"messages"`
	Model       string         `json:"model,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	SystemMsg   string         `json:"system,omitempty"` // System message (some providers handle separately)
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// LLMResponse represents a response from an LLM
type LLMResponse struct {
	Content      string         `json:"content"`
	FinishReason string         `json:"finish_reason,omitempty"` // stop, length
	Usage        *LLMUsage      `json:"usage,omitempty"`
	Model        string         `json:"model,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// LLMUsage tracks token usage
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMClient is the interface that all LLM providers must implement
type LLMClient interface {
	// Complete sends a completion request to the LLM
	Complete(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// CompleteSimple is a convenience method for simple text completion
	CompleteSimple(ctx context.Context, prompt string) (string, error)

	// GetProvider returns the provider type
	GetProvider() LLMProvider

	// GetDefaultModel returns the default model for this provider
	GetDefaultModel() string

	// ValidateConfig validates the client configuration
	ValidateConfig() error
}

// LLMClientConfig holds configuration for creating LLM clients
type LLMClientConfig struct {
	Provider    LLMProvider    `json:"provider"`
	APIKey      string         `json:"api_key,omitempty"`
	BaseURL     string         `json:"base_url,omitempty"`    // For custom endpoints
	Model       string         `json:"model,omitempty"`       // Default model
	Temperature float64        `json:"temperature,omitempty"` // Default temperature
	MaxTokens   int            `json:"max_tokens,omitempty"`  // Default max tokens
	Timeout     int            `json:"timeout,omitempty"`     // Request timeout in seconds
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewLLMClient creates a new LLM client based on the provider
func NewLLMClient(config LLMClientConfig) (LLMClient, error) {
	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config)
	case ProviderAnthropic:
		return NewAnthropicClient(config)
	case ProviderMock:
		return NewMockClient(config), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
