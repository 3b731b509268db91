package llm

import (
	"fmt"
	"log/slog"
	"time"
)

// Provider names accepted by NewLLMClient.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	// Mock forces the mock client regardless of Provider.
	Mock   bool
	Logger *slog.Logger
}

// NewLLMClient creates an LLM client for the configured provider.
func NewLLMClient(opts Options) (LLMClient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Mock || opts.Provider == ProviderMock {
		logger.Info("using mock LLM client")
		return NewMockClient(), nil
	}

	switch opts.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(opts.BaseURL, opts.APIKey, opts.Timeout), nil
	case ProviderAnthropic:
		return NewAnthropicClient(opts.BaseURL, opts.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
