package llm

import (
	"context"
	"fmt"
)

// Default generation settings.
const (
	DefaultMaxTokens = 8192
)

// Request is a single prompt sent to a model.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Provider sends one prompt to an upstream model and returns its raw text.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
	Model() string
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

func (f ProviderFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func (f ProviderFunc) Name() string  { return "func" }
func (f ProviderFunc) Model() string { return "func" }

// Options configures a provider constructed by New.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
}

// New creates a provider by name.
func New(provider string, opts Options) (Provider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", provider)
	}
	switch provider {
	case "anthropic", "claude":
		return NewAnthropic(opts), nil
	case "gemini", "google":
		return NewGemini(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

func maxTokens(n int) int {
	if n <= 0 {
		return DefaultMaxTokens
	}
	return n
}
