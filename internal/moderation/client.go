// Package moderation asks an LLM whether a message smuggles contact details
// past the pattern filter ("john at gmail dot com", spelled-out digits).
package moderation

import (
	"context"
	"fmt"
)

// Provider names a completion backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Question is a single-turn prompt: fixed instructions plus the message
// under review.
type Question struct {
	Model        string
	Instructions string
	Content      string
	MaxTokens    int
}

// Answer is the raw reply text and the model that produced it.
type Answer struct {
	Text  string
	Model string
}

// Backend sends one Question to a provider.
type Backend interface {
	Ask(ctx context.Context, q Question) (Answer, error)
	Provider() Provider
}

// BackendOption adjusts how a backend reaches its provider.
type BackendOption func(*backendOptions)

type backendOptions struct {
	baseURL string
}

// WithBaseURL points the backend at a proxy or a test server.
func WithBaseURL(url string) BackendOption {
	return func(o *backendOptions) { o.baseURL = url }
}

// NewBackend builds the backend for provider.
func NewBackend(provider Provider, apiKey string, opts ...BackendOption) (Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", provider)
	}

	var o backendOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch provider {
	case ProviderAnthropic:
		return newAnthropicBackend(apiKey, o), nil
	case ProviderOpenAI:
		return newOpenAIBackend(apiKey, o), nil
	default:
		return nil, fmt.Errorf("unknown moderation provider %q", provider)
	}
}
