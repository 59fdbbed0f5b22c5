package generation

import (
	"context"
	"fmt"

	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/retry"
)

// NewFromConfig builds the configured generator, wrapped with the retry
// policy when it allows more than one attempt.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (Generator, error) {
	var g Generator
	switch cfg.Generation.Provider {
	case ProviderGemini, "":
		gg, err := NewGeminiGenerator(ctx, GeminiConfig{
			APIKey:  cfg.Providers.GeminiAPIKey,
			Model:   cfg.Generation.Model,
			Timeout: cfg.Providers.Timeout,
		}, opts...)
		if err != nil {
			return nil, err
		}
		g = gg
	case ProviderOpenAI:
		og, err := NewOpenAIGenerator(OpenAIConfig{
			APIKey:  cfg.Providers.OpenAIAPIKey,
			BaseURL: cfg.Providers.OpenAIBaseURL,
			Model:   cfg.Generation.Model,
			Timeout: cfg.Providers.Timeout,
		}, opts...)
		if err != nil {
			return nil, err
		}
		g = og
	case ProviderMock:
		g = NewMockGenerator("")
	default:
		return nil, fmt.Errorf("unknown generation provider: %s (supported: gemini, openai, mock)", cfg.Generation.Provider)
	}
	if policy := retry.FromConfig(cfg.Providers.Retry); policy.Enabled() {
		g = NewRetryingGenerator(g, policy, opts...)
	}
	return g, nil
}
