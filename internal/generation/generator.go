// Package generation provides answer generation providers.
package generation

import (
	"context"

	"go.uber.org/zap"
)

// Generator turns a prompt into text with one provider call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Option configures generators.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}
