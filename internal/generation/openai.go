package generation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAIGenerator. BaseURL targets compatible servers.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator generates text with the chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIGenerator creates a chat completions client.
func NewOpenAIGenerator(cfg OpenAIConfig, opts ...Option) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, apperr.InvalidParameter("openai api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: applyOptions(opts).logger,
	}, nil
}

// Generate sends prompt as a single user message.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, chatRequest(g.model, prompt))
	if err != nil {
		return "", apperr.NewProviderError(ProviderOpenAI, "generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.NewProviderError(ProviderOpenAI, "generate", errors.New("no choices in response"))
	}
	g.logger.Debug("openai answer generated",
		zap.String("model", g.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}

func chatRequest(model, prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
}

// Close is a no-op; the HTTP client is shared.
func (g *OpenAIGenerator) Close() error {
	return nil
}
