package generation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures a GeminiGenerator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiGenerator generates text with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiGenerator creates a Gemini client for the configured model.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig, opts ...Option) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, apperr.InvalidParameter("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, apperr.NewProviderError(ProviderGemini, "connect", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{client: client, model: model, logger: applyOptions(opts).logger}, nil
}

// Generate sends prompt as a single user turn and returns the response text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", apperr.NewProviderError(ProviderGemini, "generate", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", apperr.NewProviderError(ProviderGemini, "generate", errors.New("no candidates in response"))
	}
	text := resp.Text()
	g.logger.Debug("gemini answer generated", zap.String("model", g.model), zap.Int("length", len(text)))
	return text, nil
}

// Close releases nothing; the Gemini client holds no open connections.
func (g *GeminiGenerator) Close() error {
	return nil
}
