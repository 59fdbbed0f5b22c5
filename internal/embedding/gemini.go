package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/pkg/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini embedding model used when none is configured.
const DefaultGeminiModel = "gemini-embedding-001"

// GeminiConfig configures a GeminiEmbedder.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
}

// GeminiEmbedder embeds text with the Gemini API.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	batchSize  int
	logger     *zap.Logger
}

// NewGeminiEmbedder creates a Gemini client for the configured model.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig, opts ...Option) (*GeminiEmbedder, error) {
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
	o := applyOptions(opts)
	e := &GeminiEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		logger:     o.logger,
	}
	if e.model == "" {
		e.model = DefaultGeminiModel
	}
	return e, nil
}

// Embed returns the embedding of a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, e, text)
}

// EmbedBatch embeds texts in requests of at most BatchSize texts.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return embedInBatches(ctx, ProviderGemini, texts, e.batchSize, e.request)
}

func (e *GeminiEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, e.embedConfig())
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty response")
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("missing embedding at position %d", i)
		}
		out[i] = emb.Values
		if e.dimensions > 0 {
			// Truncated outputs are not unit length.
			utils.NormalizeL2(out[i])
		}
	}
	e.logger.Debug("gemini embeddings", zap.String("model", e.model), zap.Int("texts", len(texts)))
	return out, nil
}

func (e *GeminiEmbedder) embedConfig() *genai.EmbedContentConfig {
	cfg := &genai.EmbedContentConfig{}
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		cfg.OutputDimensionality = &dims
	}
	return cfg
}

// Dimensions returns the configured output dimensionality.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases nothing; the Gemini client holds no open connections.
func (e *GeminiEmbedder) Close() error {
	return nil
}
