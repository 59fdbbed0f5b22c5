package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/hyperjump/ragdoc/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and local runs. It
// returns a fixed-dimension vector derived from the text hash so that the same
// text always gets the same embedding. Specific texts can be pinned to a
// vector with SetVector.
type MockEmbedder struct {
	dimensions int

	mu     sync.RWMutex
	pinned map[string][]float32
	calls  int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &MockEmbedder{dimensions: dimensions, pinned: make(map[string][]float32)}
}

// SetVector makes Embed return vec for text.
func (e *MockEmbedder) SetVector(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[text] = vec
}

// Calls returns how many Embed/EmbedBatch requests were served.
func (e *MockEmbedder) Calls() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calls
}

// Embed returns the pinned vector for text, or one derived from its hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.vector(text), nil
}

// EmbedBatch embeds each text in order as a single request.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.vector(text)
	}
	return embeddings, nil
}

func (e *MockEmbedder) vector(text string) []float32 {
	e.mu.RLock()
	vec, ok := e.pinned[text]
	e.mu.RUnlock()
	if ok {
		return append([]float32(nil), vec...)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := float64(h.Sum64() % 1_000_003)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(seed*float64(i+1))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
