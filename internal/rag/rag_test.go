package rag

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/embedding"
	"github.com/hyperjump/ragdoc/internal/generation"
	"github.com/hyperjump/ragdoc/internal/indexer"
	"github.com/hyperjump/ragdoc/internal/metrics"
	"github.com/hyperjump/ragdoc/internal/storage"
	"github.com/hyperjump/ragdoc/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc       *Service
	embedder  *embedding.MockEmbedder
	generator *generation.MockGenerator
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, chunkSize, overlap int, embedder embedding.Embedder) *fixture {
	t.Helper()
	ctx := context.Background()
	mock, _ := embedder.(*embedding.MockEmbedder)
	if embedder == nil {
		mock = embedding.NewMockEmbedder(4)
		embedder = mock
	}
	collection, err := vector.NewCollection(ctx, "pdf_collection", vector.NewMemoryStore(vector.MetricCosine), embedder)
	require.NoError(t, err)
	ledger, err := storage.NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	chunker, err := indexer.NewChunker(chunkSize, overlap)
	require.NoError(t, err)

	gen := generation.NewMockGenerator("")
	m := metrics.New()
	svc := NewService(
		indexer.NewIndexer(collection, ledger, chunker),
		NewRetriever(embedder, collection),
		NewComposer(gen),
		WithMetrics(m),
	)
	return &fixture{svc: svc, embedder: mock, generator: gen, metrics: m}
}

type failingEmbedder struct{ *embedding.MockEmbedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("rate limited")
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("What is X?", []string{"first", "second"})
	want := "Based on the following context, answer the question.\n" +
		"Contexts:\n" +
		"first\n---\nsecond\n" +
		"\n" +
		"Question: What is X?\n" +
		"Answer:"
	assert.Equal(t, want, got)

	empty := BuildPrompt("Q", nil)
	assert.Equal(t, "Based on the following context, answer the question.\nContexts:\n\n\nQuestion: Q\nAnswer:", empty)
}

func TestAsk_endToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 11, 0, nil)

	f.embedder.SetVector("alpha beta", []float32{1, 0, 0, 0})
	f.embedder.SetVector("gamma delta", []float32{0, 1, 0, 0})
	f.embedder.SetVector("tell me about gamma", []float32{0.1, 0.9, 0, 0})

	res, err := f.svc.Ingest(ctx, IngestRequest{Text: "alpha beta gamma delta", Filename: "greek.pdf"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Chunks)

	ans, err := f.svc.Ask(ctx, "tell me about gamma")
	require.NoError(t, err)
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, 0, ans.Sources[0].Index)
	assert.Equal(t, 1, ans.Sources[1].Index)
	assert.Less(t, ans.Sources[0].Distance, ans.Sources[1].Distance)

	prompts := f.generator.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, BuildPrompt("tell me about gamma", []string{"gamma delta", "alpha beta"}), prompts[0])
	assert.Equal(t, prompts[0], ans.Answer)
}

func TestAsk_emptyQuestion(t *testing.T) {
	f := newFixture(t, 100, 10, nil)
	for _, q := range []string{"", "   \n"} {
		_, err := f.svc.Ask(context.Background(), q)
		assert.True(t, apperr.IsInvalidParameter(err), "question %q: %v", q, err)
	}
	assert.Empty(t, f.generator.Prompts())
	assert.Zero(t, f.embedder.Calls())
}

func TestAsk_emptyKnowledgeBaseStillGenerates(t *testing.T) {
	f := newFixture(t, 100, 10, nil)
	f.generator.Reply = "I don't know."

	ans, err := f.svc.Ask(context.Background(), "anything?")
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", ans.Answer)
	assert.Empty(t, ans.Sources)
	assert.Len(t, f.generator.Prompts(), 1)
}

func TestAsk_topKLimitsContexts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5, 0, nil)
	WithTopK(2)(f.svc)

	_, err := f.svc.Ingest(ctx, IngestRequest{Text: "aaaa bbbb cccc dddd"})
	require.NoError(t, err)
	ans, err := f.svc.Ask(ctx, "bbbb")
	require.NoError(t, err)
	assert.Len(t, ans.Sources, 2)
}

func TestAsk_generatorFailure(t *testing.T) {
	f := newFixture(t, 100, 10, nil)
	f.generator.Err = errors.New("model overloaded")

	_, err := f.svc.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, apperr.IsProvider(err))
}

func TestAsk_embeddingFailure(t *testing.T) {
	f := newFixture(t, 100, 10, failingEmbedder{embedding.NewMockEmbedder(4)})

	_, err := f.svc.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, apperr.IsProvider(err))
	assert.Empty(t, f.generator.Prompts())
}

func TestRetriever_rejectsNonPositiveTopK(t *testing.T) {
	f := newFixture(t, 100, 10, nil)
	_, err := f.svc.retriever.Retrieve(context.Background(), "q", 0)
	assert.True(t, apperr.IsInvalidParameter(err))
}

func TestIngestUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20, 5, nil)

	content := []byte("uploaded   text\x00 that is long enough to split")
	first, err := f.svc.IngestUpload(ctx, "notes.txt", content)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", first.Filename)
	assert.Greater(t, first.Chunks, 1)

	second, err := f.svc.IngestUpload(ctx, "notes.txt", content)
	require.NoError(t, err)
	assert.Equal(t, first.DocumentID, second.DocumentID)

	st, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(second.Chunks), st.Records)
	assert.Equal(t, int64(1), st.Documents)

	_, err = f.svc.IngestUpload(ctx, "tool.exe", []byte("x"))
	assert.Error(t, err)
}

func TestDeleteDocumentAndClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, 2, nil)

	_, err := f.svc.Ingest(ctx, IngestRequest{Text: "first document text", DocumentID: "a"})
	require.NoError(t, err)
	b, err := f.svc.Ingest(ctx, IngestRequest{Text: "second document text", DocumentID: "b"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDocument(ctx, "a"))
	st, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Documents)
	assert.Equal(t, int64(b.Chunks), st.Records)
	assert.Equal(t, st.Chunks, st.Records)

	assert.ErrorIs(t, f.svc.DeleteDocument(ctx, "a"), storage.ErrNotFound)

	require.NoError(t, f.svc.Clear(ctx))
	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Status{Collection: "pdf_collection"}, st)

	docs, err := f.svc.Documents(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)

	ans, err := f.svc.Ask(ctx, "first document text")
	require.NoError(t, err)
	assert.Empty(t, ans.Sources)
}

func TestServiceRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, 2, nil)
	_, err := f.svc.Ingest(ctx, IngestRequest{Text: "some words here"})
	require.NoError(t, err)
	_, _ = f.svc.Ask(ctx, "")

	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
		if mf.GetName() == "ragdoc_ingest_chunks_total" {
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
		if mf.GetName() == "ragdoc_operations_total" {
			assert.Len(t, mf.GetMetric(), 2)
		}
	}
	assert.True(t, found["ragdoc_operations_total"])
	assert.True(t, found["ragdoc_operation_duration_seconds"])
}

func TestOpen(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = "mock"
	cfg.Vector.Dimensions = 8
	cfg.Ledger.DatabasePath = filepath.Join(t.TempDir(), "data", "ragdoc.db")
	config.ApplyDefaults(cfg)
	cfg.Chunking.ChunkSize = 12
	cfg.Chunking.ChunkOverlap = 3

	ctx := context.Background()
	svc, err := Open(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer svc.Close()

	res, err := svc.Ingest(ctx, IngestRequest{Text: "open builds a working pipeline"})
	require.NoError(t, err)
	assert.Greater(t, res.Chunks, 1)

	ans, err := svc.Ask(ctx, "pipeline?")
	require.NoError(t, err)
	assert.Contains(t, ans.Answer, "Question: pipeline?")
	assert.Len(t, ans.Sources, res.Chunks)

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(res.Chunks), st.Chunks)
}

func TestOpen_badChunking(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = "mock"
	cfg.Ledger.DatabasePath = filepath.Join(t.TempDir(), "ragdoc.db")
	config.ApplyDefaults(cfg)
	cfg.Chunking.ChunkOverlap = cfg.Chunking.ChunkSize

	_, err := Open(context.Background(), cfg, nil, nil)
	assert.True(t, apperr.IsInvalidParameter(err))
}
