package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/ragdoc/internal/fileid"
	"github.com/hyperjump/ragdoc/internal/indexer"
	"github.com/hyperjump/ragdoc/internal/metrics"
	"github.com/hyperjump/ragdoc/internal/models"
	"go.uber.org/zap"
)

// DefaultTopK is the number of contexts retrieved per question.
const DefaultTopK = 4

// IngestRequest is raw text to add to the knowledge base.
type IngestRequest struct {
	Text       string
	Filename   string
	Source     string
	UploadedAt time.Time
	Metadata   models.Metadata
	// DocumentID replaces an earlier ingest with the same id. Empty creates a new document.
	DocumentID string
}

// Status summarizes the knowledge base.
type Status struct {
	Collection string `json:"collection"`
	Records    int64  `json:"records"`
	Documents  int64  `json:"documents"`
	Chunks     int64  `json:"chunks"`
}

// Service is the boundary used by the HTTP server and the CLI.
type Service struct {
	indexer   *indexer.Indexer
	retriever *Retriever
	composer  *Composer
	metrics   *metrics.Metrics
	topK      int
	logger    *zap.Logger
	closers   []func() error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records operation counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTopK overrides DefaultTopK.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// NewService wires the pipeline parts together.
func NewService(idx *indexer.Indexer, retriever *Retriever, composer *Composer, opts ...Option) *Service {
	s := &Service{
		indexer:   idx,
		retriever: retriever,
		composer:  composer,
		topK:      DefaultTopK,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Indexer returns the indexer used for ingestion.
func (s *Service) Indexer() *indexer.Indexer { return s.indexer }

// Metrics returns the metrics sink, or nil.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Ingest segments req.Text with the configured chunk size and overlap and
// writes the chunks to the collection.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (res *models.IngestResult, err error) {
	defer s.observe(metrics.OpIngest, time.Now(), &err)
	res, err = s.indexer.IndexDocument(ctx, &indexer.DocumentInput{
		ID:         req.DocumentID,
		Text:       req.Text,
		Filename:   req.Filename,
		Source:     req.Source,
		UploadedAt: req.UploadedAt,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	s.ingested(res)
	return res, nil
}

// IngestUpload extracts an uploaded file by its extension and ingests it under
// a content-derived document id, so the same upload twice replaces itself.
func (s *Service) IngestUpload(ctx context.Context, filename string, content []byte) (res *models.IngestResult, err error) {
	defer s.observe(metrics.OpIngest, time.Now(), &err)
	res, err = s.indexer.IndexBytes(ctx, content, strings.ToLower(filepath.Ext(filename)), &indexer.DocumentInput{
		ID:         fileid.FromContent(content),
		Filename:   filename,
		Source:     indexer.SourceUpload,
		UploadedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.ingested(res)
	return res, nil
}

// IngestFile ingests a file on disk under its path-derived document id.
func (s *Service) IngestFile(ctx context.Context, path string) (res *models.IngestResult, err error) {
	defer s.observe(metrics.OpIngest, time.Now(), &err)
	res, err = s.indexer.IndexFile(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if !res.Skipped {
		s.ingested(res)
	}
	return res, nil
}

func (s *Service) ingested(res *models.IngestResult) {
	s.metrics.AddIngestedChunks(res.Chunks)
	s.logger.Info("document ingested",
		zap.String("document_id", res.DocumentID),
		zap.String("filename", res.Filename),
		zap.Int("chunks", res.Chunks),
	)
}

// Ask retrieves the top-K chunks for question and composes an answer from
// their texts. The generator is called even when nothing was retrieved.
func (s *Service) Ask(ctx context.Context, question string) (ans *models.Answer, err error) {
	defer s.observe(metrics.OpAsk, time.Now(), &err)
	req := &models.AskRequest{Question: question}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	results, err := s.retriever.Retrieve(ctx, req.Question, s.topK)
	if err != nil {
		return nil, err
	}
	contexts := make([]string, len(results))
	sources := make([]models.Source, len(results))
	for i, r := range results {
		contexts[i] = r.Text
		sources[i] = models.Source{Index: i, Distance: r.Distance}
	}

	text, err := s.composer.Compose(ctx, req.Question, contexts)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("question answered", zap.Int("contexts", len(contexts)))
	return &models.Answer{Answer: text, Sources: sources}, nil
}

// Clear empties the collection and the document ledger.
func (s *Service) Clear(ctx context.Context) (err error) {
	defer s.observe(metrics.OpClear, time.Now(), &err)
	if err := s.indexer.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("knowledge base cleared")
	return nil
}

// DeleteDocument removes one document's chunks and its ledger entry.
func (s *Service) DeleteDocument(ctx context.Context, id string) (err error) {
	defer s.observe(metrics.OpDelete, time.Now(), &err)
	if err := s.indexer.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.logger.Info("document deleted", zap.String("document_id", id))
	return nil
}

// DeleteFile removes the document ingested from path, if any.
func (s *Service) DeleteFile(ctx context.Context, path string) (err error) {
	defer s.observe(metrics.OpDelete, time.Now(), &err)
	return s.indexer.DeleteFile(ctx, path)
}

// Document returns one ingested document with its chunk ids.
func (s *Service) Document(ctx context.Context, id string) (*models.Document, error) {
	return s.indexer.Document(ctx, id)
}

// Documents lists ingested documents, newest first. limit <= 0 returns all.
func (s *Service) Documents(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	return s.indexer.Documents(ctx, offset, limit)
}

// Status reports collection and ledger sizes.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	collection := s.indexer.Collection()
	records, err := collection.Count(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Collection: collection.Name(), Records: records}
	if ledger := s.indexer.Ledger(); ledger != nil {
		if st.Documents, err = ledger.CountDocuments(ctx); err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}
		if st.Chunks, err = ledger.CountChunks(ctx); err != nil {
			return nil, fmt.Errorf("count chunks: %w", err)
		}
	}
	return st, nil
}

// Close releases providers, the vector store and the ledger opened by Open.
func (s *Service) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.metrics.Observe(op, start, *err)
	if *err != nil {
		s.logger.Warn("operation failed", zap.String("op", op), zap.Error(*err))
	}
}
