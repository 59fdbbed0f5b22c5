// Package indexer segments documents and writes their chunks into the vector
// collection, keeping the document ledger in step.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/ragdoc/internal/extract"
	"github.com/hyperjump/ragdoc/internal/fileid"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/storage"
	"github.com/hyperjump/ragdoc/internal/vector"
	"go.uber.org/zap"
)

// Sources recorded in chunk metadata.
const (
	SourceUpload = "pdf_upload"
	SourceFile   = "file"
)

// ErrNoLedger is returned by operations that need document bookkeeping when
// the indexer was built without a ledger.
var ErrNoLedger = errors.New("document ledger not configured")

// DocumentInput is one document to ingest.
type DocumentInput struct {
	// ID identifies the document. Ingesting the same ID again replaces the
	// previous chunks. Empty means a new random id.
	ID         string
	Text       string
	Filename   string
	Source     string
	UploadedAt time.Time
	Metadata   models.Metadata
	// Clean applies Clean to Text before segmenting.
	Clean bool
}

// Indexer segments documents, upserts their chunks and records them in the ledger.
type Indexer struct {
	collection *vector.Collection
	ledger     storage.Ledger
	chunker    *Chunker
	extractor  *extract.Extractor
	logger     *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file indexed, document deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtractor overrides the extractor used by IndexFile and IndexBytes.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer. ledger may be nil; replacement, delete and
// listing then become unavailable.
func NewIndexer(collection *vector.Collection, ledger storage.Ledger, chunker *Chunker, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		collection: collection,
		ledger:     ledger,
		chunker:    chunker,
		extractor:  extract.NewExtractor(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Collection returns the vector collection the indexer writes to.
func (idx *Indexer) Collection() *vector.Collection { return idx.collection }

// Ledger returns the document ledger, or nil.
func (idx *Indexer) Ledger() storage.Ledger { return idx.ledger }

// IndexDocument segments in.Text, upserts the chunks and records the document.
// Chunks of a previous ingest under the same id are removed after the new
// ones are written.
func (idx *Indexer) IndexDocument(ctx context.Context, input *DocumentInput) (*models.IngestResult, error) {
	in := *input
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.UploadedAt.IsZero() {
		in.UploadedAt = time.Now().UTC()
	}
	text := in.Text
	if in.Clean {
		text = Clean(text)
	}

	chunks := idx.chunker.Chunk(text, chunkMetadata(&in))
	if err := idx.collection.Upsert(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}

	chunkIDs := make([]string, len(chunks))
	for i, ch := range chunks {
		chunkIDs[i] = ch.ID
	}

	if idx.ledger != nil {
		if err := idx.dropStaleChunks(ctx, in.ID, chunkIDs); err != nil {
			return nil, err
		}
		doc := &models.Document{
			ID:         in.ID,
			Filename:   in.Filename,
			Source:     in.Source,
			UploadedAt: in.UploadedAt,
			ChunkIDs:   chunkIDs,
			Metadata:   in.Metadata,
		}
		if err := idx.ledger.PutDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to record document: %w", err)
		}
	}

	idx.logger.Debug("document indexed",
		zap.String("id", in.ID),
		zap.String("filename", in.Filename),
		zap.Int("chunks", len(chunks)),
	)
	return &models.IngestResult{
		DocumentID: in.ID,
		Filename:   in.Filename,
		Chunks:     len(chunks),
		ChunkIDs:   chunkIDs,
	}, nil
}

// chunkMetadata builds the metadata every chunk of in carries.
func chunkMetadata(in *DocumentInput) models.Metadata {
	meta := in.Metadata.Clone()
	meta[models.MetaDocumentID] = in.ID
	meta[models.MetaUploadDate] = in.UploadedAt.UTC().Format(time.RFC3339)
	if in.Filename != "" {
		meta[models.MetaFilename] = in.Filename
	}
	if in.Source != "" {
		meta[models.MetaSource] = in.Source
	}
	return meta
}

func (idx *Indexer) dropStaleChunks(ctx context.Context, docID string, keep []string) error {
	prev, err := idx.ledger.GetDocument(ctx, docID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up document: %w", err)
	}
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	stale := make([]string, 0, len(prev.ChunkIDs))
	for _, id := range prev.ChunkIDs {
		if _, ok := kept[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := idx.collection.Delete(ctx, stale); err != nil {
		return fmt.Errorf("failed to remove previous chunks: %w", err)
	}
	if len(stale) > 0 {
		idx.logger.Debug("previous chunks removed", zap.String("id", docID), zap.Int("chunks", len(stale)))
	}
	return nil
}

// IndexBytes extracts text from content by extension, cleans it and indexes it.
func (idx *Indexer) IndexBytes(ctx context.Context, content []byte, ext string, in *DocumentInput) (*models.IngestResult, error) {
	text, err := idx.extractor.ExtractBytes(content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	doc := *in
	doc.Text = text
	doc.Clean = true
	return idx.IndexDocument(ctx, &doc)
}

const (
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// IndexFile reads a file from path and indexes it. The document ID is derived from the
// absolute path so re-indexing replaces the same document. If allowedExts is non-empty,
// the file's extension must be in the list (case-insensitive).
// An unchanged file (same mtime and size in the ledger) is skipped.
func (idx *Indexer) IndexFile(ctx context.Context, path string, allowedExts []string) (*models.IngestResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	docID, err := fileid.FromPath(absPath)
	if err != nil {
		return nil, err
	}
	if prev, ok := idx.unchanged(ctx, absPath, docID, info); ok {
		idx.logger.Debug("skipping unchanged file", zap.String("path", absPath))
		return &models.IngestResult{
			DocumentID: docID,
			Filename:   prev.Filename,
			Chunks:     len(prev.ChunkIDs),
			ChunkIDs:   prev.ChunkIDs,
			Skipped:    true,
		}, nil
	}

	text, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	return idx.IndexDocument(ctx, &DocumentInput{
		ID:       docID,
		Text:     text,
		Filename: filepath.Base(absPath),
		Source:   SourceFile,
		Metadata: models.Metadata{
			metaKeySourcePath:  absPath,
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		},
		Clean: true,
	})
}

// unchanged reports whether the ledger already holds path with the same mtime and size.
// Values are stored as strings; UnixNano exceeds float64 precision in JSON.
func (idx *Indexer) unchanged(ctx context.Context, absPath, docID string, info os.FileInfo) (*models.Document, bool) {
	if idx.ledger == nil {
		return nil, false
	}
	doc, err := idx.ledger.GetDocument(ctx, docID)
	if err != nil {
		return nil, false
	}
	if p, _ := doc.Metadata.String(metaKeySourcePath); p != absPath {
		return nil, false
	}
	mtime, _ := doc.Metadata.String(metaKeySourceMtime)
	size, _ := doc.Metadata.String(metaKeySourceSize)
	if mtime != strconv.FormatInt(info.ModTime().UnixNano(), 10) || size != strconv.FormatInt(info.Size(), 10) {
		return nil, false
	}
	return doc, true
}

// IndexDirectory walks dir and indexes each regular file whose extension is in
// allowedExts (all supported formats when empty). Subdirectories are visited
// only when recursive is set. Returns the number of files indexed or skipped
// as unchanged, and the first error encountered.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, allowedExts []string, recursive bool) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	if len(allowedExts) == 0 {
		allowedExts = extract.SupportedExtensions
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !extensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		// Resolve symlinks so we only index regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, indexErr := idx.IndexFile(ctx, path, allowedExts); indexErr != nil {
			return fmt.Errorf("%s: %w", path, indexErr)
		}
		n++
		return nil
	})
	return n, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// DeleteDocument removes a document's chunks from the collection and its ledger entry.
// Unknown ids yield storage.ErrNotFound.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	if idx.ledger == nil {
		return ErrNoLedger
	}
	doc, err := idx.ledger.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := idx.collection.Delete(ctx, doc.ChunkIDs); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := idx.ledger.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	idx.logger.Debug("document deleted", zap.String("id", id), zap.Int("chunks", len(doc.ChunkIDs)))
	return nil
}

// DeleteFile removes the document derived from path. A path that was never
// indexed is not an error.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) error {
	id, err := fileid.FromPath(path)
	if err != nil {
		return err
	}
	if err := idx.DeleteDocument(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Document returns one ledger entry. Unknown ids yield storage.ErrNotFound.
func (idx *Indexer) Document(ctx context.Context, id string) (*models.Document, error) {
	if idx.ledger == nil {
		return nil, ErrNoLedger
	}
	return idx.ledger.GetDocument(ctx, id)
}

// Documents lists ledger entries, newest first.
func (idx *Indexer) Documents(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if idx.ledger == nil {
		return nil, ErrNoLedger
	}
	docs, err := idx.ledger.ListDocuments(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	return docs, nil
}

// Clear empties the collection, then the ledger.
func (idx *Indexer) Clear(ctx context.Context) error {
	if err := idx.collection.Clear(ctx); err != nil {
		return err
	}
	if idx.ledger != nil {
		if err := idx.ledger.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear ledger: %w", err)
		}
	}
	return nil
}
