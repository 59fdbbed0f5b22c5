// Package indexer provides document segmentation and the ingest pipeline.
package indexer

import (
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/internal/models"
)

// Chunker splits text into overlapping character windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if err := validateWindow(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Chunk segments text with the configured window.
func (c *Chunker) Chunk(text string, metadata models.Metadata) []*models.Chunk {
	return segment([]rune(text), c.chunkSize, c.chunkOverlap, metadata)
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Segment splits text into windows of chunkSize characters stepping by
// chunkSize-overlap. Windows are trimmed; empty ones are skipped and do not
// consume a chunk_index. Computed chunk_index, start_pos and end_pos
// overwrite caller metadata with the same keys.
func Segment(text string, chunkSize, overlap int, metadata models.Metadata) ([]*models.Chunk, error) {
	if err := validateWindow(chunkSize, overlap); err != nil {
		return nil, err
	}
	return segment([]rune(text), chunkSize, overlap, metadata), nil
}

func validateWindow(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return apperr.InvalidParameter("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return apperr.InvalidParameter("overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	return nil
}

func segment(runes []rune, chunkSize, overlap int, metadata models.Metadata) []*models.Chunk {
	var chunks []*models.Chunk
	step := chunkSize - overlap
	chunkIndex := 0
	for start := 0; start < len(runes); start += step {
		end := min(start+chunkSize, len(runes))
		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			meta := metadata.Clone()
			meta[models.MetaChunkIndex] = chunkIndex
			meta[models.MetaStartPos] = start
			meta[models.MetaEndPos] = end
			chunks = append(chunks, &models.Chunk{
				ID:       uuid.New().String(),
				Text:     text,
				Metadata: meta,
			})
			chunkIndex++
		}
		// Text that fits in one window yields one chunk.
		if start == 0 && end == len(runes) {
			break
		}
	}
	return chunks
}
