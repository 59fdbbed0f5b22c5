// Package cli formats ragdoc command output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/rag"
	"github.com/hyperjump/ragdoc/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and the distances of the contexts it used.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n", ans.Answer)
	if len(ans.Sources) > 0 {
		fmt.Fprintf(w, "\n(%d contexts)\n", len(ans.Sources))
		for _, src := range ans.Sources {
			fmt.Fprintf(w, "  [%d] distance %.4f\n", src.Index, src.Distance)
		}
	}
	return nil
}

// WriteIngestResult writes the outcome of ingesting one file.
func WriteIngestResult(w io.Writer, path string, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Skipped {
		fmt.Fprintf(w, "%s: unchanged, skipped\n", path)
		return nil
	}
	fmt.Fprintf(w, "%s: %d chunks (document %s)\n", path, res.Chunks, res.DocumentID)
	return nil
}

// WriteDocuments writes the ledger listing.
func WriteDocuments(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []*models.Document{}
		}
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return nil
	}
	for _, doc := range docs {
		fmt.Fprintf(w, "%s  %-40s  %3d chunks  %s  %s\n",
			doc.ID, utils.Truncate(doc.Filename, 40), len(doc.ChunkIDs), doc.Source,
			doc.UploadedAt.Local().Format(time.DateTime))
	}
	return nil
}

// WriteStatus writes collection and ledger counts.
func WriteStatus(w io.Writer, st *rag.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Collection: %s\n", st.Collection)
	fmt.Fprintf(w, "Records:    %d\n", st.Records)
	fmt.Fprintf(w, "Documents:  %d\n", st.Documents)
	fmt.Fprintf(w, "Chunks:     %d\n", st.Chunks)
	return nil
}
