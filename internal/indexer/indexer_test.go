package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/ragdoc/internal/embedding"
	"github.com/hyperjump/ragdoc/internal/fileid"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/storage"
	"github.com/hyperjump/ragdoc/internal/vector"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{"txt", "md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
		{".pdf", []string{".txt", ".md", ".pdf"}, true},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

type testEnv struct {
	idx        *Indexer
	ledger     *storage.SQLiteLedger
	store      *vector.MemoryStore
	collection *vector.Collection
	embedder   *embedding.MockEmbedder
}

func newTestEnv(t *testing.T, dir string) *testEnv {
	t.Helper()
	ledger, err := storage.NewSQLiteLedger(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	embedder := embedding.NewMockEmbedder(8)
	store := vector.NewMemoryStore(vector.MetricCosine)
	collection, err := vector.NewCollection(context.Background(), "pdf_collection", store, embedder)
	if err != nil {
		t.Fatal(err)
	}
	chunker, err := NewChunker(10, 2)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{
		idx:        NewIndexer(collection, ledger, chunker),
		ledger:     ledger,
		store:      store,
		collection: collection,
		embedder:   embedder,
	}
}

func (e *testEnv) count(t *testing.T) int64 {
	t.Helper()
	n, err := e.collection.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestIndexDocument(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	ctx := context.Background()

	uploaded := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	res, err := env.idx.IndexDocument(ctx, &DocumentInput{
		ID:         "doc1",
		Text:       "The quick brown fox jumps",
		Filename:   "fox.pdf",
		Source:     SourceUpload,
		UploadedAt: uploaded,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.DocumentID != "doc1" || res.Chunks != 4 || len(res.ChunkIDs) != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
	if n := env.count(t); n != 4 {
		t.Errorf("collection holds %d records, want 4", n)
	}

	doc, err := env.ledger.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Filename != "fox.pdf" || doc.Source != SourceUpload || len(doc.ChunkIDs) != 4 {
		t.Errorf("unexpected ledger entry %+v", doc)
	}

	vec, _ := env.embedder.Embed(ctx, "The quick")
	results, err := env.collection.Query(ctx, vec, 1)
	if err != nil {
		t.Fatal(err)
	}
	meta := results[0].Metadata
	if meta[models.MetaFilename] != "fox.pdf" || meta[models.MetaSource] != SourceUpload {
		t.Errorf("chunk metadata = %v", meta)
	}
	if meta[models.MetaUploadDate] != "2024-03-01T09:30:00Z" || meta[models.MetaDocumentID] != "doc1" {
		t.Errorf("chunk metadata = %v", meta)
	}
}

func TestIndexDocument_generatesID(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	res, err := env.idx.IndexDocument(context.Background(), &DocumentInput{Text: "short"})
	if err != nil {
		t.Fatal(err)
	}
	if res.DocumentID == "" || res.Chunks != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestIndexDocument_leavesInputUntouched(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	in := &DocumentInput{Text: "short"}
	res, err := env.idx.IndexDocument(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if in.ID != "" || !in.UploadedAt.IsZero() {
		t.Errorf("input was modified: %+v", in)
	}
	if res.DocumentID == "" {
		t.Error("result should carry the generated id")
	}

	raw := &DocumentInput{Filename: "w.txt"}
	if _, err := env.idx.IndexBytes(context.Background(), []byte("plain words"), ".txt", raw); err != nil {
		t.Fatal(err)
	}
	if raw.Text != "" || raw.Clean {
		t.Errorf("IndexBytes modified its input: %+v", raw)
	}
}

func TestIndexDocument_clean(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	ctx := context.Background()
	if _, err := env.idx.IndexDocument(ctx, &DocumentInput{ID: "d", Text: "  a\n\n\tb\x00  ", Clean: true}); err != nil {
		t.Fatal(err)
	}
	vec, _ := env.embedder.Embed(ctx, "a b")
	results, err := env.collection.Query(ctx, vec, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Text != "a b" {
		t.Errorf("got %+v", results)
	}
}

func TestIndexDocument_replacesPreviousChunks(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	ctx := context.Background()

	if _, err := env.idx.IndexDocument(ctx, &DocumentInput{ID: "doc1", Text: "The quick brown fox jumps"}); err != nil {
		t.Fatal(err)
	}
	res, err := env.idx.IndexDocument(ctx, &DocumentInput{ID: "doc1", Text: "tiny"})
	if err != nil {
		t.Fatal(err)
	}
	if n := env.count(t); n != 1 {
		t.Errorf("collection holds %d records after replace, want 1", n)
	}
	doc, err := env.ledger.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.ChunkIDs) != 1 || doc.ChunkIDs[0] != res.ChunkIDs[0] {
		t.Errorf("ledger chunk ids = %v, want %v", doc.ChunkIDs, res.ChunkIDs)
	}
}

func TestIndexDocument_withoutLedger(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	chunker, _ := NewChunker(10, 2)
	idx := NewIndexer(env.collection, nil, chunker)
	ctx := context.Background()

	if _, err := idx.IndexDocument(ctx, &DocumentInput{ID: "a", Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.DeleteDocument(ctx, "a"); !errors.Is(err, ErrNoLedger) {
		t.Errorf("expected ErrNoLedger, got %v", err)
	}
	if _, err := idx.Documents(ctx, 0, 10); !errors.Is(err, ErrNoLedger) {
		t.Errorf("expected ErrNoLedger, got %v", err)
	}
}

func TestIndexBytes(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	res, err := env.idx.IndexBytes(context.Background(), []byte("plain   words"), ".txt", &DocumentInput{Filename: "w.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 2 {
		t.Errorf("chunks = %d, want 2", res.Chunks)
	}
	if _, err := env.idx.IndexBytes(context.Background(), []byte("x"), ".exe", &DocumentInput{}); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestIndexFile_createSkipAndUpdate(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	ctx := context.Background()

	fPath := filepath.Join(dir, "doc.txt")
	writeFile(t, fPath, "Hello world content.")
	res, err := env.idx.IndexFile(ctx, fPath, []string{".txt", ".md"})
	if err != nil {
		t.Fatal(err)
	}
	docID, _ := fileid.FromPath(fPath)
	if res.DocumentID != docID || res.Skipped {
		t.Fatalf("unexpected result %+v", res)
	}
	doc, err := env.ledger.GetDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(fPath)
	if doc.Filename != "doc.txt" || doc.Source != SourceFile || doc.Metadata[metaKeySourcePath] != abs {
		t.Errorf("unexpected doc %+v", doc)
	}

	again, err := env.idx.IndexFile(ctx, fPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Skipped || again.Chunks != res.Chunks {
		t.Errorf("unchanged file should be skipped: %+v", again)
	}
	if calls := env.embedder.Calls(); calls != 1 {
		t.Errorf("embedder called %d times, want 1", calls)
	}

	writeFile(t, fPath, "Updated.")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(fPath, future, future); err != nil {
		t.Fatal(err)
	}
	updated, err := env.idx.IndexFile(ctx, fPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Skipped || updated.Chunks != 1 {
		t.Errorf("changed file should be re-indexed: %+v", updated)
	}
	if n := env.count(t); n != 1 {
		t.Errorf("collection holds %d records, want 1", n)
	}
}

func TestIndexFile_errors(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	ctx := context.Background()

	script := filepath.Join(dir, "script.sh")
	writeFile(t, script, "#!/bin/sh")
	if _, err := env.idx.IndexFile(ctx, script, []string{".txt", ".md"}); err == nil {
		t.Error("expected error for disallowed extension")
	}
	if _, err := env.idx.IndexFile(ctx, dir, []string{".txt"}); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := env.idx.IndexFile(ctx, filepath.Join(dir, "missing.txt"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDeleteFileAndDocument(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	ctx := context.Background()

	fPath := filepath.Join(dir, "note.md")
	writeFile(t, fPath, "Note content that spans chunks.")
	if _, err := env.idx.IndexFile(ctx, fPath, nil); err != nil {
		t.Fatal(err)
	}
	if err := env.idx.DeleteFile(ctx, fPath); err != nil {
		t.Fatal(err)
	}
	if n := env.count(t); n != 0 {
		t.Errorf("collection holds %d records after delete, want 0", n)
	}
	if err := env.idx.DeleteFile(ctx, fPath); err != nil {
		t.Errorf("deleting an unknown file should be a no-op, got %v", err)
	}
	if err := env.idx.DeleteDocument(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentsAndClear(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if _, err := env.idx.IndexDocument(ctx, &DocumentInput{ID: id, Text: "some text " + id}); err != nil {
			t.Fatal(err)
		}
	}
	docs, err := env.idx.Documents(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}

	if err := env.idx.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	docs, _ = env.idx.Documents(ctx, 0, 10)
	if len(docs) != 0 {
		t.Errorf("documents after clear = %d", len(docs))
	}
	if n := env.count(t); n != 0 {
		t.Errorf("collection holds %d records after clear", n)
	}
}

func TestIndexDirectory(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, filepath.Join(t.TempDir()))
	ctx := context.Background()

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "a.txt"), "file a")
	writeFile(t, filepath.Join(dir, "b.md"), "file b")
	writeFile(t, filepath.Join(sub, "c.txt"), "file c")
	writeFile(t, filepath.Join(dir, "skip.xyz"), "skip")

	n, err := env.idx.IndexDirectory(ctx, dir, nil, false)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if n != 2 {
		t.Errorf("non-recursive: indexed %d files, want 2", n)
	}

	n, err = env.idx.IndexDirectory(ctx, dir, []string{".txt"}, true)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if n != 2 {
		t.Errorf("recursive .txt: indexed %d files, want 2", n)
	}
	docs, _ := env.idx.Documents(ctx, 0, 0)
	if len(docs) != 3 {
		t.Errorf("ledger holds %d documents, want 3", len(docs))
	}
}
