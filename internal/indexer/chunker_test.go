package indexer

import (
	"strings"
	"testing"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/internal/models"
)

func TestSegment_Example(t *testing.T) {
	chunks, err := Segment("The quick brown fox jumps", 10, 3, nil)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	want := []struct {
		text  string
		start int
		end   int
	}{
		{"The quick", 0, 10},
		{"ck brown f", 7, 17},
		{"n fox jump", 14, 24},
		{"umps", 21, 25},
	}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, w := range want {
		ch := chunks[i]
		if ch.Text != w.text {
			t.Errorf("chunk %d text = %q, want %q", i, ch.Text, w.text)
		}
		if got, _ := ch.Metadata.Int(models.MetaStartPos); got != w.start {
			t.Errorf("chunk %d start_pos = %d, want %d", i, got, w.start)
		}
		if got, _ := ch.Metadata.Int(models.MetaEndPos); got != w.end {
			t.Errorf("chunk %d end_pos = %d, want %d", i, got, w.end)
		}
		if got, _ := ch.Metadata.Int(models.MetaChunkIndex); got != i {
			t.Errorf("chunk %d chunk_index = %d", i, got)
		}
	}
}

func TestSegment_InvalidParameters(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Segment("some text", tt.size, tt.overlap, nil)
			if !apperr.IsInvalidParameter(err) {
				t.Errorf("expected invalid parameter, got %v", err)
			}
			if _, err := NewChunker(tt.size, tt.overlap); !apperr.IsInvalidParameter(err) {
				t.Errorf("NewChunker: expected invalid parameter, got %v", err)
			}
		})
	}
}

func TestSegment_Empty(t *testing.T) {
	for _, text := range []string{"", "   \n\t  "} {
		chunks, err := Segment(text, 5, 1, nil)
		if err != nil {
			t.Fatalf("Segment(%q): %v", text, err)
		}
		if len(chunks) != 0 {
			t.Errorf("Segment(%q) returned %d chunks", text, len(chunks))
		}
	}
}

func TestSegment_ShortText(t *testing.T) {
	for _, text := range []string{"  hello ", "0123456789", "x"} {
		chunks, err := Segment(text, 10, 3, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunks) != 1 {
			t.Fatalf("Segment(%q): got %d chunks, want 1", text, len(chunks))
		}
		if chunks[0].Text != strings.TrimSpace(text) {
			t.Errorf("chunk text = %q", chunks[0].Text)
		}
	}
}

func TestSegment_SkippedWindowsDoNotConsumeIndex(t *testing.T) {
	// Second window [4, 8) is blank.
	text := "abcd" + "    " + "efgh"
	chunks, err := Segment(text, 4, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for i, ch := range chunks {
		if got, _ := ch.Metadata.Int(models.MetaChunkIndex); got != i {
			t.Errorf("chunk %d has chunk_index %d", i, got)
		}
	}
	if start, _ := chunks[1].Metadata.Int(models.MetaStartPos); start != 8 {
		t.Errorf("second chunk start_pos = %d, want 8", start)
	}
}

func TestSegment_OverlapProperty(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 20)
	length := len([]rune(text))
	for size := 1; size <= 64; size += 7 {
		for overlap := 0; overlap < size; overlap += 3 {
			chunks, err := Segment(text, size, overlap, nil)
			if err != nil {
				t.Fatalf("size=%d overlap=%d: %v", size, overlap, err)
			}
			for i := 1; i < len(chunks); i++ {
				prevStart, _ := chunks[i-1].Metadata.Int(models.MetaStartPos)
				prevEnd, _ := chunks[i-1].Metadata.Int(models.MetaEndPos)
				start, _ := chunks[i].Metadata.Int(models.MetaStartPos)
				end, _ := chunks[i].Metadata.Int(models.MetaEndPos)
				if end > length || prevEnd > length {
					t.Fatalf("end beyond text length")
				}
				if start-prevStart != size-overlap {
					// A blank window was skipped in between; nothing to compare.
					continue
				}
				if prevEnd == length {
					continue
				}
				if got := prevEnd - start; got != overlap {
					t.Errorf("size=%d overlap=%d chunk %d: overlap %d", size, overlap, i, got)
				}
			}
		}
	}
}

func TestSegment_KeepsWindowsUntilStartReachesEnd(t *testing.T) {
	chunks, err := Segment("The quick brown fox jumps", 10, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{0, 10}, {8, 18}, {16, 25}, {24, 25}}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, w := range want {
		start, _ := chunks[i].Metadata.Int(models.MetaStartPos)
		end, _ := chunks[i].Metadata.Int(models.MetaEndPos)
		if start != w[0] || end != w[1] {
			t.Errorf("chunk %d = [%d, %d), want [%d, %d)", i, start, end, w[0], w[1])
		}
	}
	if chunks[3].Text != "s" {
		t.Errorf("last chunk text = %q, want %q", chunks[3].Text, "s")
	}
}

func TestSegment_DenseIndexesAndUniqueIDs(t *testing.T) {
	chunks, err := Segment(strings.Repeat("word ", 200), 50, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for i, ch := range chunks {
		if got, _ := ch.Metadata.Int(models.MetaChunkIndex); got != i {
			t.Errorf("chunk %d chunk_index = %d", i, got)
		}
		if ch.ID == "" || seen[ch.ID] {
			t.Errorf("chunk %d has empty or duplicate id %q", i, ch.ID)
		}
		seen[ch.ID] = true
	}
}

func TestSegment_ComputedMetadataWins(t *testing.T) {
	caller := models.Metadata{
		models.MetaChunkIndex: 99,
		models.MetaStartPos:   -1,
		models.MetaFilename:   "a.pdf",
	}
	chunks, err := Segment("abcdefghij", 5, 0, caller)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if got, _ := chunks[1].Metadata.Int(models.MetaChunkIndex); got != 1 {
		t.Errorf("chunk_index = %d, want computed value 1", got)
	}
	if got, _ := chunks[1].Metadata.Int(models.MetaStartPos); got != 5 {
		t.Errorf("start_pos = %d, want computed value 5", got)
	}
	if chunks[0].Metadata[models.MetaFilename] != "a.pdf" {
		t.Error("caller fields should be carried over")
	}
	if caller[models.MetaChunkIndex] != 99 {
		t.Error("caller metadata must not be mutated")
	}
}

func TestSegment_RuneOffsets(t *testing.T) {
	chunks, err := Segment("héllo wörld", 6, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 || chunks[0].Text != "héllo" || chunks[1].Text != "wörld" {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestChunker_Chunk(t *testing.T) {
	c, err := NewChunker(10, 3)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Chunk("The quick brown fox jumps", models.Metadata{"source": "test"})
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	if chunks[3].Metadata["source"] != "test" {
		t.Error("metadata should propagate")
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b  ", "a b"},
		{"line1\n\n\tline2", "line1 line2"},
		{"ctrl\x01\x7fchars", "ctrlchars"},
		{"pua\ue000\uf8ffgone", "puagone"},
		{"c1\u0090x", "c1x"},
		{"a \x02 b", "a b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
