package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name    string
		content []byte
		ext     string
		want    string
	}{
		{"txt", []byte("Hello world\nLine 2"), ".txt", "Hello world\nLine 2"},
		{"markdown utf8", []byte("caf\xc3\xa9"), ".md", "café"},
		{"invalid utf8", []byte("hello\x80world"), ".txt", "hello\ufffdworld"},
		{"upper case ext", []byte("shout"), ".TXT", "shout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	e := NewExtractor()
	for _, ext := range []string{".bin", ".exe", ""} {
		if _, err := e.ExtractBytes([]byte("raw"), ext); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%q: expected ErrUnsupportedFormat, got %v", ext, err)
		}
	}
}

func TestSupported(t *testing.T) {
	for ext, want := range map[string]bool{".pdf": true, ".PDF": true, ".md": true, ".rtf": true, ".xlsx": true, ".ODS": true, ".bin": false, "pdf": false} {
		if got := Supported(ext); got != want {
			t.Errorf("Supported(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestExtract_plainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "File content" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	_, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtract_unsupportedFileNotRead(t *testing.T) {
	_, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "missing.bin"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat before reading, got %v", err)
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a pdf"), ".pdf"); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

const documentXML = `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p w:rsidR="00A1"><w:r><w:t>Searchable</w:t></w:r><w:r><w:t xml:space="preserve"> docx </w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>content</w:t></w:r></w:p></w:body></w:document>`

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	content := zipOf(t, map[string]string{"word/document.xml": documentXML})
	got, err := NewExtractor().ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Searchable docx content" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	overrides := []string{
		`<Override PartName="/word/document2.xml" ContentType="` + docxMainType + `"/>`,
		`<Override ContentType="` + docxMainType + `" PartName="/word/document2.xml"/>`,
	}
	for _, o := range overrides {
		content := zipOf(t, map[string]string{
			"[Content_Types].xml": `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + o + `</Types>`,
			"word/document2.xml":  documentXML,
		})
		got, err := NewExtractor().ExtractBytes(content, ".docx")
		if err != nil {
			t.Fatalf("ExtractBytes: %v", err)
		}
		if got != "Searchable docx content" {
			t.Errorf("override %s: got %q", o, got)
		}
	}
}

func TestExtractBytes_docxErrors(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("plain bytes"), ".docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
	if _, err := e.ExtractBytes(zipOf(t, map[string]string{"other.xml": "<x/>"}), ".docx"); err == nil {
		t.Error("expected error when the document part is missing")
	}
}

func TestExtractBytes_xlsx(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow("Sheet1", "A1", &[]any{"city", "population"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]any{"Lisbon", 545000}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Notes"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Notes", "A1", "second sheet"); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	want := "city\tpopulation\nLisbon\t545000\nsecond sheet"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_xlsxFile(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "B2", "budget"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "data.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "budget" {
		t.Errorf("got %q", got)
	}
}

func slideXML(text string) string {
	return `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody>` +
		`<a:p><a:r><a:rPr lang="en-US"/><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestExtractBytes_pptx(t *testing.T) {
	content := zipOf(t, map[string]string{
		"ppt/slides/slide10.xml":            slideXML("last"),
		"ppt/slides/slide2.xml":             slideXML("second"),
		"ppt/slides/slide1.xml":             slideXML("first"),
		"ppt/slides/_rels/slide1.xml.rels":  `<a:t>ignored</a:t>`,
		"ppt/slideLayouts/slideLayout1.xml": slideXML("layout"),
	})
	got, err := NewExtractor().ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "first second last" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_pptxEmpty(t *testing.T) {
	got, err := NewExtractor().ExtractBytes(zipOf(t, map[string]string{"ppt/presentation.xml": "<p/>"}), ".pptx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestExtractBytes_odf(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		xml  string
		want string
	}{
		{
			"odp", ".odp",
			`<office:document><office:body><draw:page draw:name="p1"><draw:text-box>` +
				`<text:h text:outline-level="1">Title</text:h><text:p text:style-name="P1">Searchable odp content</text:p>` +
				`</draw:text-box></draw:page></office:body></office:document>`,
			"Title Searchable odp content",
		},
		{
			"ods", ".ods",
			`<office:document><office:body><table:table><table:table-row>` +
				`<table:table-cell><text:p>Cell A</text:p></table:table-cell>` +
				`<table:table-cell><text:p><text:span>Cell B</text:span></text:p></table:table-cell>` +
				`</table:table-row></table:table></office:body></office:document>`,
			"Cell A Cell B",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := zipOf(t, map[string]string{"content.xml": tt.xml})
			got, err := NewExtractor().ExtractBytes(content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_officeErrors(t *testing.T) {
	e := NewExtractor()
	for _, ext := range []string{".xlsx", ".pptx", ".odp", ".ods"} {
		if _, err := e.ExtractBytes([]byte("not a zip"), ext); err == nil {
			t.Errorf("%s: expected error for non-zip content", ext)
		}
	}
	for _, ext := range []string{".odp", ".ods"} {
		if _, err := e.ExtractBytes(zipOf(t, map[string]string{"meta.xml": "<x/>"}), ext); err == nil {
			t.Errorf("%s: expected error when content.xml is missing", ext)
		}
	}
}
