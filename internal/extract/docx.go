package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultPart  = "word/document.xml"
	contentTypesPart = "[Content_Types].xml"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// wtTag matches <w:t>text</w:t> with any attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// mainPartRe finds the Override element for the main document; attribute order varies.
var mainPartRe = regexp.MustCompile(`<Override\s[^>]*ContentType="` + regexp.QuoteMeta(docxMainType) + `"[^>]*>`)

var partNameAttr = regexp.MustCompile(`PartName="([^"]+)"`)

// extractDOCX collects every text run of the main document part. lu4p/cat only
// matches bare <w:p> elements, so real documents with attributes come out empty.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	part := docxDefaultPart
	if types, err := readZipPart(zr, contentTypesPart); err == nil {
		if p := mainDocumentPart(types); p != "" {
			part = p
		}
	}

	body, err := readZipPart(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	runs := wtTag.FindAllSubmatch(body, -1)
	words := make([]string, 0, len(runs))
	for _, r := range runs {
		if s := strings.TrimSpace(string(r[1])); s != "" {
			words = append(words, s)
		}
	}
	return strings.Join(words, " "), nil
}

func mainDocumentPart(types []byte) string {
	override := mainPartRe.Find(types)
	if override == nil {
		return ""
	}
	m := partNameAttr.FindSubmatch(override)
	if m == nil {
		return ""
	}
	return strings.TrimPrefix(string(m[1]), "/")
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found", name)
}
