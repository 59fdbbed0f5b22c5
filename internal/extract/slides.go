package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slidePart matches ppt/slides/slideN.xml and captures N.
var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// extractPPTX joins the text runs of every slide, in slide number order.
func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract PPTX: not a zip: %w", err)
	}

	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePart.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var words []string
	for _, s := range slides {
		body, err := readZipPart(zr, s.name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		words = appendRuns(words, atTag, body)
	}
	return strings.Join(words, " "), nil
}

const odfContentPart = "content.xml"

// odfText matches the innermost OpenDocument paragraph, heading and span
// elements. Nested markup is skipped by the [^<]* body.
var odfText = regexp.MustCompile(`<text:(?:p|h|span)(?:\s[^>]*)?>([^<]*)</text:(?:p|h|span)>`)

// extractODF reads content.xml of an OpenDocument presentation or spreadsheet
// and returns its text elements in document order.
func extractODF(content []byte, kind string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	body, err := readZipPart(zr, odfContentPart)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	return strings.Join(appendRuns(nil, odfText, body), " "), nil
}

func appendRuns(words []string, re *regexp.Regexp, body []byte) []string {
	for _, r := range re.FindAllSubmatch(body, -1) {
		if s := strings.TrimSpace(string(r[1])); s != "" {
			words = append(words, s)
		}
	}
	return words
}
