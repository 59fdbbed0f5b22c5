package indexer

import (
	"strings"
	"unicode"
)

// Clean normalizes extracted text for segmentation: whitespace runs collapse
// to one space, the result is trimmed, and control and private-use characters
// are dropped.
func Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range strings.TrimSpace(text) {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case isStripped(r):
		default:
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func isStripped(r rune) bool {
	switch {
	case r <= 0x1F, r >= 0x7F && r <= 0x9F:
		return true
	case r >= 0xE000 && r <= 0xF8FF:
		return true
	}
	return false
}
