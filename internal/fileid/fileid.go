// Package fileid derives deterministic document ids so re-ingesting the same
// source replaces its previous chunks.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const (
	pathPrefix    = "file:"
	contentPrefix = "upload:"
)

// FromPath returns the document id for a file on disk. The path is made
// absolute and cleaned first, so equivalent spellings share an id.
func FromPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return pathPrefix + digest([]byte(filepath.Clean(abs))), nil
}

// FromContent returns the document id for uploaded bytes. Identical uploads
// map to the same document.
func FromContent(content []byte) string {
	return contentPrefix + digest(content)
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16])
}
