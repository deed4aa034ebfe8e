// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions with no extractor.
var ErrUnsupportedFormat = errors.New("unsupported document format")

type extractFunc func(content []byte) (string, error)

var extractors = map[string]extractFunc{
	".pdf":  extractPDF,
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".docx": extractDOCX,
	".xlsx": extractExcel,
	".odt":  extractCat,
	".rtf":  extractCat,
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on ext (with leading dot, e.g. ".pdf").
// The result is trimmed of surrounding whitespace.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := extractors[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	text, err := fn(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Supported reports whether ext has an extractor.
func Supported(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// SupportedExtensions lists every extension with an extractor, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
