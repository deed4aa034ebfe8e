// Package indexer splits documents into overlapping chunks and writes them to the vector index.
package indexer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kbase/internal/models"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

// separator is one level of the recursive split. A nil pattern with an empty
// literal means a hard cut by length.
type separator struct {
	literal string
	pattern *regexp.Regexp
}

var separators = []separator{
	{literal: "\n\n"},
	{literal: "\n"},
	{pattern: sentenceEnd},
	{literal: " "},
	{literal: ""},
}

// Chunker splits text into overlapping chunks using a recursive separator strategy.
// Lengths are counted in runes. Chunks are contiguous substrings of the input, and
// every chunk after the first starts with the last chunkOverlap runes of the one
// before it, so chunks[0] + chunks[1][overlap:] + ... reconstructs the text.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk_size=%d chunk_overlap=%d", models.ErrInvalidChunkConfig, chunkSize, chunkOverlap)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Overlap returns the configured overlap in characters.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Size returns the configured maximum chunk length in characters.
func (c *Chunker) Size() int { return c.chunkSize }

// Split returns the ordered chunk texts of text. Blank input yields ErrEmptyContent.
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyContent
	}
	// Atoms must fit in a body that follows an overlap prefix.
	step := c.chunkSize - c.chunkOverlap
	atoms := splitRecursive(text, separators, step)

	var chunks []string
	var body strings.Builder
	bodyLen := 0
	consumed := 0 // runes of text covered by emitted chunks
	runes := []rune(text)

	flush := func() {
		if bodyLen == 0 {
			return
		}
		var chunk string
		if len(chunks) == 0 {
			chunk = body.String()
		} else {
			chunk = string(runes[consumed-c.chunkOverlap:consumed]) + body.String()
		}
		chunks = append(chunks, chunk)
		consumed += bodyLen
		body.Reset()
		bodyLen = 0
	}

	for _, atom := range atoms {
		n := utf8.RuneCountInString(atom)
		limit := step
		if len(chunks) == 0 {
			limit = c.chunkSize
		}
		if bodyLen > 0 && bodyLen+n > limit {
			flush()
		}
		body.WriteString(atom)
		bodyLen += n
	}
	flush()
	return chunks, nil
}

// Chunk splits text into Chunks for source, attaching index and total count.
func (c *Chunker) Chunk(source, text string, extra map[string]any) ([]*models.Chunk, error) {
	parts, err := c.Split(text)
	if err != nil {
		return nil, err
	}
	chunks := make([]*models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = &models.Chunk{
			Text:          p,
			SourceID:      source,
			ChunkIndex:    i,
			TotalChunks:   len(parts),
			ExtraMetadata: extra,
		}
	}
	return chunks, nil
}

// splitRecursive breaks text into pieces of at most max runes, trying separators in
// order and descending only into pieces that are still too long.
func splitRecursive(text string, seps []separator, max int) []string {
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}
	for i, sep := range seps {
		var pieces []string
		switch {
		case sep.pattern != nil:
			pieces = splitAfterPattern(text, sep.pattern)
		case sep.literal == "":
			return hardCut(text, max)
		default:
			pieces = strings.SplitAfter(text, sep.literal)
		}
		pieces = dropEmpty(pieces)
		if len(pieces) < 2 {
			continue
		}
		var out []string
		for _, p := range pieces {
			if utf8.RuneCountInString(p) <= max {
				out = append(out, p)
				continue
			}
			out = append(out, splitRecursive(p, seps[i+1:], max)...)
		}
		return out
	}
	return hardCut(text, max)
}

// splitAfterPattern splits text after every match of re, keeping the match with the
// preceding piece.
func splitAfterPattern(text string, re *regexp.Regexp) []string {
	var pieces []string
	start := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		pieces = append(pieces, text[start:loc[1]])
		start = loc[1]
	}
	return append(pieces, text[start:])
}

func hardCut(text string, max int) []string {
	runes := []rune(text)
	var pieces []string
	for len(runes) > max {
		pieces = append(pieces, string(runes[:max]))
		runes = runes[max:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

func dropEmpty(pieces []string) []string {
	out := pieces[:0]
	for _, p := range pieces {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
