package models

import (
	"errors"
	"testing"
)

func TestChunkID(t *testing.T) {
	if got := ChunkID("a.txt", 3); got != "a.txt_3" {
		t.Errorf("ChunkID = %q, want a.txt_3", got)
	}
	c := &Chunk{SourceID: "report.pdf", ChunkIndex: 0, TotalChunks: 2}
	if c.ID() != "report.pdf_0" {
		t.Errorf("Chunk.ID = %q", c.ID())
	}
}

func TestDocument_Source(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
		want string
	}{
		{"nil document", nil, UnknownSource},
		{"no metadata", &Document{Text: "x"}, UnknownSource},
		{"empty source", &Document{Metadata: map[string]any{"source": ""}}, UnknownSource},
		{"non-string source", &Document{Metadata: map[string]any{"source": 4}}, UnknownSource},
		{"source set", &Document{Metadata: map[string]any{"source": "a.txt"}}, "a.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.Source(); got != tt.want {
				t.Errorf("Source() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarizeStats(t *testing.T) {
	empty := SummarizeStats(nil)
	if empty.TotalDocuments != 0 || empty.AverageTextLength != 0 || empty.AverageChunksPerDoc != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
	got := SummarizeStats([]DocumentStat{
		{Filename: "a", TextLength: 100, ChunkCount: 1},
		{Filename: "b", TextLength: 300, ChunkCount: 4},
	})
	if got.TotalDocuments != 2 || got.TotalTextLength != 400 || got.TotalChunks != 5 {
		t.Errorf("totals = %+v", got)
	}
	if got.AverageTextLength != 200 || got.AverageChunksPerDoc != 2.5 {
		t.Errorf("averages = %+v", got)
	}
}

func TestValidateMetadata(t *testing.T) {
	ok := map[string]any{"s": "x", "b": true, "i": 3, "f": 1.5, "u": uint8(2)}
	if err := ValidateMetadata(ok); err != nil {
		t.Errorf("scalars rejected: %v", err)
	}
	bad := map[string]any{"list": []string{"a"}}
	if err := ValidateMetadata(bad); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("expected ErrInvalidMetadata, got %v", err)
	}
	if err := ValidateMetadata(nil); err != nil {
		t.Errorf("nil metadata: %v", err)
	}
}

func TestStreamEvent_Terminal(t *testing.T) {
	if ContentEvent("x").Terminal() {
		t.Error("content should not be terminal")
	}
	if !DoneEvent().Terminal() || !ErrorEvent("boom").Terminal() {
		t.Error("done and error should be terminal")
	}
}
