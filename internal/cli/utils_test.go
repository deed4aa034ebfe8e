package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kbase/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "JSON": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}

func TestWriteAnswer(t *testing.T) {
	answer := &models.Answer{Response: "Cats are mammals.", Sources: []string{"a.txt", "b.pdf", "a.txt"}}

	var buf bytes.Buffer
	if err := WriteAnswer(&buf, answer, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "Cats are mammals.\n") {
		t.Errorf("text output = %q", out)
	}
	if strings.Count(out, "a.txt") != 1 || !strings.Contains(out, "  - b.pdf") {
		t.Errorf("sources not deduplicated: %q", out)
	}

	buf.Reset()
	if err := WriteAnswer(&buf, answer, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.Answer
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded.Sources) != 3 {
		t.Errorf("JSON sources = %v", decoded.Sources)
	}
}

func TestWriteDocuments(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDocuments(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No documents") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	docs := []models.DocumentStat{{Filename: "report.pdf", TextLength: 1200, ChunkCount: 2}}
	if err := WriteDocuments(&buf, docs, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "report.pdf") || !strings.Contains(buf.String(), "1200") {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	if err := WriteDocuments(&buf, docs, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"chunks": 2`) {
		t.Errorf("json output = %q", buf.String())
	}
}

func TestWriteStatsAndHealth(t *testing.T) {
	stats := &models.SystemStats{
		Processing:     models.ProcessingStats{TotalDocuments: 2, TotalChunks: 5, AverageChunksPerDoc: 2.5},
		Collection:     models.CollectionStats{TotalDocuments: 5, CollectionName: "knowledge_base"},
		IndexDiskUsage: 2048,
	}
	var buf bytes.Buffer
	if err := WriteStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"knowledge_base (5 entries)", "2.0 KiB", "Avg chunks/doc:      2.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	h := &models.Health{Status: "healthy", RAGPipeline: true, DocumentProcessor: true}
	if err := WriteHealth(&buf, h, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "fallback") {
		t.Errorf("health output = %q", buf.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 1536: "1.5 KiB", 5 << 20: "5.0 MiB"}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
