// Package cli provides output helpers for the kbase command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kbase/internal/models"
	"github.com/hyperjump/kbase/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a --format flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its sources.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "%s\n", answer.Response)
	WriteSources(w, answer.Sources)
	return nil
}

// WriteSources writes the distinct sources of an answer, in first-seen order.
func WriteSources(w io.Writer, sources []string) {
	if len(sources) == 0 {
		return
	}
	seen := make(map[string]bool, len(sources))
	fmt.Fprintln(w, "\nSources:")
	for _, s := range sources {
		if seen[s] {
			continue
		}
		seen[s] = true
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

// WriteDocuments writes the ingested document list.
func WriteDocuments(w io.Writer, docs []models.DocumentStat, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{"documents": docs})
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents ingested.")
		return nil
	}
	fmt.Fprintf(w, "%-40s %12s %8s\n", "FILENAME", "CHARACTERS", "CHUNKS")
	for _, d := range docs {
		fmt.Fprintf(w, "%-40s %12d %8d\n", utils.Truncate(d.Filename, 37), d.TextLength, d.ChunkCount)
	}
	return nil
}

// WriteStats writes processing and collection statistics.
func WriteStats(w io.Writer, stats *models.SystemStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	p := stats.Processing
	fmt.Fprintf(w, "Documents:           %d\n", p.TotalDocuments)
	fmt.Fprintf(w, "Total characters:    %d\n", p.TotalTextLength)
	fmt.Fprintf(w, "Total chunks:        %d\n", p.TotalChunks)
	fmt.Fprintf(w, "Avg characters/doc:  %.1f\n", p.AverageTextLength)
	fmt.Fprintf(w, "Avg chunks/doc:      %.1f\n", p.AverageChunksPerDoc)
	fmt.Fprintf(w, "Collection:          %s (%d entries)\n", stats.Collection.CollectionName, stats.Collection.TotalDocuments)
	if stats.IndexPath != "" {
		fmt.Fprintf(w, "Index:               %s\n", stats.IndexPath)
	}
	fmt.Fprintf(w, "Index size:          %s\n", FormatBytes(stats.IndexDiskUsage))
	return nil
}

// WriteHealth writes a health report.
func WriteHealth(w io.Writer, h *models.Health, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, h)
	}
	fmt.Fprintf(w, "Status:              %s\n", h.Status)
	fmt.Fprintf(w, "RAG pipeline:        %s\n", upDown(h.RAGPipeline))
	fmt.Fprintf(w, "Document processor:  %s\n", upDown(h.DocumentProcessor))
	fmt.Fprintf(w, "Generation:          %s\n", configured(h.GenerationConfigured))
	return nil
}

func upDown(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "fallback (no API key)"
}

// FormatBytes renders n in binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
