package models

// IndexEntry is the persisted unit of the vector index.
type IndexEntry struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryHit is one query result. Distance is cosine distance (smaller is closer).
type QueryHit struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Distance float64        `json:"distance"`
}

// Source returns the hit's source metadata, or UnknownSource.
func (h QueryHit) Source() string {
	if s, ok := h.Metadata[MetaSource].(string); ok && s != "" {
		return s
	}
	return UnknownSource
}

// Retrieval is the assembled read-path output for one question.
type Retrieval struct {
	Context string     `json:"context"`
	Sources []string   `json:"sources"`
	Hits    []QueryHit `json:"-"`
}

// Answer is a blocking question-answering result.
type Answer struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}
