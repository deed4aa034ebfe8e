package models

// SystemStats is the combined view served by the stats endpoint.
type SystemStats struct {
	Processing      ProcessingStats `json:"processing_stats"`
	Collection      CollectionStats `json:"collection_stats"`
	IndexDiskUsage  int64           `json:"index_disk_usage_bytes"`
	IndexPath       string          `json:"index_path,omitempty"`
	SupportedUpload []string        `json:"supported_upload_extensions,omitempty"`
}

// Health reports which pipeline components are up.
type Health struct {
	Status               string `json:"status"`
	RAGPipeline          bool   `json:"rag_pipeline"`
	DocumentProcessor    bool   `json:"document_processor"`
	GenerationConfigured bool   `json:"generation_configured"`
}

// Healthy reports whether the pipeline can ingest and answer.
func (h Health) Healthy() bool {
	return h.RAGPipeline && h.DocumentProcessor
}
