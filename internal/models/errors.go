package models

import "errors"

// Pipeline error taxonomy. Callers wrap these with fmt.Errorf("...: %w", Err...)
// and test with errors.Is.
var (
	// ErrEmptyContent means a document has no usable text after chunking.
	ErrEmptyContent = errors.New("no text content found in the document")
	// ErrEncoding means embedding computation failed.
	ErrEncoding = errors.New("embedding failed")
	// ErrIndexWrite means a vector index write failed.
	ErrIndexWrite = errors.New("vector index write failed")
	// ErrIndexQuery means a vector index query failed.
	ErrIndexQuery = errors.New("vector index query failed")
	// ErrGeneration means the generation backend failed.
	ErrGeneration = errors.New("generation failed")

	ErrInvalidK           = errors.New("k must be positive")
	ErrInvalidChunkConfig = errors.New("invalid chunking parameters")
	ErrInvalidMetadata    = errors.New("invalid metadata")
	ErrEmptyQuestion      = errors.New("question cannot be empty")
	ErrDocumentNotFound   = errors.New("document not found")
	// ErrSpaceMismatch means an existing collection was created with a different
	// distance space or dimension. Changing either requires rebuilding the collection.
	ErrSpaceMismatch = errors.New("collection space mismatch")
)
