package port

import (
	"context"

	"askcode/internal/domain"
)

// VectorIndex is one session's searchable index.
type VectorIndex interface {
	// SimilaritySearch embeds query and returns up to k chunks matching filter,
	// sorted by descending similarity.
	SimilaritySearch(ctx context.Context, query string, k int, filter domain.Filters) ([]domain.ScoredChunk, error)

	// Count returns the number of chunks in the index.
	Count() int
}

// IndexOpener resolves a session id to its index.
// Returns domain.ErrNotIngested when the session has no index.
type IndexOpener interface {
	Open(ctx context.Context, sessionID string) (VectorIndex, error)
}

// VectorItem represents a chunk vector written by the ingestion pipeline.
type VectorItem struct {
	ID       string            // Unique identifier (typically chunk ID)
	Vector   []float32         // Embedding vector
	Text     string            // Chunk text
	Metadata map[string]string // file_path, chunk_id, symbol_type, ...
}
