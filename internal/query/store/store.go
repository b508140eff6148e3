// Package store defines the read-side vector store abstraction.
package store

import (
	"context"
)

// SearchResult is one raw hit from the vector index.
type SearchResult struct {
	// ID is the chunk identifier.
	ID string

	// DocumentID identifies the source document of the chunk.
	DocumentID string

	// Content is the chunk text.
	Content string

	// ChunkIndex is the position of the chunk within its document.
	ChunkIndex int64

	// Score is the similarity score reported by the index.
	Score float32
}

// VectorStore is the read-only corpus interface. Ingestion is handled by
// an external job; the query service never writes.
type VectorStore interface {
	// Search returns the topK most similar chunks, in index order.
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error)

	// GetStats returns the number of chunks in the collection.
	GetStats(ctx context.Context, collection string) (int64, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
