package store

import (
	"context"
	"fmt"

	"github.com/kart-io/bookqa/pkg/component/milvus"
)

// MilvusStore implements VectorStore on Milvus.
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore creates a Milvus-backed store.
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// Search performs a vector similarity search against the book collection.
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	outputFields := []string{"chunk_id", "document_id", "content", "chunk_index"}
	results, err := s.client.Search(ctx, collection, embedding, topK, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	searchResults := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		sr := &SearchResult{
			Score: r.Score,
		}
		if v, ok := r.Metadata["chunk_id"].(string); ok {
			sr.ID = v
		}
		if v, ok := r.Metadata["document_id"].(string); ok {
			sr.DocumentID = v
		}
		if v, ok := r.Metadata["content"].(string); ok {
			sr.Content = v
		}
		if v, ok := r.Metadata["chunk_index"].(int64); ok {
			sr.ChunkIndex = v
		}
		if sr.ID == "" {
			sr.ID = fmt.Sprintf("%d", r.ID)
		}
		searchResults = append(searchResults, sr)
	}

	return searchResults, nil
}

// GetStats returns the chunk count of the collection.
func (s *MilvusStore) GetStats(ctx context.Context, collection string) (int64, error) {
	return s.client.GetCollectionStats(ctx, collection)
}

// Close closes the Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ VectorStore = (*MilvusStore)(nil)
