package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/bookqa/internal/model"
	"github.com/kart-io/bookqa/internal/query/store"
)

// RetrieverConfig configures the retriever.
type RetrieverConfig struct {
	// TopK is the number of chunks to retrieve per book-wide query.
	TopK int

	// Collection is the Milvus collection holding the book chunks.
	Collection string
}

// Retriever resolves a query into context passages.
type Retriever struct {
	store  store.VectorStore
	config *RetrieverConfig
}

// NewRetriever creates a retriever over the given vector store.
func NewRetriever(vectorStore store.VectorStore, config *RetrieverConfig) *Retriever {
	if config == nil {
		config = &RetrieverConfig{TopK: 5, Collection: "book_chunks"}
	}
	return &Retriever{
		store:  vectorStore,
		config: config,
	}
}

// Retrieve returns the grounding passages for a query.
//
// Selected-text mode never touches the corpus: the reader's selection
// becomes the one and only passage, tagged with the session sentinel ids.
// Book-wide mode searches the vector index and keeps hits in index order.
func (r *Retriever) Retrieve(ctx context.Context, mode model.QueryMode, embedding []float32, selectedText string) ([]model.ContextPassage, error) {
	if mode == model.ModeSelectedText {
		return []model.ContextPassage{
			{
				ID:         model.SelectedTextChunkID,
				DocumentID: model.SelectedTextSource,
				Content:    selectedText,
				Ordinal:    0,
			},
		}, nil
	}

	results, err := r.store.Search(ctx, r.config.Collection, embedding, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	passages := make([]model.ContextPassage, 0, len(results))
	for _, res := range results {
		if strings.TrimSpace(res.Content) == "" {
			logger.Debugw("dropping hit without content", "chunk_id", res.ID)
			continue
		}
		score := float64(res.Score)
		passages = append(passages, model.ContextPassage{
			ID:         res.ID,
			DocumentID: res.DocumentID,
			Content:    res.Content,
			Ordinal:    len(passages),
			Score:      &score,
		})
	}

	logger.Debugw("retrieval completed",
		"hits", len(results),
		"passages", len(passages),
		"top_k", r.config.TopK,
	)
	return passages, nil
}
