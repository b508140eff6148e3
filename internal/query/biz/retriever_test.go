package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/bookqa/internal/model"
	"github.com/kart-io/bookqa/internal/query/store"
)

func TestRetrieveSelectedTextNeverTouchesStore(t *testing.T) {
	fs := &fakeStore{results: []*store.SearchResult{
		{ID: "chunk_1", DocumentID: "doc_1", Content: "corpus text", Score: 0.9},
	}}
	r := NewRetriever(fs, &RetrieverConfig{TopK: 5, Collection: "book_chunks"})

	passages, err := r.Retrieve(context.Background(), model.ModeSelectedText, nil, "It was the best of times.")
	require.NoError(t, err)
	require.Len(t, passages, 1)

	p := passages[0]
	assert.Equal(t, model.SelectedTextChunkID, p.ID)
	assert.Equal(t, model.SelectedTextSource, p.DocumentID)
	assert.Equal(t, "It was the best of times.", p.Content)
	assert.Equal(t, 0, p.Ordinal)
	assert.Nil(t, p.Score)

	// The corpus must stay out of scope in selected-text mode
	assert.Equal(t, 0, fs.searchCalls)
}

func TestRetrieveBookWide(t *testing.T) {
	fs := &fakeStore{results: []*store.SearchResult{
		{ID: "chunk_1", DocumentID: "chapter_1_intro", Content: "first", Score: 0.92},
		{ID: "chunk_2", DocumentID: "chapter_2_plot", Content: "second", Score: 0.85},
	}}
	r := NewRetriever(fs, &RetrieverConfig{TopK: 5, Collection: "book_chunks"})

	passages, err := r.Retrieve(context.Background(), model.ModeBookWide, []float32{0.1, 0.2}, "")
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, 1, fs.searchCalls)

	assert.Equal(t, "chunk_1", passages[0].ID)
	assert.Equal(t, 0, passages[0].Ordinal)
	require.NotNil(t, passages[0].Score)
	assert.InDelta(t, 0.92, *passages[0].Score, 0.0001)

	assert.Equal(t, "chunk_2", passages[1].ID)
	assert.Equal(t, 1, passages[1].Ordinal)
}

func TestRetrieveDropsEmptyContent(t *testing.T) {
	fs := &fakeStore{results: []*store.SearchResult{
		{ID: "chunk_1", DocumentID: "doc_1", Content: "kept", Score: 0.9},
		{ID: "chunk_2", DocumentID: "doc_1", Content: "   ", Score: 0.8},
		{ID: "chunk_3", DocumentID: "doc_2", Content: "also kept", Score: 0.7},
	}}
	r := NewRetriever(fs, nil)

	passages, err := r.Retrieve(context.Background(), model.ModeBookWide, []float32{0.1}, "")
	require.NoError(t, err)
	require.Len(t, passages, 2)

	// Ordinals stay dense after the drop
	assert.Equal(t, "chunk_1", passages[0].ID)
	assert.Equal(t, 0, passages[0].Ordinal)
	assert.Equal(t, "chunk_3", passages[1].ID)
	assert.Equal(t, 1, passages[1].Ordinal)
}

func TestRetrieveWrapsStoreError(t *testing.T) {
	fs := &fakeStore{searchErr: errors.New("connection refused")}
	r := NewRetriever(fs, nil)

	passages, err := r.Retrieve(context.Background(), model.ModeBookWide, []float32{0.1}, "")
	assert.Nil(t, passages)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetrievalUnavailable))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRetrieveEmptyIndexReturnsEmptySet(t *testing.T) {
	fs := &fakeStore{}
	r := NewRetriever(fs, nil)

	passages, err := r.Retrieve(context.Background(), model.ModeBookWide, []float32{0.1}, "")
	require.NoError(t, err)
	assert.Empty(t, passages)
}
