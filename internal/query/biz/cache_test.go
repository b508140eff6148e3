package biz

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/bookqa/internal/model"
)

func testCacheConfig() *ResponseCacheConfig {
	return &ResponseCacheConfig{
		Enabled:   true,
		TTL:       time.Minute,
		KeyPrefix: "bookqa:test:",
	}
}

func TestCacheKeyIsStable(t *testing.T) {
	c := NewResponseCache(nil, testCacheConfig())

	req := &model.QueryRequest{
		Question: "What is the theme?",
		Mode:     model.ModeBookWide,
	}

	key1 := c.cacheKey(req)
	key2 := c.cacheKey(&model.QueryRequest{Question: "What is the theme?", Mode: model.ModeBookWide})
	assert.Equal(t, key1, key2)
	assert.Contains(t, key1, "bookqa:test:")

	// Request identity fields do not affect the key
	sameQuestion := &model.QueryRequest{
		ID:       "different-id",
		Question: "What is the theme?",
		Mode:     model.ModeBookWide,
		UserID:   "reader-42",
	}
	assert.Equal(t, key1, c.cacheKey(sameQuestion))
}

func TestCacheKeyVariesBySemantics(t *testing.T) {
	c := NewResponseCache(nil, testCacheConfig())

	base := &model.QueryRequest{Question: "What is the theme?", Mode: model.ModeBookWide}
	otherQuestion := &model.QueryRequest{Question: "Who is the hero?", Mode: model.ModeBookWide}
	otherMode := &model.QueryRequest{Question: "What is the theme?", Mode: model.ModeSelectedText, SelectedText: "text"}

	assert.NotEqual(t, c.cacheKey(base), c.cacheKey(otherQuestion))
	assert.NotEqual(t, c.cacheKey(base), c.cacheKey(otherMode))
}

// newTestRedis connects to a local Redis, skipping when unavailable.
func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()

	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return client
}

func TestCacheRoundTrip(t *testing.T) {
	client := newTestRedis(t)
	defer client.Close()

	c := NewResponseCache(client, testCacheConfig())
	defer func() { _ = c.Clear(context.Background()) }()

	ctx := context.Background()
	req := &model.QueryRequest{
		ID:       "q1",
		Question: "What is cached?",
		Mode:     model.ModeBookWide,
	}

	// Miss before anything is stored
	got, err := c.Get(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, got)

	confidence := 0.85
	resp := model.NewSuccessResponse("q1", "A cached answer.", []model.Citation{
		{ID: "cit_resp_q1_0", ResponseID: "resp_q1", DocumentID: "chapter_1", Chapter: "Chapter 1", Section: "General", RelevanceScore: 0.9, TextSnippet: "snippet"},
	}, []string{"chunk_1"}, &confidence, 12.5)

	require.NoError(t, c.Set(ctx, req, resp))

	got, err = c.Get(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusSuccess, got.Status)
	require.NotNil(t, got.Answer)
	assert.Equal(t, "A cached answer.", *got.Answer)
	require.Len(t, got.Citations, 1)
}

func TestCacheIgnoresNonSuccessResponses(t *testing.T) {
	client := newTestRedis(t)
	defer client.Close()

	c := NewResponseCache(client, testCacheConfig())
	defer func() { _ = c.Clear(context.Background()) }()

	ctx := context.Background()
	req := &model.QueryRequest{
		ID:       "q2",
		Question: "Is this refusal cached?",
		Mode:     model.ModeBookWide,
	}

	refusal := model.NewRefusalResponse("q2", model.ReasonNoRelevantContext, "nothing found")
	require.NoError(t, c.Set(ctx, req, refusal))

	got, err := c.Get(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheDisabled(t *testing.T) {
	c := NewResponseCache(nil, &ResponseCacheConfig{Enabled: false})

	_, err := c.Get(context.Background(), &model.QueryRequest{Question: "q", Mode: model.ModeBookWide})
	assert.Error(t, err)

	assert.NoError(t, c.Set(context.Background(), nil, nil))
	assert.NoError(t, c.Clear(context.Background()))
}
