package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/bookqa/internal/model"
)

// ResponseCacheConfig configures the response cache.
type ResponseCacheConfig struct {
	// Enabled toggles caching.
	Enabled bool
	// TTL is the cache entry expiry.
	TTL time.Duration
	// KeyPrefix is the cache key prefix.
	KeyPrefix string
}

// ResponseCache caches successful query responses in Redis. Refusals and
// errors are never cached; they are cheap to recompute and should reflect
// the current state of the corpus and providers.
type ResponseCache struct {
	redis  *goredis.Client
	config *ResponseCacheConfig
}

// NewResponseCache creates a response cache instance.
func NewResponseCache(redis *goredis.Client, config *ResponseCacheConfig) *ResponseCache {
	if config == nil {
		config = &ResponseCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "bookqa:query:",
		}
	}
	return &ResponseCache{
		redis:  redis,
		config: config,
	}
}

// cacheKey hashes the semantic identity of a query: mode, question, and
// selected text. Two requests with the same key get the same answer.
func (c *ResponseCache) cacheKey(req *model.QueryRequest) string {
	hash := sha256.Sum256([]byte(string(req.Mode) + "|" + req.Question + "|" + req.SelectedText))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get fetches a cached response. A miss returns (nil, nil).
func (c *ResponseCache) Get(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error) {
	if !c.config.Enabled || c.redis == nil {
		return nil, fmt.Errorf("cache not enabled or redis not available")
	}

	key := c.cacheKey(req)

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			logger.Debugw("cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var resp model.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warnw("failed to unmarshal cached response", "error", err.Error(), "key", key)
		// Drop the corrupt entry
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Infow("cache hit", "key", key, "query_id", resp.QueryID)
	return &resp, nil
}

// Set stores a successful response. Non-success responses are ignored.
func (c *ResponseCache) Set(ctx context.Context, req *model.QueryRequest, resp *model.QueryResponse) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}
	if resp == nil || resp.Status != model.StatusSuccess {
		return nil
	}

	key := c.cacheKey(req)

	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warnw("failed to marshal response for caching", "error", err.Error())
		return err
	}

	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", key)
		return err
	}

	logger.Infow("cached query response", "key", key, "ttl", c.config.TTL)
	return nil
}

// Clear removes every cached response under the configured prefix.
func (c *ResponseCache) Clear(ctx context.Context) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	deletedCount := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
		} else {
			deletedCount++
		}
	}

	if err := iter.Err(); err != nil {
		logger.Warnw("error during cache scan", "error", err.Error())
		return err
	}

	logger.Infow("cleared response cache", "deleted_count", deletedCount)
	return nil
}

// GetStats returns cache statistics.
func (c *ResponseCache) GetStats(ctx context.Context) (map[string]any, error) {
	if !c.config.Enabled || c.redis == nil {
		return map[string]any{
			"enabled": false,
		}, nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]any{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
