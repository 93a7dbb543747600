package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/qiongbi/card-ledger/internal/adapter"
	"github.com/qiongbi/card-ledger/internal/logger"
)

// Cache stores serialized read-path responses with a TTL. Implementations
// degrade to misses on backend failures; callers never see cache errors.
type Cache interface {
	// Get unmarshals a cached value into dest; the bool reports a hit
	Get(ctx context.Context, key string, dest interface{}) bool

	// Set stores a value under key for the given TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)

	// Invalidate removes keys
	Invalidate(ctx context.Context, keys ...string)
}

// OffersListKey builds the cache key for an offer listing request
func OffersListKey(sources, carriers []string, limit, offset int) string {
	return fmt.Sprintf("offers:list:%s:%s:%d:%d",
		strings.Join(sources, ","), strings.Join(carriers, ","), limit, offset)
}

// ButtonsKey builds the cache key for an offer's order buttons
func ButtonsKey(offerID int64) string {
	return fmt.Sprintf("offers:buttons:%d", offerID)
}

// StatsKey is the cache key for the aggregated statistics response
const StatsKey = "stats:summary"

type redisCache struct {
	client adapter.RedisClient
}

// NewRedisCache creates a cache backed by Redis
func NewRedisCache(client adapter.RedisClient) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WarnCtx(ctx, "cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		logger.WarnCtx(ctx, "cache value unmarshal failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.WarnCtx(ctx, "cache value marshal failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		logger.WarnCtx(ctx, "cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *redisCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.WarnCtx(ctx, "cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

type noopCache struct{}

// NewNoopCache creates a cache that never hits, for deployments without Redis
func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string, interface{}) bool           { return false }
func (noopCache) Set(context.Context, string, interface{}, time.Duration) {}
func (noopCache) Invalidate(context.Context, ...string)                   {}
