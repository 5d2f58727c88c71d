package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"reviewhub_backend/internal/cache"
	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/services/dto"
)

// FeedBatch - один загруженный из БД блок ленты
type FeedBatch struct {
	Items       []*dto.ReviewResponse `json:"items"`
	StartCursor string                `json:"startCursor,omitempty"`
	NextCursor  string                `json:"nextCursor,omitempty"`
	HasMore     bool                  `json:"hasMore"`
	TotalCount  int64                 `json:"totalCount"`
}

// BatchCache хранит блоки ленты; версия магазина растёт при каждом создании/удалении отзыва
type BatchCache interface {
	FeedInvalidator
	Version(ctx context.Context, shopID string) int64
	Get(ctx context.Context, key string) (*FeedBatch, bool)
	Set(ctx context.Context, key string, batch *FeedBatch)
}

func feedBatchKey(shopID string, version int64, order string, filter, index int) string {
	return fmt.Sprintf("feed:%s:v%d:%s:%d:%d", shopID, version, order, filter, index)
}

// anchoredBatchKey - блок, начатый курсором клиента, кэшируется по самому курсору
func anchoredBatchKey(shopID string, version int64, order string, filter int, cursor string) string {
	return fmt.Sprintf("feed:%s:v%d:%s:%d:c:%s", shopID, version, order, filter, cursor)
}

func feedVersionKey(shopID string) string {
	return "feed:" + shopID + ":version"
}

// noopBatchCache - без Redis каждая страница читается из БД
type noopBatchCache struct{}

func NewNoopBatchCache() BatchCache { return noopBatchCache{} }

func (noopBatchCache) InvalidateShop(context.Context, string)         {}
func (noopBatchCache) Version(context.Context, string) int64          { return 0 }
func (noopBatchCache) Get(context.Context, string) (*FeedBatch, bool) { return nil, false }
func (noopBatchCache) Set(context.Context, string, *FeedBatch)        {}

type redisBatchCache struct {
	redis *cache.Redis
	ttl   time.Duration
}

// NewRedisBatchCache - ошибки Redis не ломают ленту: промах кэша и чтение из БД
func NewRedisBatchCache(redis *cache.Redis, ttl time.Duration) BatchCache {
	return &redisBatchCache{redis: redis, ttl: ttl}
}

func (c *redisBatchCache) InvalidateShop(ctx context.Context, shopID string) {
	if _, err := c.redis.Incr(ctx, feedVersionKey(shopID)); err != nil {
		logger.CtxWarn(ctx, "failed to bump feed version", "shop_id", shopID, "error", err)
	}
}

func (c *redisBatchCache) Version(ctx context.Context, shopID string) int64 {
	raw, err := c.redis.Get(ctx, feedVersionKey(shopID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.CtxWarn(ctx, "failed to read feed version", "shop_id", shopID, "error", err)
		}
		return 0
	}
	v, _ := strconv.ParseInt(raw, 10, 64)
	return v
}

func (c *redisBatchCache) Get(ctx context.Context, key string) (*FeedBatch, bool) {
	raw, err := c.redis.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.CtxWarn(ctx, "feed cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var batch FeedBatch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return nil, false
	}
	return &batch, true
}

func (c *redisBatchCache) Set(ctx context.Context, key string, batch *FeedBatch) {
	raw, err := json.Marshal(batch)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, raw, c.ttl); err != nil {
		logger.CtxWarn(ctx, "feed cache write failed", "key", key, "error", err)
	}
}
