// Package idempotency caches terminal transaction outcomes in Redis so that
// replays of a reference id skip the database. The ledger's unique reference
// id stays the source of truth; the cache is best effort.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/ledger-engine/internal/models"
	"github.com/ayo6706/ledger-engine/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "ledger:replay"

// DefaultTTL keeps replay entries for a day.
const DefaultTTL = 24 * time.Hour

type Cache struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewCache(redis redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{redis: redis, ttl: ttl}
}

// Get returns the cached outcome for a reference id. Misses and Redis
// failures both report false.
func (c *Cache) Get(ctx context.Context, referenceID string) (*models.TransactionResponse, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	val, err := c.redis.Get(ctx, redisKey(referenceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observability.IncrementReplayCache("miss")
		} else {
			observability.IncrementReplayCache("error")
			zap.L().Warn("redis replay lookup failed", zap.String("reference_id", referenceID), zap.Error(err))
		}
		return nil, false
	}

	var resp models.TransactionResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		observability.IncrementReplayCache("error")
		zap.L().Warn("discarding malformed replay entry", zap.String("reference_id", referenceID), zap.Error(err))
		return nil, false
	}
	observability.IncrementReplayCache("hit")
	return &resp, true
}

// Put stores a terminal outcome. Existing entries are never overwritten.
func (c *Cache) Put(ctx context.Context, resp *models.TransactionResponse) {
	if c == nil || c.redis == nil || resp == nil {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		zap.L().Warn("marshal replay entry", zap.Error(err))
		return
	}
	if err := c.redis.SetNX(ctx, redisKey(resp.ReferenceID), payload, c.ttl).Err(); err != nil {
		observability.IncrementReplayCache("error")
		zap.L().Warn("redis replay cache set failed", zap.String("reference_id", resp.ReferenceID), zap.Error(err))
		return
	}
	observability.IncrementReplayCache("stored")
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

func redisKey(referenceID string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, referenceID)
}
