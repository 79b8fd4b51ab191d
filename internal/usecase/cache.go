package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/logging"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/repository"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/retry"
)

// Cache abstracts the Redis operations used by the use cases to make testing easier.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisCache is a concrete implementation backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a new Redis-backed cache adapter.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set writes a value to Redis.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get reads a value from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// Incr atomically increments a counter in Redis.
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// historyCache keeps serialised per-user history in the cache.
// Entries are keyed by a per-user generation that is bumped after every
// persisted record, so a list read before the bump can only ever land on a
// key that is no longer consulted. A nil Cache disables it.
type historyCache struct {
	cache  Cache
	ttl    time.Duration
	policy retry.Policy
	logger *zap.Logger
}

func generationKey(userID uint) string {
	return fmt.Sprintf("history:gen:%d", userID)
}

func historyKey(userID uint, generation int64) string {
	return fmt.Sprintf("history:%d:%d", userID, generation)
}

// generation returns the user's current history generation. ok is false when
// the cache is disabled or unreadable, in which case it must not be written.
func (h *historyCache) generation(ctx context.Context, requestID string, userID uint) (gen int64, ok bool) {
	if h.cache == nil {
		return 0, false
	}

	var raw string
	err := retry.Do(ctx, h.logger, h.policy, "cache.get.history_generation", requestID, func() error {
		value, err := h.cache.Get(ctx, generationKey(userID))
		if err != nil {
			return err
		}
		raw = value
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		logging.WithOperation(h.logger, "cache.get.history_generation", requestID).Warn("failed to read cache", zap.Error(err))
		return 0, false
	}

	gen, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logging.WithOperation(h.logger, "cache.get.history_generation", requestID).Warn("invalid history generation", zap.String("value", raw))
		return 0, false
	}
	return gen, true
}

// get returns the cached history for generation gen and whether it was a hit.
func (h *historyCache) get(ctx context.Context, requestID string, userID uint, gen int64) ([]repository.ClassificationResult, bool) {
	if h.cache == nil {
		return nil, false
	}

	var raw string
	err := retry.Do(ctx, h.logger, h.policy, "cache.get.history", requestID, func() error {
		value, err := h.cache.Get(ctx, historyKey(userID, gen))
		if err != nil {
			return err
		}
		raw = value
		return nil
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.WithOperation(h.logger, "cache.get.history", requestID).Warn("failed to read cache", zap.Error(err))
		}
		return nil, false
	}

	var history []repository.ClassificationResult
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		logging.WithOperation(h.logger, "cache.get.history", requestID).Warn("failed to decode cached history", zap.Error(err))
		return nil, false
	}
	return history, true
}

// put stores history under generation gen, which must have been read before
// the history was loaded from the repository.
func (h *historyCache) put(ctx context.Context, requestID string, userID uint, gen int64, history []repository.ClassificationResult) {
	if h.cache == nil {
		return
	}

	serialized, err := json.Marshal(history)
	if err != nil {
		logging.WithOperation(h.logger, "cache.set.history", requestID).Error("failed to serialize history", zap.Error(err))
		return
	}

	if err := retry.Do(ctx, h.logger, h.policy, "cache.set.history", requestID, func() error {
		return h.cache.Set(ctx, historyKey(userID, gen), string(serialized), h.ttl)
	}); err != nil {
		logging.WithOperation(h.logger, "cache.set.history", requestID).Warn("failed to cache history", zap.Error(err))
	}
}

// invalidate moves the user to a new generation. Entries written for older
// generations are never read again and expire with their TTL.
func (h *historyCache) invalidate(ctx context.Context, requestID string, userID uint) {
	if h.cache == nil {
		return
	}

	if err := retry.Do(ctx, h.logger, h.policy, "cache.incr.history_generation", requestID, func() error {
		_, err := h.cache.Incr(ctx, generationKey(userID))
		return err
	}); err != nil {
		logging.WithOperation(h.logger, "cache.incr.history_generation", requestID).Warn("failed to invalidate history", zap.Error(err))
	}
}
