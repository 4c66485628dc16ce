// Package cache memoises expensive analysis results across runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by Get when no value is stored under the key.
var ErrCacheMiss = errors.New("cache miss")

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "surveyeval"

// ResultCache stores JSON-encodable analysis results.
type ResultCache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any) error
}

// Key builds "surveyeval:<analysis>:<input sha256>:<params digest>".
func Key(analysis, inputChecksum string, params ...any) string {
	h := sha256.New()
	for _, p := range params {
		fmt.Fprintf(h, "%v|", p)
	}
	digest := hex.EncodeToString(h.Sum(nil))[:16]
	return strings.Join([]string{KeyPrefix, analysis, inputChecksum, digest}, ":")
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) error { return ErrCacheMiss }
func (NopCache) Set(context.Context, string, any) error { return nil }

// RedisCache keeps results in Redis with an in-process layer in front.
type RedisCache struct {
	redisClient *redis.Client
	logger      *zap.Logger
	ttl         time.Duration

	mu     sync.RWMutex
	memory map[string][]byte
}

// NewRedisCache creates a cache backed by client. A zero ttl keeps entries forever.
func NewRedisCache(redisClient *redis.Client, logger *zap.Logger, ttl time.Duration) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		redisClient: redisClient,
		logger:      logger,
		ttl:         ttl,
		memory:      make(map[string][]byte),
	}
}

// Ping checks that Redis is reachable.
func (rc *RedisCache) Ping(ctx context.Context) error {
	if err := rc.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach Redis: %w", err)
	}
	return nil
}

// Get decodes the value under key into dst.
func (rc *RedisCache) Get(ctx context.Context, key string, dst any) error {
	rc.mu.RLock()
	data, ok := rc.memory[key]
	rc.mu.RUnlock()

	if !ok {
		s, err := rc.redisClient.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrCacheMiss
			}
			return fmt.Errorf("failed to retrieve result from Redis: %w", err)
		}
		data = []byte(s)
		rc.mu.Lock()
		rc.memory[key] = data
		rc.mu.Unlock()
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return nil
}

// Set encodes value and stores it under key.
func (rc *RedisCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	rc.mu.Lock()
	rc.memory[key] = data
	rc.mu.Unlock()

	if err := rc.redisClient.Set(ctx, key, data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result in Redis: %w", err)
	}
	rc.logger.Debug("Result cached", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// Fetch returns the cached value under key or computes and stores it. Cache
// errors other than a miss are logged and the value is computed anyway.
func Fetch[T any](ctx context.Context, c ResultCache, logger *zap.Logger, key string, compute func() (T, error)) (T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var v T
	err := c.Get(ctx, key, &v)
	switch {
	case err == nil:
		logger.Debug("Cache hit", zap.String("key", key))
		return v, nil
	case !errors.Is(err, ErrCacheMiss):
		logger.Warn("Cache unavailable, computing result", zap.String("key", key), zap.Error(err))
	}

	v, err = compute()
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		logger.Warn("Failed to cache result", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
