package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
)

const (
	redisKeyPrefix = "marketgate:record:"
	redisHitsKey   = "marketgate:record_hits"
)

// RedisCache is a RecordCache backed by Redis, for deployments that want the
// gate's cache shared across processes. TTL expiry is delegated to Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, symbol string) (*models.NormalizedRecord, bool, error) {
	b, err := c.client.Get(ctx, redisKeyPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var rec models.NormalizedRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, false, fmt.Errorf("redis payload decode: %w", err)
	}
	// best effort; a failed hit bump must not fail the read
	_ = c.client.Incr(ctx, redisHitsKey).Err()
	return &rec, true, nil
}

func (c *RedisCache) Put(ctx context.Context, symbol string, record *models.NormalizedRecord, ttl time.Duration) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis payload encode: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+symbol, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Stats(ctx context.Context) (repository.CacheStats, error) {
	var s repository.CacheStats

	keys, err := c.client.Keys(ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return s, fmt.Errorf("redis keys: %w", err)
	}
	s.Entries = len(keys)

	hits, err := c.client.Get(ctx, redisHitsKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return s, fmt.Errorf("redis hits: %w", err)
	}
	s.TotalHits = hits
	return s, nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
