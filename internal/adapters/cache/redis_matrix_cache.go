package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-route-service/internal/ports"
)

// RedisMatrixCache shares travel costs between service instances. Entries
// expire so stale road data eventually falls out.
type RedisMatrixCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMatrixCache(client *redis.Client, ttl time.Duration) *RedisMatrixCache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisMatrixCache{client: client, ttl: ttl}
}

// NewRedisClient builds a client with sane timeouts and verifies
// connectivity before handing it out.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return client, nil
}

func redisKey(k ports.PairKey) string {
	return "matrix:" + k.From + ">" + k.To
}

func (c *RedisMatrixCache) GetMany(ctx context.Context, keys []ports.PairKey) (map[ports.PairKey]ports.CostEntry, error) {
	out := make(map[ports.PairKey]ports.CostEntry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = redisKey(k)
	}

	values, err := c.client.MGet(ctx, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("get matrix cache: mget: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var meters, seconds int
		if _, err := fmt.Sscanf(raw, "%d|%d", &meters, &seconds); err != nil {
			// Malformed entries are treated as misses.
			continue
		}
		out[keys[i]] = ports.CostEntry{DistanceMeters: meters, DurationSeconds: seconds}
	}
	return out, nil
}

func (c *RedisMatrixCache) PutMany(ctx context.Context, entries map[ports.PairKey]ports.CostEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for k, e := range entries {
		pipe.Set(ctx, redisKey(k), fmt.Sprintf("%d|%d", e.DistanceMeters, e.DurationSeconds), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert matrix cache: pipeline exec: %w", err)
	}
	return nil
}
