package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/avoss/projectwarden/internal/config"
	"github.com/redis/go-redis/v9"
)

const hiddenCountTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForHiddenCount generates the Redis key for a user's hidden-project count.
func (c *RedisCache) KeyForHiddenCount(userID string) string {
	return fmt.Sprintf("hidden:count:%s", userID)
}

func (c *RedisCache) UpdateHiddenCount(ctx context.Context, userID string, count int64) error {
	// Always refresh TTL when updating
	return c.Client.Set(ctx, c.KeyForHiddenCount(userID), count, hiddenCountTTL).Err()
}

// GetHiddenCount returns the cached count for userID. The bool reports a hit;
// a miss is not an error.
func (c *RedisCache) GetHiddenCount(ctx context.Context, userID string) (int64, bool, error) {
	key := c.KeyForHiddenCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, hiddenCountTTL).Err()
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// InvalidateHiddenCount drops the cached count so the next read repopulates
// from the database.
func (c *RedisCache) InvalidateHiddenCount(ctx context.Context, userID string) error {
	return c.Client.Del(ctx, c.KeyForHiddenCount(userID)).Err()
}
