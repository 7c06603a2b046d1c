package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// RedisCache stores entries in a shared redis with native expiry. If redis is
// unreachable at construction the cache degrades to always-miss.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisCache(url string, ttl time.Duration, log *zap.Logger) *RedisCache {
	log = log.Named("cache.redis")
	c := &RedisCache{ttl: ttl, log: log}

	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("invalid redis url, cache disabled", zap.String("url", url), zap.Error(err))
		return c
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, cache disabled", zap.String("addr", opt.Addr), zap.Error(err))
		_ = client.Close()
		return c
	}

	log.Info("redis cache connected", zap.String("addr", opt.Addr))
	c.client = client
	return c
}

// Available reports whether the cache reached redis at construction.
func (c *RedisCache) Available() bool {
	return c.client != nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug("redis get failed", zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.log.Debug("redis set failed", zap.Error(err))
	}
}

func (c *RedisCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
