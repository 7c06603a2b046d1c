package cache

import (
	"go.uber.org/zap"

	"askcode/config"
	"askcode/internal/port"
)

// New picks the cache backend: redis when a URL is configured, otherwise in-process.
func New(cfg config.CacheConfig, log *zap.Logger) port.Cache {
	if !cfg.Enabled {
		return Disabled{}
	}
	if cfg.RedisURL != "" {
		return NewRedisCache(cfg.RedisURL, cfg.TTL, log)
	}
	return NewMemoryCache(cfg.TTL)
}
