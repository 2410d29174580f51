package cache

import "evocore/internal/config"

// New constructs the Cache backend selected by cfg. An unreachable Redis
// backend is not probed here; per spec.md §7 (ExternalServiceError) callers
// that need degrade-to-local behavior should wrap Get/Set and fall back to
// a LocalCache on persistent errors.
func New(cfg config.CacheConfig) Cache {
	if cfg.Backend == "redis" && cfg.RedisURL != "" {
		return NewRedisCache(cfg.RedisURL, "evocore:cache")
	}
	return NewLocalCache()
}
