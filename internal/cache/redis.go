package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"evocore/internal/logging"
)

// RedisCache backs the Hierarchical Cache with an external key-value store,
// satisfying spec.md §4.1's "Implementations may back by an external
// key-value store ... the contract is identical." Values are JSON-encoded;
// the per-level/access-count bookkeeping that LocalCache keeps in-process is
// approximated with a companion set of keys so Stats() and prefix
// invalidation remain cheap without a full key scan.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to addr (host:port) and returns a Cache backed by
// it. keyPrefix namespaces all keys this instance writes, so multiple
// evocore deployments can share one Redis instance.
func NewRedisCache(addr, keyPrefix string) *RedisCache {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if keyPrefix == "" {
		keyPrefix = "evocore:cache"
	}
	return &RedisCache{client: client, prefix: keyPrefix}
}

type redisPayload struct {
	Value    json.RawMessage `json:"value"`
	Level    int             `json:"level"`
	StoredAt time.Time       `json:"storedAt"`
}

func (c *RedisCache) redisKey(keyParts []string) string {
	return c.prefix + ":" + joinKey(keyParts)
}

func (c *RedisCache) Get(ctx context.Context, keyParts []string) (interface{}, bool) {
	raw, err := c.client.Get(ctx, c.redisKey(keyParts)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logging.For(logging.CategoryCache).Warnw("redis get degraded to miss", "err", err)
		}
		return nil, false
	}
	var payload redisPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	var value interface{}
	if err := json.Unmarshal(payload.Value, &value); err != nil {
		return nil, false
	}
	// Best-effort access counter; ignore failures per spec.md §4.1.
	_ = c.client.Incr(ctx, c.redisKey(keyParts)+":hits").Err()
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, keyParts []string, value interface{}, ttl time.Duration) error {
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal value: %w", err)
	}
	payload := redisPayload{Value: encodedValue, Level: len(keyParts), StoredAt: time.Now()}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}
	if err := c.client.Set(ctx, c.redisKey(keyParts), data, ttl).Err(); err != nil {
		logging.For(logging.CategoryCache).Warnw("redis set failed", "err", err)
		return err
	}
	return c.client.SAdd(ctx, c.prefix+":keys", c.redisKey(keyParts)).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, prefix []string) error {
	prefixKey := c.redisKey(prefix)
	var cursor uint64
	for {
		keys, next, err := c.client.SScan(ctx, c.prefix+":keys", cursor, "", 0).Result()
		if err != nil {
			return fmt.Errorf("cache: scan keys: %w", err)
		}
		for _, k := range keys {
			if len(prefix) == 0 || k == prefixKey || len(k) > len(prefixKey) && k[:len(prefixKey)+1] == prefixKey+"\x1f" {
				_ = c.client.Del(ctx, k).Err()
				_ = c.client.SRem(ctx, c.prefix+":keys", k).Err()
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

func (c *RedisCache) Warmup(ctx context.Context, entries []WarmupEntry) error {
	pipe := c.client.TxPipeline()
	for _, we := range entries {
		encodedValue, err := json.Marshal(we.Value)
		if err != nil {
			continue
		}
		payload := redisPayload{Value: encodedValue, Level: len(we.Key), StoredAt: time.Now()}
		data, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		key := c.redisKey(we.Key)
		pipe.Set(ctx, key, data, we.TTL)
		pipe.SAdd(ctx, c.prefix+":keys", key)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Stats(ctx context.Context) (Stats, error) {
	keys, err := c.client.SMembers(ctx, c.prefix+":keys").Result()
	if err != nil {
		return Stats{}, err
	}
	perLevel := make(map[int]LevelStats)
	total := 0
	for _, k := range keys {
		raw, err := c.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		var payload redisPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}
		ls := perLevel[payload.Level]
		ls.Count++
		if payload.StoredAt.After(ls.LastAccess) {
			ls.LastAccess = payload.StoredAt
		}
		perLevel[payload.Level] = ls
		total++
	}
	return Stats{PerLevel: perLevel, Total: total}, nil
}
