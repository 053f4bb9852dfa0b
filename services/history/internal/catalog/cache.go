package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores snapshot lookups. Implementations must be safe for concurrent
// use.
type Cache interface {
	// Get unmarshals the cached value for key into dest and reports whether
	// it was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// RedisCache stores values as JSON with a shared TTL.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(dsn string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}
	return &RedisCache{Client: redis.NewClient(opt), TTL: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, b, c.TTL).Err()
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache with per-entry expiry, used when no
// Redis DSN is configured.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryCache{items: make(map[string]memoryItem), ttl: ttl}
}

func (c *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(it.expiresAt) {
		c.mu.Lock()
		if cur, still := c.items[key]; still && time.Now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(it.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[key] = memoryItem{data: b, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// CachedProvider wraps a Provider with a snapshot cache. Cache failures are
// logged and treated as misses so the catalog stays reachable.
type CachedProvider struct {
	next  Provider
	cache Cache
	log   *zap.Logger
}

func NewCachedProvider(next Provider, cache Cache, log *zap.Logger) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, log: log}
}

func (p *CachedProvider) Snapshot(ctx context.Context, mediaID, mediaType string) (Snapshot, error) {
	key := "history:catalog:" + mediaType + ":" + mediaID

	var snap Snapshot
	ok, err := p.cache.Get(ctx, key, &snap)
	if err != nil {
		p.log.Warn("catalog cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return snap, nil
	}

	snap, err = p.next.Snapshot(ctx, mediaID, mediaType)
	if err != nil {
		return Snapshot{}, err
	}
	if err := p.cache.Set(ctx, key, snap); err != nil {
		p.log.Warn("catalog cache set failed", zap.String("key", key), zap.Error(err))
	}
	return snap, nil
}
