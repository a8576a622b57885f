package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ErrMiss reports that a key is not cached.
var ErrMiss = errors.New("cache: miss")

// Store is a byte oriented key/value backend with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisStore keeps entries in Redis so every console replica shares them.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return payload, err
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore builds an in-process store; expired entries are swept every cleanup interval.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, cleanup)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v.([]byte), nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.items.Set(key, value, ttl)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.items.Delete(k)
	}
	return nil
}

// Catalog caches read-only reference data (permission and role catalogs) as JSON.
type Catalog struct {
	store  Store
	ttl    time.Duration
	prefix string
	logger *slog.Logger
	loads  singleflight.Group
}

// NewCatalog instantiates the cache helper. A nil store disables caching.
func NewCatalog(store Store, ttl time.Duration, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{store: store, ttl: ttl, prefix: "console:catalog", logger: logger}
}

// Key composes a namespaced cache key.
func (c *Catalog) Key(parts ...string) string {
	prefix := "console:catalog"
	if c != nil {
		prefix = c.prefix
	}
	return prefix + ":" + strings.Join(parts, ":")
}

// FetchJSON loads a cached value or populates it using the loader.
// Cache backend failures are logged and fall through to the loader.
func (c *Catalog) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.store == nil {
		return loadInto(ctx, dest, loader)
	}
	payload, err := c.store.Get(ctx, key)
	if err == nil {
		if err := json.Unmarshal(payload, dest); err == nil {
			return nil
		}
		c.logger.Warn("catalog cache decode", slog.String("key", key))
	} else if !errors.Is(err, ErrMiss) {
		c.logger.Warn("catalog cache get", slog.String("key", key), slog.Any("error", err))
	}
	raw, err := c.populate(ctx, key, loader)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// populate runs loader once per key for all concurrent misses and stores the result. A caller
// whose ctx ends stops waiting; the shared load keeps going for the others.
func (c *Catalog) populate(ctx context.Context, key string, loader func(context.Context) (any, error)) ([]byte, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(key, func() (any, error) {
		value, err := loader(detached)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(detached, key, raw, c.ttl); err != nil {
			c.logger.Warn("catalog cache set", slog.String("key", key), slog.Any("error", err))
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Invalidate drops cached entries.
func (c *Catalog) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, keys...)
}

func loadInto(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
