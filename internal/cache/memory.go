package cache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"

	"time"
)

// memoryClient implementa Client sobre go-cache.
// Útil para desarrollo y testing.
type memoryClient struct {
	prefix string
	store  *gocache.Cache
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		prefix: prefix,
		store:  gocache.New(gocache.NoExpiration, 5*time.Minute),
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.store.Get(c.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (c *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	d := ttl
	if d == 0 {
		d = gocache.NoExpiration
	}
	c.store.Set(c.key(key), value, d)
	return nil
}

func (c *memoryClient) Delete(ctx context.Context, key string) error {
	c.store.Delete(c.key(key))
	return nil
}

func (c *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.store.Get(c.key(key))
	return ok, nil
}

func (c *memoryClient) Ping(ctx context.Context) error { return nil }

func (c *memoryClient) Close() error { return nil }
