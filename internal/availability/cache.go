package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache keeps per-day slot listings in Redis, or in process memory when no
// Redis is configured.
type Cache struct {
	redis *redis.Client
	local *gocache.Cache
	ttl   time.Duration
}

// NewCache returns nil when no client is configured, which disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{redis: client, ttl: ttl}
}

// NewLocalCache keeps listings in memory. Invalidation only reaches this
// process, so other instances may serve a listing for up to ttl.
func NewLocalCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{local: gocache.New(ttl, 2*ttl), ttl: ttl}
}

func (c *Cache) key(date string) string {
	return fmt.Sprintf("availability:slots:%s", date)
}

// Get returns the cached slots and whether the key was present.
func (c *Cache) Get(ctx context.Context, date string) ([]Slot, bool, error) {
	if c.local != nil {
		v, ok := c.local.Get(c.key(date))
		if !ok {
			return nil, false, nil
		}
		return append([]Slot(nil), v.([]Slot)...), true, nil
	}
	data, err := c.redis.Get(ctx, c.key(date)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("availability: cache get: %w", err)
	}
	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false, fmt.Errorf("availability: cache decode: %w", err)
	}
	return slots, true, nil
}

func (c *Cache) Set(ctx context.Context, date string, slots []Slot) error {
	if c.local != nil {
		c.local.Set(c.key(date), append([]Slot(nil), slots...), gocache.DefaultExpiration)
		return nil
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("availability: cache encode: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(date), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("availability: cache set: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, date string) error {
	if c.local != nil {
		c.local.Delete(c.key(date))
		return nil
	}
	if err := c.redis.Del(ctx, c.key(date)).Err(); err != nil {
		return fmt.Errorf("availability: cache invalidate: %w", err)
	}
	return nil
}
