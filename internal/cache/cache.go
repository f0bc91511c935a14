package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache holds raw upstream payloads for a short window. Implementations never
// fail the caller: anything that goes wrong is reported as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// LRU is a bounded in-process cache. Entries expire after the smaller of the
// per-entry ttl and the ttl the cache was built with.
type LRU struct {
	entries *expirable.LRU[string, entry]
	ttl     time.Duration
	now     func() time.Time
}

func NewLRU(maxEntries int, ttl time.Duration) *LRU {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &LRU{
		entries: expirable.NewLRU[string, entry](maxEntries, nil, ttl),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *LRU) Get(_ context.Context, key string) ([]byte, bool) {
	if c == nil || c.entries == nil {
		cacheLookupsTotal.WithLabelValues("unavailable").Inc()
		return nil, false
	}
	item, ok := c.entries.Get(key)
	if !ok {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		c.entries.Remove(key)
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	cacheLookupsTotal.WithLabelValues("hit").Inc()
	return item.value, true
}

func (c *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if c == nil || c.entries == nil {
		return
	}
	if ttl <= 0 || (c.ttl > 0 && ttl > c.ttl) {
		ttl = c.ttl
	}
	item := entry{value: value}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.entries.Add(key, item)
}

func (c *LRU) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

// Nop disables caching; every lookup misses.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) {
	cacheLookupsTotal.WithLabelValues("disabled").Inc()
	return nil, false
}

func (Nop) Set(context.Context, string, []byte, time.Duration) {}
