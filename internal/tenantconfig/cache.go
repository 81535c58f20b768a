package tenantconfig

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/halcyondata/graphgate/internal/metrics"
)

// DefaultTTL is the cache lifetime used when the caller passes zero.
const DefaultTTL = 30 * time.Second

// Cache is a read-through, write-through cache over a Store. Cold reads for
// the same tenant/key collapse into a single backing-store call via
// singleflight, so a burst of queries after an expiry does not stampede the
// store. Writes go to the store first, then invalidate the cached entry.
type Cache struct {
	store Store
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cachedEntry
	// gens is bumped by invalidation so an in-flight load that started
	// before a write cannot re-cache the pre-write value.
	gens map[string]uint64

	group singleflight.Group

	// now is swappable in tests.
	now func() time.Time
}

type cachedEntry struct {
	entry     *Entry
	expiresAt time.Time
}

// NewCache wraps the given store with a TTL cache.
func NewCache(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		entries: make(map[string]cachedEntry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

// Get returns the cached entry when fresh, otherwise loads it from the
// backing store. Concurrent cold reads for the same tenant/key share one
// store call.
func (c *Cache) Get(ctx context.Context, tenantID, key string) (*Entry, error) {
	ck := memKey(tenantID, key)

	if e, ok := c.lookup(ck); ok {
		metrics.ConfigCacheOps.WithLabelValues("hit").Inc()
		cp := *e
		return &cp, nil
	}
	metrics.ConfigCacheOps.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(ck, func() (interface{}, error) {
		// Double-check inside the flight: another goroutine may have
		// populated the entry while this one was queued.
		if e, ok := c.lookup(ck); ok {
			return e, nil
		}
		gen := c.generation(ck)
		e, err := c.store.Get(ctx, tenantID, key)
		if err != nil {
			return nil, err
		}
		c.put(ck, e, gen)
		return e, nil
	})
	if err != nil {
		metrics.ConfigCacheOps.WithLabelValues("error").Inc()
		return nil, err
	}
	e, ok := v.(*Entry)
	if !ok {
		return nil, fmt.Errorf("unexpected type from config load flight: %T", v)
	}
	cp := *e
	return &cp, nil
}

// Put writes through to the backing store and drops the cached entry so the
// next read observes the new value.
func (c *Cache) Put(ctx context.Context, entry *Entry) error {
	if err := c.store.Put(ctx, entry); err != nil {
		return err
	}
	c.invalidate(memKey(entry.TenantID, entry.Key))
	return nil
}

// Delete removes the entry from the backing store and the cache.
func (c *Cache) Delete(ctx context.Context, tenantID, key string) error {
	if err := c.store.Delete(ctx, tenantID, key); err != nil {
		return err
	}
	c.invalidate(memKey(tenantID, key))
	return nil
}

// List is not cached; listings are administrative, not hot-path.
func (c *Cache) List(ctx context.Context, tenantID string) ([]*Entry, error) {
	return c.store.List(ctx, tenantID)
}

// Invalidate drops one tenant/key from the cache. Used when another process
// is known to have changed the backing store.
func (c *Cache) Invalidate(tenantID, key string) {
	c.invalidate(memKey(tenantID, key))
}

// InvalidateTenant drops every cached entry for a tenant.
func (c *Cache) InvalidateTenant(tenantID string) {
	prefix := tenantID + "\x00"

	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
			c.gens[k]++
		}
	}
}

func (c *Cache) lookup(ck string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ce, ok := c.entries[ck]
	if !ok || c.now().After(ce.expiresAt) {
		return nil, false
	}
	return ce.entry, true
}

func (c *Cache) generation(ck string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[ck]
}

// put caches the entry unless the key was invalidated after gen was read.
func (c *Cache) put(ck string, e *Entry, gen uint64) {
	cp := *e
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[ck] != gen {
		return
	}
	c.entries[ck] = cachedEntry{entry: &cp, expiresAt: c.now().Add(c.ttl)}
}

func (c *Cache) invalidate(ck string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ck)
	c.gens[ck]++
}

var _ Store = (*Cache)(nil)
