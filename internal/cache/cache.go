// ABOUTME: In-memory cache with TTL-based expiration
// ABOUTME: Thread-safe generic cache with a stoppable background sweep

package cache

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired entries are purged
const DefaultSweepInterval = 1 * time.Minute

type entry[V any] struct {
	data      V
	expiresAt time.Time
}

// Cache maps string keys to values of type V for a limited time
type Cache[V any] struct {
	store sync.Map
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

// New creates a cache and starts its sweep goroutine. Call Close to stop it.
func New[V any](ttl time.Duration) *Cache[V] {
	return NewWithSweep[V](ttl, DefaultSweepInterval)
}

// NewWithSweep is New with a custom sweep interval
func NewWithSweep[V any](ttl, sweep time.Duration) *Cache[V] {
	c := &Cache[V]{
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go c.startCleanup(sweep)
	return c
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.store.Load(key)
	if !ok {
		slog.Debug("Cache miss", "key", key)
		return zero, false
	}

	e := val.(entry[V])
	if time.Now().After(e.expiresAt) {
		c.store.CompareAndDelete(key, val)
		slog.Debug("Cache expired", "key", key)
		return zero, false
	}

	slog.Debug("Cache hit", "key", key)
	return e.data, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.store.Store(key, entry[V]{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	})
	slog.Debug("Cache set", "key", key, "ttl", ttl)
}

func (c *Cache[V]) Clear(key string) {
	c.store.Delete(key)
}

// Flush drops every entry
func (c *Cache[V]) Flush() {
	n := 0
	c.store.Range(func(key, _ any) bool {
		c.store.Delete(key)
		n++
		return true
	})
	slog.Debug("Cache flushed", "entries", n)
}

// Len counts entries, expired or not
func (c *Cache[V]) Len() int {
	n := 0
	c.store.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close stops the sweep goroutine
func (c *Cache[V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache[V]) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

func (c *Cache[V]) sweep(now time.Time) {
	c.store.Range(func(key, val any) bool {
		if now.After(val.(entry[V]).expiresAt) {
			c.store.CompareAndDelete(key, val)
		}
		return true
	})
}
