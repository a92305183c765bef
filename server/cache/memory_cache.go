package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	value       any
	expiresAt   time.Time
	lastUsed    time.Time
	accessCount int64
}

// MemoryCache is an in-process Cache with a size cap (LRU eviction) and a
// background sweep of expired entries.
type MemoryCache struct {
	items   map[string]*entry
	mu      sync.RWMutex
	maxSize int
	ttl     time.Duration
	logger  *zap.Logger
	sweep   *time.Ticker
	stopCh  chan struct{}
}

// NewMemoryCache creates a cache holding at most maxSize entries with the
// given default TTL.
func NewMemoryCache(maxSize int, ttl time.Duration, logger *zap.Logger) *MemoryCache {
	c := &MemoryCache{
		items:   make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	c.sweep = time.NewTicker(1 * time.Minute)
	go c.sweepExpired()
	return c
}

func (c *MemoryCache) Set(ctx context.Context, key string, value any) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

func (c *MemoryCache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictLRU()
	}

	now := time.Now()
	c.items[key] = &entry{
		value:       value,
		expiresAt:   now.Add(ttl),
		lastUsed:    now,
		accessCount: 1,
	}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, ErrCacheMiss
	}
	if time.Now().After(item.expiresAt) {
		delete(c.items, key)
		return nil, ErrCacheMiss
	}

	item.lastUsed = time.Now()
	item.accessCount++
	return item.value, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || time.Now().After(item.expiresAt) {
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	item, exists := c.items[key]
	if !exists || now.After(item.expiresAt) {
		c.items[key] = &entry{
			value:       int64(1),
			expiresAt:   now.Add(c.ttl),
			lastUsed:    now,
			accessCount: 1,
		}
		return 1, nil
	}

	count, ok := item.value.(int64)
	if !ok {
		count = 0
	}
	count++
	item.value = count
	item.lastUsed = now
	item.accessCount++
	return count, nil
}

func (c *MemoryCache) Stats(_ context.Context) (*Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	stats := &Stats{Items: len(c.items), MaxSize: c.maxSize}
	for _, item := range c.items {
		if now.After(item.expiresAt) {
			stats.Expired++
		}
		stats.Accesses += item.accessCount
	}
	return stats, nil
}

func (c *MemoryCache) Close() error {
	if c.sweep != nil {
		c.sweep.Stop()
	}
	close(c.stopCh)
	return nil
}

// evictLRU removes the least recently used entry. Caller holds the lock.
func (c *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.lastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.lastUsed
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

func (c *MemoryCache) sweepExpired() {
	for {
		select {
		case <-c.sweep.C:
			c.mu.Lock()
			now := time.Now()
			removed := 0
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
					removed++
				}
			}
			c.mu.Unlock()
			if removed > 0 && c.logger != nil {
				c.logger.Debug("swept expired cache entries", zap.Int("removed", removed))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Key joins components into a namespaced cache key.
func Key(components ...string) string {
	return strings.Join(components, ":")
}
