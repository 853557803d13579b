// Package cache holds the in-process TTL caches the profile-reading
// services share. Each BFF instance owns its entries; writers invalidate
// by key after a successful mutation, so staleness is bounded by the TTL.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a concurrency-safe map with per-entry expiry. The zero
// value is not usable; construct with New or NewWithSweep.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
}

// New creates a cache whose entries live for ttl. Expired entries are
// swept in the background once per ttl.
func New[T any](ttl time.Duration) *InMemory[T] {
	return NewWithSweep[T](ttl, ttl)
}

// NewWithSweep creates a cache with an explicit sweep cadence, for
// deployments where the TTL is long but memory should be reclaimed
// sooner (see CACHE_SWEEP_INTERVAL).
func NewWithSweep[T any](ttl, sweep time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
	}
	go c.sweep(sweep)
	return c
}

// Get returns the cached value for key. The second return is false when
// the key is absent or the entry has expired; expired entries are left
// for the sweeper.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any existing entry and
// restarting its TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete drops the entry for key. Services call this after a write so
// the next read refetches instead of serving a stale profile.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Len reports the number of entries currently held, expired or not.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *InMemory[T]) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}
