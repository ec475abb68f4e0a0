// Package cache provides an in-memory, time-bounded memoization layer.
//
// Entries expire synchronously on read; Sweep reclaims memory for entries
// nobody asked for again and is meant to be driven by the host scheduler.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake to advance time.
type Clock func() time.Time

// Config holds configuration for a TTL cache.
type Config struct {
	// TTL is how long an entry is served after it was stored.
	TTL time.Duration

	// Clock is the time source (default: time.Now).
	Clock Clock
}

// TTL is a string-keyed cache whose entries expire a fixed duration after
// they were stored. It is safe for concurrent use.
type TTL[V any] struct {
	ttl   time.Duration
	clock Clock

	mu      sync.RWMutex
	entries map[string]entry[V]
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// New creates a new TTL cache.
func New[V any](cfg Config) *TTL[V] {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &TTL[V]{
		ttl:     cfg.TTL,
		clock:   clock,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value stored under key if it has not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.clock().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with a fresh TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.clock().Add(c.ttl),
	}
}

// Delete removes key from the cache.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Sweep evicts expired entries and returns how many were removed.
func (c *TTL[V]) Sweep() int {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns the number of stored entries and how many are still fresh.
func (c *TTL[V]) Stats() Stats {
	now := c.clock()

	c.mu.RLock()
	defer c.mu.RUnlock()

	fresh := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			fresh++
		}
	}
	return Stats{Entries: len(c.entries), FreshEntries: fresh}
}

// Stats contains cache statistics.
type Stats struct {
	Entries      int `json:"entries"`
	FreshEntries int `json:"freshEntries"`
}
