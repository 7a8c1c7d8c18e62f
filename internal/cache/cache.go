// Package cache holds the last known server state of the dashboard.
//
// A Cache is an explicit keyed store with a session lifetime: construct one
// per session, hand it to the Accessor and the mutation coordinator, Close it
// when the session ends. Values never go stale on their own; they only change
// through explicit writes.
package cache

import (
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed Cache
var ErrClosed = errors.New("cache is closed")

// Cache is a keyed snapshot store. Every operation replaces or reads a whole
// value under one lock, so readers never see a partially written snapshot.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
	closed  bool
}

// New creates an empty Cache
func New[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]T)}
}

// Get returns the value stored under key
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[key]
	return v, ok
}

// Set replaces the value stored under key
func (c *Cache[T]) Set(key string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.entries[key] = v
}

// Swap stores v under key and returns the value it replaced, if any.
// The capture and the write happen under the same lock.
func (c *Cache[T]) Swap(key string, v T) (prev T, had bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had = c.entries[key]
	if !c.closed {
		c.entries[key] = v
	}
	return prev, had
}

// setIfAbsent stores v only when key has no value yet.
// It reports the value that ends up stored.
func (c *Cache[T]) setIfAbsent(key string, v T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[key]; ok {
		return cur
	}
	if !c.closed {
		c.entries[key] = v
	}
	return v
}

// Delete removes the value stored under key
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len returns the number of cached keys
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Close drops every entry. Writes after Close are ignored.
func (c *Cache[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.entries = make(map[string]T)
	return nil
}
