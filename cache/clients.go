package cache

import "sync"

// ClientCache holds live client handles keyed by user id. Map mutations are
// serialized by a single mutex; liveness probes and logins are the caller's
// job and must run outside this lock.
type ClientCache[T comparable] struct {
	mu      sync.Mutex
	entries map[string]T
}

// NewClientCache creates an empty client cache.
func NewClientCache[T comparable]() *ClientCache[T] {
	return &ClientCache[T]{entries: make(map[string]T)}
}

// Get returns the cached handle for key, if any. Never blocks on I/O.
func (c *ClientCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put installs or replaces the handle for key.
func (c *ClientCache[T]) Put(key string, handle T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = handle
}

// EvictIfSame removes the entry for key only if it still holds handle.
// A caller that probed a handle and found it stale must pass that same
// handle here: if another goroutine already installed a replacement, the
// replacement survives. Returns true if an entry was removed.
func (c *ClientCache[T]) EvictIfSame(key string, handle T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.entries[key]
	if !ok || current != handle {
		return false
	}
	delete(c.entries, key)
	return true
}

// Delete removes the entry for key unconditionally. Returns true if an
// entry existed.
func (c *ClientCache[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Len returns the number of cached handles.
func (c *ClientCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
