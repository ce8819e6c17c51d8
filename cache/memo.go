package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Memo is a single-slot TTL cache for an expensive computation, typically a
// network probe (e.g. finding a working proxy). At most one computation runs
// at a time; concurrent callers during a refresh share its result.
type Memo[T any] struct {
	ttl time.Duration

	group singleflight.Group

	mu     sync.Mutex
	value  T
	valid  bool
	expiry time.Time
}

// NewMemo creates a memo whose values stay fresh for ttl.
func NewMemo[T any](ttl time.Duration) *Memo[T] {
	return &Memo[T]{ttl: ttl}
}

// Get returns the cached value while it is fresh. On expiry exactly one
// caller invokes compute; a successful result is stored with a new expiry,
// a failed one clears the slot so the next caller retries.
func (m *Memo[T]) Get(compute func() (T, error)) (T, bool) {
	if v, ok := m.cached(); ok {
		return v, true
	}

	result, err, _ := m.group.Do("memo", func() (interface{}, error) {
		// Re-check after acquiring the flight: a sibling caller may have
		// refreshed the slot while we waited.
		if v, ok := m.cached(); ok {
			return v, nil
		}

		v, err := compute()

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			var zero T
			m.value = zero
			m.valid = false
			return nil, err
		}
		m.value = v
		m.valid = true
		m.expiry = time.Now().Add(m.ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false
	}
	return result.(T), true
}

// Invalidate clears the slot, forcing the next Get to recompute.
func (m *Memo[T]) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.value = zero
	m.valid = false
}

func (m *Memo[T]) cached() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && time.Now().Before(m.expiry) {
		return m.value, true
	}
	var zero T
	return zero, false
}
