package middleware

import (
	"sync"

	"golang.org/x/time/rate"
)

// KeyRateLimiter throttles webhook updates per sender key. Limiters are
// created lazily on first sight of a key.
type KeyRateLimiter struct {
	mu    sync.Mutex
	keys  map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

// NewKeyRateLimiter creates a limiter pool with the given refill rate and
// burst per key.
func NewKeyRateLimiter(limit rate.Limit, burst int) *KeyRateLimiter {
	return &KeyRateLimiter{
		keys:  make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

// GetLimiter returns the limiter for key, creating it if needed.
func (l *KeyRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.keys[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.keys[key] = limiter
	}
	return limiter
}

// Allow reports whether a request under key may proceed now.
func (l *KeyRateLimiter) Allow(key string) bool {
	return l.GetLimiter(key).Allow()
}

// Len returns the number of keys currently tracked.
func (l *KeyRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
