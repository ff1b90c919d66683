package server

import (
	"sync"
	"time"
)

// rateLimitWindow bounds webhook intake per sender. The platform retries
// aggressively on non-2xx, a fixed window per client IP is enough to keep a
// retry storm from amplifying into the CRM.
const rateLimitWindow = time.Minute

type rateLimiter struct {
	limit  int
	window time.Duration
	mu     sync.Mutex
	items  map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		items:  make(map[string]*rateLimitEntry),
	}
}

func (r *rateLimiter) Allow(key string) bool {
	if key == "" {
		return false
	}

	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.items[key]
	if entry == nil || now.Sub(entry.windowStart) > r.window {
		entry = &rateLimitEntry{windowStart: now}
		r.items[key] = entry
		r.evictStale(now)
	}

	if entry.count >= r.limit {
		return false
	}

	entry.count++
	return true
}

// evictStale drops entries whose window ended, called under the lock.
func (r *rateLimiter) evictStale(now time.Time) {
	for key, entry := range r.items {
		if now.Sub(entry.windowStart) > 2*r.window {
			delete(r.items, key)
		}
	}
}
