package policy

import (
	"context"
	"sync"
	"time"
)

// CachedResolver wraps a Resolver with TTL-based caching so authorization
// checks do not hit the database on every request.
type CachedResolver struct {
	inner Resolver
	mu    sync.RWMutex
	cache map[uint]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	actor     Actor
	expiresAt time.Time
}

// NewCachedResolver wraps inner; ttl is how long actors stay cached.
func NewCachedResolver(inner Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, cache: make(map[uint]cacheEntry), ttl: ttl}
}

func (r *CachedResolver) Resolve(ctx context.Context, userID uint) (Actor, error) {
	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.actor, nil
	}

	actor, err := r.inner.Resolve(ctx, userID)
	if err != nil {
		return Actor{}, err
	}

	r.mu.Lock()
	r.cache[userID] = cacheEntry{actor: actor, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()
	return actor, nil
}

// Invalidate drops one user from the cache. Call on role/profile change.
func (r *CachedResolver) Invalidate(userID uint) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

// InvalidateAll clears the cache.
func (r *CachedResolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[uint]cacheEntry)
	r.mu.Unlock()
}
