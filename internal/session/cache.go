package session

import (
	"context"
	"sync"
	"time"

	"github.com/socialfeed/backend/internal/models"
)

// ProfileLoader fetches the current profile record for a user.
type ProfileLoader interface {
	Find(ctx context.Context, userID string) (models.Profile, error)
}

type cacheEntry struct {
	profile models.Profile
	expires time.Time
}

// ProfileCache wraps a ProfileLoader with a TTL-based in-memory cache keyed by user id.
type ProfileCache struct {
	loader ProfileLoader
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewProfileCache returns a cache that keeps loaded profiles for the provided TTL.
func NewProfileCache(loader ProfileLoader, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ProfileCache{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
		items:  make(map[string]cacheEntry),
	}
}

// Lookup returns the cached profile when it is still fresh, otherwise it delegates to
// the loader and stores the result.
func (c *ProfileCache) Lookup(ctx context.Context, userID string) (models.Profile, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[userID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.profile, nil
	}

	profile, err := c.loader.Find(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}

	c.Store(profile)
	return profile, nil
}

// Store replaces the cached copy of profile.
func (c *ProfileCache) Store(profile models.Profile) {
	c.mu.Lock()
	c.items[profile.UserID] = cacheEntry{profile: profile, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops any cached copy for userID.
func (c *ProfileCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.items, userID)
	c.mu.Unlock()
}
