package pipedream

import (
	"context"
	"sync"
	"time"
)

// DefaultConnectionTTL is how long an idle session stays cached.
const DefaultConnectionTTL = 5 * time.Minute

type cacheEntry struct {
	session  Session
	lastUsed time.Time
}

// ConnectionCache reuses sessions per (user, conversation) until they go
// idle for longer than the TTL or turn unhealthy. Sessions are never shared
// across users.
type ConnectionCache struct {
	connector Connector
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewConnectionCache creates a cache over connector.
func NewConnectionCache(connector Connector, ttl time.Duration) *ConnectionCache {
	if ttl <= 0 {
		ttl = DefaultConnectionTTL
	}
	return &ConnectionCache{
		connector: connector,
		ttl:       ttl,
		now:       time.Now,
		entries:   make(map[string]*cacheEntry),
	}
}

func cacheKey(userID, chatID string) string {
	return userID + "-" + chatID
}

// Get returns a healthy cached session or connects a fresh one.
func (c *ConnectionCache) Get(ctx context.Context, userID, chatID string) (Session, error) {
	key := cacheKey(userID, chatID)

	c.mu.Lock()
	now := c.now()
	if e, ok := c.entries[key]; ok {
		if e.session.Healthy() && now.Sub(e.lastUsed) < c.ttl {
			e.lastUsed = now
			c.mu.Unlock()
			return e.session, nil
		}
		delete(c.entries, key)
		_ = e.session.Close()
	}
	c.mu.Unlock()

	session, err := c.connector.Connect(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another request may have connected while the lock was released.
	if e, ok := c.entries[key]; ok && e.session.Healthy() {
		_ = session.Close()
		e.lastUsed = c.now()
		return e.session, nil
	}
	c.entries[key] = &cacheEntry{session: session, lastUsed: c.now()}
	c.evictStaleLocked()
	return session, nil
}

// Evict closes and forgets the session for (userID, chatID).
func (c *ConnectionCache) Evict(userID, chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(userID, chatID)
	if e, ok := c.entries[key]; ok {
		delete(c.entries, key)
		_ = e.session.Close()
	}
}

// EvictStale closes sessions idle for longer than the TTL.
func (c *ConnectionCache) EvictStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictStaleLocked()
}

func (c *ConnectionCache) evictStaleLocked() {
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.lastUsed) > c.ttl {
			delete(c.entries, key)
			_ = e.session.Close()
		}
	}
}

// Len returns the number of cached sessions.
func (c *ConnectionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close closes every cached session.
func (c *ConnectionCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		delete(c.entries, key)
		_ = e.session.Close()
	}
}
