// Package cache provides the in-process TTL cache that fronts the snapshot
// store. Entries are per-instance; cross-instance consistency comes from the
// durable store, not from the cache.
package cache

import (
	"fmt"
	"sync"
	"time"

	"perfpulse/internal/types"
)

// SnapshotCache is a TTL-bounded in-memory cache of computed snapshots keyed
// by their natural key. Expired entries are dropped lazily on read and swept
// opportunistically on write. Safe for concurrent use.
type SnapshotCache struct {
	clock types.Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry

	// sweepEvery bounds how often Set triggers a full expiry sweep.
	sweepEvery time.Duration
	lastSweep  time.Time
}

type cacheEntry struct {
	snap      *types.MetricsSnapshot
	expiresAt time.Time
}

// NewSnapshotCache creates an empty SnapshotCache. A nil clock defaults to
// real time.
func NewSnapshotCache(clock types.Clock) *SnapshotCache {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &SnapshotCache{
		clock:      clock,
		entries:    make(map[string]cacheEntry),
		sweepEvery: 5 * time.Minute,
	}
}

// Get returns the cached snapshot for the key if present and unexpired.
func (c *SnapshotCache) Get(key types.SnapshotKey) (*types.MetricsSnapshot, bool) {
	k := cacheKey(key)
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.After(now) {
		c.mu.Lock()
		// Re-check under the write lock; a fresh Set may have replaced it.
		if current, ok := c.entries[k]; ok && !current.expiresAt.After(now) {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.snap, true
}

// Set stores the snapshot under its key for the given TTL. A non-positive
// TTL is a no-op.
func (c *SnapshotCache) Set(key types.SnapshotKey, snap *types.MetricsSnapshot, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(key)] = cacheEntry{snap: snap, expiresAt: now.Add(ttl)}

	if now.Sub(c.lastSweep) >= c.sweepEvery {
		for k, e := range c.entries {
			if !e.expiresAt.After(now) {
				delete(c.entries, k)
			}
		}
		c.lastSweep = now
	}
}

// Invalidate removes the entry for the key if present.
func (c *SnapshotCache) Invalidate(key types.SnapshotKey) {
	c.mu.Lock()
	delete(c.entries, cacheKey(key))
	c.mu.Unlock()
}

// Len returns the number of entries currently held, expired or not.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(key types.SnapshotKey) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d",
		key.OrganizationID, key.ScopeKind, key.EntityID, key.PeriodType,
		key.PeriodStart.Unix())
}
