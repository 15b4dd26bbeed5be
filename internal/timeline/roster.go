package timeline

import (
	"context"
	"sync"
	"time"

	"github.com/taskboard/backend/internal/storage/models"
)

// RosterLoader loads the members of a workspace.
type RosterLoader func(ctx context.Context, workspaceID string) ([]models.UserReference, error)

// RosterCache caches workspace member rosters for a fixed TTL. Entries are
// dropped explicitly through Invalidate when membership changes.
type RosterCache struct {
	load RosterLoader
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]rosterEntry
}

type rosterEntry struct {
	refs      []models.UserReference
	expiresAt time.Time
}

// NewRosterCache creates a cache backed by load. A non-positive ttl disables
// caching.
func NewRosterCache(load RosterLoader, ttl time.Duration) *RosterCache {
	return &RosterCache{
		load:    load,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]rosterEntry),
	}
}

// Get returns the roster of a workspace, loading it on a miss.
func (c *RosterCache) Get(ctx context.Context, workspaceID string) ([]models.UserReference, error) {
	c.mu.Lock()
	entry, ok := c.entries[workspaceID]
	c.mu.Unlock()

	if ok && c.now().Before(entry.expiresAt) {
		return entry.refs, nil
	}

	refs, err := c.load(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if c.ttl > 0 {
		c.mu.Lock()
		c.entries[workspaceID] = rosterEntry{refs: refs, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
	}

	return refs, nil
}

// Invalidate drops the cached roster of a workspace.
func (c *RosterCache) Invalidate(workspaceID string) {
	c.mu.Lock()
	delete(c.entries, workspaceID)
	c.mu.Unlock()
}

// Sweep removes expired entries and returns how many were removed.
func (c *RosterCache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached rosters, expired or not.
func (c *RosterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
