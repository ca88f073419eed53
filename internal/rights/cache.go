package rights

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// BuildFunc materialises the snapshot for a key.
type BuildFunc func(ctx context.Context, key Key) (*Snapshot, error)

// Cache is the process-wide snapshot cache. Entries are never evicted;
// a long-running process holds at most one entry per (version,
// role-set) in use.
type Cache struct {
	mu    sync.RWMutex
	snaps map[Key]*Snapshot
	group singleflight.Group
	build BuildFunc
}

// NewCache creates a cache over the given build function.
func NewCache(build BuildFunc) *Cache {
	return &Cache{
		snaps: make(map[Key]*Snapshot),
		build: build,
	}
}

// Get returns the snapshot for the key, building it exactly once when
// absent regardless of how many callers arrive concurrently. A failed
// build releases the in-progress marker so later callers retry.
func (c *Cache) Get(ctx context.Context, key Key) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.snaps[key]
	c.mu.RUnlock()

	if snap != nil {
		return snap, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		// re-check: a concurrent flight may have published while we
		// queued for the group
		c.mu.RLock()
		existing := c.snaps[key]
		c.mu.RUnlock()

		if existing != nil {
			return existing, nil
		}

		built, buildErr := c.build(ctx, key)
		if buildErr != nil {
			return nil, buildErr
		}

		c.mu.Lock()
		// double-build re-check before writing
		if published := c.snaps[key]; published != nil {
			built = published
		} else {
			c.snaps[key] = built
		}
		c.mu.Unlock()

		return built, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Snapshot), nil
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.snaps)
}
