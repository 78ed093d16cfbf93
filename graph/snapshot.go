package graph

import (
	"context"
	"sync"
	"sync/atomic"
)

// Snapshot pairs a built graph with its statistics.
type Snapshot struct {
	Graph *Graph
	Stats *Stats
}

// BuildFunc constructs a snapshot for the given vault revision.
type BuildFunc func(ctx context.Context, revision int64) (*Snapshot, error)

// Cache keeps the latest graph snapshot and rebuilds it when the vault
// revision advances. Readers never block on a rebuild already holding a
// matching snapshot.
type Cache struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewCache creates an empty snapshot cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the snapshot for revision, rebuilding via build when the cached
// one is stale or missing. Concurrent callers for the same revision coalesce
// into a single build.
func (c *Cache) Get(ctx context.Context, revision int64, build BuildFunc) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil && snap.Graph.Revision() == revision {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have rebuilt while we waited on the lock.
	if snap := c.current.Load(); snap != nil && snap.Graph.Revision() == revision {
		return snap, nil
	}

	snap, err := build(ctx, revision)
	if err != nil {
		return nil, err
	}
	c.current.Store(snap)
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(nil)
}
