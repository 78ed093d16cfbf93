package graph

import (
	"context"
	"testing"
)

func TestCacheRebuildsOnRevisionChange(t *testing.T) {
	c := NewCache()
	builds := 0
	build := func(_ context.Context, revision int64) (*Snapshot, error) {
		builds++
		return &Snapshot{Graph: FromEdges(nil, revision), Stats: &Stats{}}, nil
	}

	ctx := context.Background()
	snap1, err := c.Get(ctx, 1, build)
	if err != nil {
		t.Fatal(err)
	}
	snap2, err := c.Get(ctx, 1, build)
	if err != nil {
		t.Fatal(err)
	}
	if snap1 != snap2 || builds != 1 {
		t.Errorf("same revision should be served from cache, builds = %d", builds)
	}

	snap3, err := c.Get(ctx, 2, build)
	if err != nil {
		t.Fatal(err)
	}
	if snap3 == snap1 || builds != 2 {
		t.Errorf("revision change should rebuild, builds = %d", builds)
	}
	if snap3.Graph.Revision() != 2 {
		t.Errorf("revision = %d, want 2", snap3.Graph.Revision())
	}
}
