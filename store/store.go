package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/hyphora/hyphora/internal/profile"
	"github.com/hyphora/hyphora/store/cache"
)

// ErrNotFound is returned when a requested object does not exist, including
// documents deleted between snapshot and access.
var ErrNotFound = errors.New("not found")

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	documentCache *cache.Cache[int64, *Document]

	// revision is bumped by the sync path whenever the vault snapshot
	// changes. Cached structures (the link graph) key off it so that a
	// concurrent resync never serves a partially-updated graph.
	revision atomic.Int64
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:        driver,
		profile:       profile,
		documentCache: cache.New[int64, *Document](1000, 10*time.Minute),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// Vacuum removes rows orphaned by document deletion and compacts the
// database where the driver supports it.
func (s *Store) Vacuum(ctx context.Context) error {
	return s.driver.Vacuum(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Revision returns the current vault snapshot revision.
func (s *Store) Revision() int64 {
	return s.revision.Load()
}

// BumpRevision marks the vault snapshot as changed and invalidates the
// document cache. Called by the sync path after a successful sync.
func (s *Store) BumpRevision() int64 {
	s.documentCache.Purge()
	return s.revision.Add(1)
}
