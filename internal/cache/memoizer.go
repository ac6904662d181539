package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Memoizer combines a Store with singleflight so that concurrent misses on
// the same key resolve with a single loader call instead of a thundering
// herd against the database.
type Memoizer struct {
	store Store
	group singleflight.Group
}

// NewMemoizer creates a Memoizer over the given store.
func NewMemoizer(store Store) *Memoizer {
	return &Memoizer{store: store}
}

// Do returns the cached value for key, or runs load once (deduplicating
// concurrent callers) and caches the result with the TTL and tags.
//
// Loader errors are never cached; the next call retries. The cache is
// advisory: writers must re-validate on the authoritative path before
// irreversible decisions.
func (m *Memoizer) Do(
	ctx context.Context,
	key Key,
	ttl time.Duration,
	tags []string,
	load func(ctx context.Context) (any, error),
) (any, error) {
	if v, ok := m.store.Get(key); ok {
		return v, nil
	}

	v, err, _ := m.group.Do(key.String(), func() (any, error) {
		// Re-check under the flight: another caller may have populated the
		// entry between our miss and acquiring the flight.
		if v, ok := m.store.Get(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		m.store.Set(key, v, ttl, tags...)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Forget drops any in-flight computation for the key so the next call
// reloads. Used together with Store eviction on writes.
func (m *Memoizer) Forget(key Key) {
	m.group.Forget(key.String())
}

// Store exposes the underlying store for eviction paths.
func (m *Memoizer) Store() Store {
	return m.store
}
