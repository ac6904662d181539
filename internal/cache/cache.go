// Package cache provides the memoization layer for organization-scoped
// entitlement reads. Keys are typed (never interpolated strings) and every
// org-scoped entry is tagged with its organization so a single tag eviction
// clears all derived state when plan or membership rows change.
package cache

import (
	"fmt"
	"sync"
	"time"

	"workhub/internal/types"
)

// Scope identifies what an entry memoizes.
type Scope string

const (
	ScopeCurrentPlan   Scope = "current_plan"
	ScopeHasActivePlan Scope = "has_active_plan"
	ScopeActivePlans   Scope = "active_plans"
	ScopeFeatureLimit  Scope = "feature_limit"
)

// Key is a typed cache key. Feature is empty for non-feature-scoped entries.
type Key struct {
	Scope   Scope
	OrgID   int64
	Feature string
}

// String renders the canonical storage key. Only the cache package builds
// these strings; callers pass the struct, which prevents key drift between
// read and invalidation paths.
func (k Key) String() string {
	if k.Feature == "" {
		return fmt.Sprintf("%s:org:%d", k.Scope, k.OrgID)
	}
	return fmt.Sprintf("%s:org:%d:feature:%s", k.Scope, k.OrgID, k.Feature)
}

// OrgTag returns the tag under which every org-scoped entry is filed.
func OrgTag(orgID int64) string {
	return fmt.Sprintf("org:%d", orgID)
}

// Store is the cache contract the resolvers depend on. Implementations must
// be safe for concurrent use. Entries expire after their TTL; EvictTag
// removes every entry tagged with the given tag.
type Store interface {
	Get(key Key) (any, bool)
	Set(key Key, value any, ttl time.Duration, tags ...string)
	Delete(key Key)
	EvictTag(tag string)
}

type entry struct {
	value     any
	expiresAt time.Time
	tags      []string
}

// MemoryStore is the in-process Store implementation. A mutex-guarded map
// with lazy expiry is sufficient at this layer: entitlement reads are cheap
// to recompute and the TTL is short.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	tags    map[string]map[string]struct{}
	clock   types.Clock
}

// NewMemoryStore creates an empty MemoryStore. A nil clock defaults to real
// time.
func NewMemoryStore(clock types.Clock) *MemoryStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryStore{
		entries: make(map[string]entry),
		tags:    make(map[string]map[string]struct{}),
		clock:   clock,
	}
}

// Get returns the cached value when present and unexpired.
func (s *MemoryStore) Get(key Key) (any, bool) {
	k := key.String()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[k]
	if !ok {
		return nil, false
	}
	if s.clock.Now().After(e.expiresAt) {
		s.removeLocked(k, e.tags)
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the given TTL and tags, replacing any prior entry.
func (s *MemoryStore) Set(key Key, value any, ttl time.Duration, tags ...string) {
	k := key.String()
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[k]; ok {
		s.removeLocked(k, old.tags)
	}
	s.entries[k] = entry{
		value:     value,
		expiresAt: s.clock.Now().Add(ttl),
		tags:      tags,
	}
	for _, tag := range tags {
		set, ok := s.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			s.tags[tag] = set
		}
		set[k] = struct{}{}
	}
}

// Delete removes one entry.
func (s *MemoryStore) Delete(key Key) {
	k := key.String()
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[k]; ok {
		s.removeLocked(k, e.tags)
	}
}

// EvictTag removes every entry filed under the tag. The call is synchronous:
// when it returns, no reader can observe a pre-eviction value.
func (s *MemoryStore) EvictTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.tags[tag] {
		if e, ok := s.entries[k]; ok {
			s.removeLocked(k, e.tags)
		}
	}
	delete(s.tags, tag)
}

// removeLocked deletes the entry and its tag index references. Caller holds mu.
func (s *MemoryStore) removeLocked(k string, tags []string) {
	delete(s.entries, k)
	for _, tag := range tags {
		if set, ok := s.tags[tag]; ok {
			delete(set, k)
			if len(set) == 0 {
				delete(s.tags, tag)
			}
		}
	}
}

// Compile-time interface assertion.
var _ Store = (*MemoryStore)(nil)
