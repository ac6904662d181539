package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workhub/internal/types"
)

// fakeClock is a mutable Clock for expiry tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "current_plan:org:42",
		Key{Scope: ScopeCurrentPlan, OrgID: 42}.String())
	assert.Equal(t, "feature_limit:org:42:feature:seats",
		Key{Scope: ScopeFeatureLimit, OrgID: 42, Feature: "seats"}.String())
}

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemoryStore(newFakeClock())
	key := Key{Scope: ScopeCurrentPlan, OrgID: 42}

	s.Set(key, "pro", time.Minute)

	v, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "pro", v)
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(clock)
	key := Key{Scope: ScopeCurrentPlan, OrgID: 42}

	s.Set(key, "pro", time.Minute)
	clock.advance(2 * time.Minute)

	_, ok := s.Get(key)
	assert.False(t, ok)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore(newFakeClock())
	key := Key{Scope: ScopeCurrentPlan, OrgID: 42}

	s.Set(key, "pro", time.Minute)
	s.Delete(key)

	_, ok := s.Get(key)
	assert.False(t, ok)
}

func TestMemoryStore_EvictTagRemovesAllTaggedEntries(t *testing.T) {
	s := NewMemoryStore(newFakeClock())

	k1 := Key{Scope: ScopeCurrentPlan, OrgID: 42}
	k2 := Key{Scope: ScopeFeatureLimit, OrgID: 42, Feature: "seats"}
	other := Key{Scope: ScopeCurrentPlan, OrgID: 43}

	s.Set(k1, "pro", time.Minute, OrgTag(42))
	s.Set(k2, 25, time.Minute, OrgTag(42))
	s.Set(other, "free", time.Minute, OrgTag(43))

	s.EvictTag(OrgTag(42))

	_, ok := s.Get(k1)
	assert.False(t, ok)
	_, ok = s.Get(k2)
	assert.False(t, ok)

	// Other organizations are untouched.
	v, ok := s.Get(other)
	require.True(t, ok)
	assert.Equal(t, "free", v)
}

func TestMemoryStore_SetReplacesTags(t *testing.T) {
	s := NewMemoryStore(newFakeClock())
	key := Key{Scope: ScopeCurrentPlan, OrgID: 42}

	s.Set(key, "pro", time.Minute, OrgTag(42))
	s.Set(key, "business", time.Minute, OrgTag(43))

	// The old tag no longer reaches the entry.
	s.EvictTag(OrgTag(42))
	v, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "business", v)

	s.EvictTag(OrgTag(43))
	_, ok = s.Get(key)
	assert.False(t, ok)
}

func TestMemoryStore_NilClockDefaultsToRealTime(t *testing.T) {
	s := NewMemoryStore(nil)
	key := Key{Scope: ScopeHasActivePlan, OrgID: 1}

	s.Set(key, true, time.Hour)
	v, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, true, v)
}

var _ types.Clock = (*fakeClock)(nil)
