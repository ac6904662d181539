package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoizer_LoadsOnceWithinTTL(t *testing.T) {
	m := NewMemoizer(NewMemoryStore(newFakeClock()))
	key := Key{Scope: ScopeCurrentPlan, OrgID: 42}

	var calls int
	load := func(ctx context.Context) (any, error) {
		calls++
		return "pro", nil
	}

	for i := 0; i < 3; i++ {
		v, err := m.Do(context.Background(), key, time.Minute, nil, load)
		require.NoError(t, err)
		assert.Equal(t, "pro", v)
	}
	assert.Equal(t, 1, calls)
}

func TestMemoizer_ReloadsAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	m := NewMemoizer(NewMemoryStore(clock))
	key := Key{Scope: ScopeCurrentPlan, OrgID: 42}

	var calls int
	load := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	v, err := m.Do(context.Background(), key, time.Minute, nil, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.advance(2 * time.Minute)

	v, err = m.Do(context.Background(), key, time.Minute, nil, load)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMemoizer_ErrorsAreNotCached(t *testing.T) {
	m := NewMemoizer(NewMemoryStore(newFakeClock()))
	key := Key{Scope: ScopeCurrentPlan, OrgID: 42}

	boom := errors.New("load failed")
	var calls int
	load := func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "pro", nil
	}

	_, err := m.Do(context.Background(), key, time.Minute, nil, load)
	require.ErrorIs(t, err, boom)

	v, err := m.Do(context.Background(), key, time.Minute, nil, load)
	require.NoError(t, err)
	assert.Equal(t, "pro", v)
	assert.Equal(t, 2, calls)
}

func TestMemoizer_ConcurrentMissesLoadOnce(t *testing.T) {
	m := NewMemoizer(NewMemoryStore(newFakeClock()))
	key := Key{Scope: ScopeCurrentPlan, OrgID: 42}

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "pro", nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]any, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Do(context.Background(), key, time.Minute, nil, load)
		}(i)
	}

	// Give the goroutines time to pile onto the flight, then release it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "pro", results[i])
	}
}

func TestMemoizer_EvictionOnStoreForcesReload(t *testing.T) {
	store := NewMemoryStore(newFakeClock())
	m := NewMemoizer(store)
	key := Key{Scope: ScopeCurrentPlan, OrgID: 42}

	var calls int
	load := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	_, err := m.Do(context.Background(), key, time.Minute, []string{OrgTag(42)}, load)
	require.NoError(t, err)

	store.EvictTag(OrgTag(42))
	m.Forget(key)

	v, err := m.Do(context.Background(), key, time.Minute, []string{OrgTag(42)}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
