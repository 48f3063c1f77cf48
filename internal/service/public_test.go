package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkbio/internal/cache"
	"github.com/sakif/linkbio/internal/model"
)

// countingStore counts profile reads and can hold them until released.
type countingStore struct {
	*fakeStore
	reads   atomic.Int32
	release chan struct{}
}

func (c *countingStore) GetProfileByHandle(ctx context.Context, handle string) (*model.Profile, error) {
	c.reads.Add(1)
	if c.release != nil {
		<-c.release
	}
	return c.fakeStore.GetProfileByHandle(ctx, handle)
}

// failingCache errors on every call.
type failingCache struct{}

func (failingCache) Get(context.Context, string) (*model.Projection, bool, error) {
	return nil, false, errors.New("redis: connection refused")
}
func (failingCache) Set(context.Context, string, *model.Projection, time.Duration) error {
	return errors.New("redis: connection refused")
}
func (failingCache) Delete(context.Context, string) error { return errors.New("redis: connection refused") }
func (failingCache) Close() error                         { return nil }

func TestRender_UnknownAndMalformedHandles(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	c := cache.NewInMemory()
	rp := NewReadPath(store, c, time.Minute, discardLogger())

	for _, raw := range []string{"nobody", "!", ""} {
		proj, ok, err := rp.Render(context.Background(), raw)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, proj)
	}
	assert.Zero(t, c.Len(), "unknown handles are never cached")
	assert.Equal(t, int32(1), store.reads.Load(), "malformed handles never reach storage")
}

func TestRender_CachesUntilInvalidated(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	store.seedAccount(t, "a@example.com", "alice")
	rp := NewReadPath(store, cache.NewInMemory(), time.Minute, discardLogger())
	ctx := context.Background()

	first, ok, err := rp.Render(ctx, "Alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", first.Handle)
	assert.Equal(t, model.DefaultTheme, first.Theme)

	_, _, err = rp.Render(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.reads.Load(), "second render is served from cache")

	rp.Invalidate(ctx, "alice")
	_, _, err = rp.Render(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.reads.Load())
}

func TestRender_ZeroTTLAlwaysReadsStorage(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	store.seedAccount(t, "a@example.com", "alice")
	rp := NewReadPath(store, cache.NewInMemory(), 0, discardLogger())

	for i := 0; i < 3; i++ {
		_, ok, err := rp.Render(context.Background(), "alice")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, int32(3), store.reads.Load())
}

func TestRender_CacheFailureFallsThroughToStorage(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	store.seedAccount(t, "a@example.com", "alice")
	rp := NewReadPath(store, failingCache{}, time.Minute, discardLogger())

	proj, ok, err := rp.Render(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", proj.Handle)

	rp.Invalidate(context.Background(), "alice") // logged, not fatal
}

func TestRender_ConcurrentMissesShareOneRead(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore(), release: make(chan struct{})}
	store.seedAccount(t, "a@example.com", "alice")
	rp := NewReadPath(store, cache.NewInMemory(), time.Minute, discardLogger())

	const n = 10
	var wg sync.WaitGroup
	results := make([]*model.Projection, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			proj, _, err := rp.Render(context.Background(), "alice")
			assert.NoError(t, err)
			results[i] = proj
		}(i)
	}

	// Let the leader reach storage, give the rest time to join it.
	require.Eventually(t, func() bool { return store.reads.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	for _, proj := range results {
		require.NotNil(t, proj)
		assert.Equal(t, "alice", proj.Handle)
	}
	assert.Equal(t, int32(1), store.reads.Load())
}

func TestRender_ReflectsClicksAfterTTL(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	store.seedAccount(t, "a@example.com", "alice")
	rp := NewReadPath(store, cache.NewInMemory(), 30*time.Millisecond, discardLogger())
	ctx := context.Background()

	proj, _, err := rp.Render(ctx, "alice")
	require.NoError(t, err)
	linkID := proj.Links[0].ID
	require.NoError(t, store.IncrementItemClick(ctx, "alice", linkID, model.ItemLink))

	require.Eventually(t, func() bool {
		p, _, err := rp.Render(ctx, "alice")
		return err == nil && p.Links[0].ClickCount == 1
	}, time.Second, 10*time.Millisecond)
}
