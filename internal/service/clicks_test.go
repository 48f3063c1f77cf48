package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/metrics"
	"github.com/sakif/linkbio/internal/model"
)

// blockingIncrementer holds every increment until released.
type blockingIncrementer struct {
	release chan struct{}
	mu      sync.Mutex
	applied int
}

func (b *blockingIncrementer) IncrementItemClick(context.Context, string, string, model.ItemKind) error {
	<-b.release
	b.mu.Lock()
	b.applied++
	b.mu.Unlock()
	return nil
}

func clickCount(t *testing.T, store *fakeStore, accountID string) int64 {
	t.Helper()
	p, err := store.GetProfileByAccount(context.Background(), accountID)
	require.NoError(t, err)
	return p.Links[0].ClickCount
}

func TestClickAccumulator_AppliesEachClickOnce(t *testing.T) {
	store := newFakeStore()
	acc := store.seedAccount(t, "a@example.com", "alice")
	p, err := store.GetProfileByAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	linkID := p.Links[0].ID

	clicks := NewClickAccumulator(store, 4, 128, discardLogger())
	clicks.Start()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, clicks.RecordClick("Alice", linkID, "link"))
		}()
	}
	wg.Wait()
	clicks.Stop()

	assert.Equal(t, int64(50), clickCount(t, store, acc.ID))
}

func TestClickAccumulator_RecordClickValidation(t *testing.T) {
	store := newFakeStore()
	clicks := NewClickAccumulator(store, 1, 8, discardLogger())
	clicks.Start()
	defer clicks.Stop()

	err := clicks.RecordClick("alice", "l1", "banner")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	assert.NoError(t, clicks.RecordClick("alice", "", "link"), "untracked items are a no-op")
	assert.NoError(t, clicks.RecordClick("!", "l1", "link"), "malformed handle is a miss, not an error")
}

func TestClickAccumulator_UnknownItemAndFailuresAreNotRetried(t *testing.T) {
	store := newFakeStore()
	store.seedAccount(t, "a@example.com", "alice")

	clicks := NewClickAccumulator(store, 1, 8, discardLogger())
	clicks.Start()
	require.NoError(t, clicks.RecordClick("alice", "no-such-item", "store"))
	require.NoError(t, clicks.RecordClick("ghost", "l1", "link"))
	clicks.Stop()
	assert.Equal(t, 2, store.incrementCalls)

	store.incrementErr = errors.New("database is locked")
	failedBefore := testutil.ToFloat64(metrics.Clicks.WithLabelValues(metrics.ClickFailed))

	clicks = NewClickAccumulator(store, 1, 8, discardLogger())
	clicks.Start()
	require.NoError(t, clicks.RecordClick("alice", "l1", "link"))
	clicks.Stop()

	assert.Equal(t, 3, store.incrementCalls, "a failed increment is attempted exactly once")
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(metrics.Clicks.WithLabelValues(metrics.ClickFailed)))
}

func TestClickAccumulator_FullQueueDrops(t *testing.T) {
	inc := &blockingIncrementer{release: make(chan struct{})}
	clicks := NewClickAccumulator(inc, 1, 2, discardLogger())
	clicks.Start()

	droppedBefore := testutil.ToFloat64(metrics.Clicks.WithLabelValues(metrics.ClickDropped))

	// One event is held by the worker, two fill the queue, the rest drop.
	for i := 0; i < 10; i++ {
		require.NoError(t, clicks.RecordClick("alice", "l1", "link"))
		if i == 0 {
			require.Eventually(t, func() bool { return len(clicks.queue) == 0 }, time.Second, time.Millisecond)
		}
	}

	dropped := testutil.ToFloat64(metrics.Clicks.WithLabelValues(metrics.ClickDropped)) - droppedBefore
	assert.Equal(t, float64(7), dropped)

	close(inc.release)
	clicks.Stop()
	assert.Equal(t, 3, inc.applied)
}

func TestClickAccumulator_StopIsIdempotentAndRefusesLateClicks(t *testing.T) {
	store := newFakeStore()
	clicks := NewClickAccumulator(store, 2, 8, discardLogger())
	clicks.Start()
	clicks.Stop()
	clicks.Stop()

	assert.NoError(t, clicks.RecordClick("alice", "l1", "link"))
	assert.Zero(t, store.incrementCalls)
}
