package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/peoplecounter/internal/guard"
	"github.com/your-org/peoplecounter/internal/models"
	"github.com/your-org/peoplecounter/internal/tracking"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(hh, mm int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Date(2024, 5, 1, hh, mm, 0, 0, time.UTC)
}

func newState(t *testing.T, capacity int, clk *fakeClock) *AggregationState {
	t.Helper()
	return New(Options{HistoryCapacity: capacity, LockTimeout: 50 * time.Millisecond, Clock: clk.Now})
}

func TestApplyCrossingsBuckets(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newState(t, 50, clk)

	require.NoError(t, s.ApplyCrossings(ctx, 1))
	require.NoError(t, s.ApplyCrossings(ctx, 1))
	clk.Set(10, 1)
	require.NoError(t, s.ApplyCrossings(ctx, 1))
	require.NoError(t, s.ApplyCrossings(ctx, 0))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.TotalCrossings)
	assert.Equal(t, []string{"10:00", "10:01"}, snap.Labels)
	assert.Equal(t, []int{2, 1}, snap.Counts)
}

func TestZeroCrossingsLeaveHistoryAlone(t *testing.T) {
	ctx := context.Background()
	s := newState(t, 50, newFakeClock())

	require.NoError(t, s.ApplyCrossings(ctx, 0))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.TotalCrossings)
	assert.Empty(t, snap.Labels)
	assert.Empty(t, snap.Counts)
}

func TestMultipleCrossingsInOneCall(t *testing.T) {
	ctx := context.Background()
	s := newState(t, 50, newFakeClock())

	require.NoError(t, s.ApplyCrossings(ctx, 3))
	require.NoError(t, s.ApplyCrossings(ctx, 2))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.TotalCrossings)
	assert.Equal(t, []int{5}, snap.Counts)
}

func TestHistoryCapacity(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newState(t, 50, clk)

	for i := 0; i < 60; i++ {
		clk.Set(10+i/60, i%60)
		require.NoError(t, s.ApplyCrossings(ctx, 1))
	}

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Labels, 50)
	require.Len(t, snap.Counts, 50)
	assert.Equal(t, "10:10", snap.Labels[0])
	assert.Equal(t, "10:59", snap.Labels[49])
	assert.Equal(t, 60, snap.TotalCrossings)
}

func TestScrolledOutMinuteKeepsAbsoluteCount(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newState(t, 2, clk)

	clk.Set(10, 0)
	require.NoError(t, s.ApplyCrossings(ctx, 2))
	clk.Set(10, 1)
	require.NoError(t, s.ApplyCrossings(ctx, 1))
	clk.Set(10, 2)
	require.NoError(t, s.ApplyCrossings(ctx, 1))

	// 10:00 has scrolled out; a late update re-inserts it with its full count.
	clk.Set(10, 0)
	require.NoError(t, s.ApplyCrossings(ctx, 1))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:02", "10:00"}, snap.Labels)
	assert.Equal(t, []int{1, 3}, snap.Counts)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newState(t, 50, clk)

	require.NoError(t, s.ApplyCrossings(ctx, 4))
	require.NoError(t, s.Reset(ctx))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.TotalCrossings)
	assert.Empty(t, snap.Labels)
	assert.Empty(t, snap.Counts)

	// Minute totals restart after a reset.
	require.NoError(t, s.ApplyCrossings(ctx, 1))
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, snap.Counts)
}

func TestRecordFrameDoesNotTouchCounters(t *testing.T) {
	ctx := context.Background()
	s := newState(t, 50, newFakeClock())
	require.NoError(t, s.ApplyCrossings(ctx, 1))

	ids := []tracking.Identity{{ID: 7, Path: []models.Point{{X: 1, Y: 2}}}}
	require.NoError(t, s.RecordFrame(ctx, ids, "20240501100000000"))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalCrossings)
	assert.Equal(t, "20240501100000000", snap.Timestamp)
	if diff := cmp.Diff(ids, snap.Tracks); diff != "" {
		t.Errorf("tracks mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	ctx := context.Background()
	s := newState(t, 50, newFakeClock())

	ids := []tracking.Identity{{ID: 1, Path: []models.Point{{X: 1, Y: 1}}}}
	dets := []models.Detection{models.NewDetection("person", 0.9, 0, 0, 10, 10)}
	require.NoError(t, s.PublishFrame(ctx, "t1", dets))
	require.NoError(t, s.Commit(ctx, ids, "t1", 1))

	// Mutating inputs after the call must not leak in.
	ids[0].Path[0].X = 99
	dets[0].Confidence = 0

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	snap.Tracks[0].Path[0].X = 42
	snap.Labels[0] = "xx"
	snap.Detections[0].Label = "cat"

	again, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Tracks[0].Path[0].X)
	assert.Equal(t, "10:00", again.Labels[0])
	assert.Equal(t, "person", again.Detections[0].Label)
	assert.Equal(t, 0.9, again.Detections[0].Confidence)
}

func TestOperationsTimeOutWhileGuardHeld(t *testing.T) {
	ctx := context.Background()
	s := newState(t, 50, newFakeClock())

	release, err := s.Guard().Acquire(ctx, "test")
	require.NoError(t, err)

	_, err = s.Snapshot(ctx)
	assert.True(t, errors.Is(err, guard.ErrLockTimeout))
	assert.ErrorIs(t, s.ApplyCrossings(ctx, 1), guard.ErrLockTimeout)
	assert.ErrorIs(t, s.Reset(ctx), guard.ErrLockTimeout)

	release()

	// Nothing was applied while the guard was held.
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.TotalCrossings)
}

func TestSnapshotNeverMixesFrames(t *testing.T) {
	ctx := context.Background()
	s := New(Options{LockTimeout: time.Second, Clock: newFakeClock().Now})

	// Frame i always carries i identities and brings the total to i.
	const frames = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= frames; i++ {
			ids := make([]tracking.Identity, i%10)
			for k := range ids {
				ids[k] = tracking.Identity{ID: i}
			}
			assert.NoError(t, s.Commit(ctx, ids, "", 1))
		}
	}()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, err := s.Snapshot(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, snap.TotalCrossings%10, len(snap.Tracks))
				for _, id := range snap.Tracks {
					assert.Equal(t, snap.TotalCrossings, id.ID)
				}
			}
		}()
	}
	<-done
	wg.Wait()

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, frames, snap.TotalCrossings)
}
