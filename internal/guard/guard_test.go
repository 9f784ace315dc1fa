package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRunsUnderGuard(t *testing.T) {
	g := New(time.Second)

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), "test", func() {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestAcquireTimesOut(t *testing.T) {
	g := New(20 * time.Millisecond)

	release, err := g.Acquire(context.Background(), "holder")
	require.NoError(t, err)
	defer release()

	ctx := WithFlow(context.Background(), "reader")
	start := time.Now()
	_, err = g.Acquire(ctx, "snapshot")
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.True(t, errors.Is(err, ErrLockTimeout))
	var terr *TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "snapshot", terr.Op)
	assert.Equal(t, "reader", terr.Flow)
}

func TestAcquireAfterRelease(t *testing.T) {
	g := New(50 * time.Millisecond)

	release, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()

	release, err = g.Acquire(context.Background(), "b")
	require.NoError(t, err)
	release()
}

func TestCallerCancellationIsNotTimeout(t *testing.T) {
	g := New(time.Second)
	release, err := g.Acquire(context.Background(), "holder")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Acquire(ctx, "cancelled")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrLockTimeout))
}

func TestFlowFromDefault(t *testing.T) {
	assert.Equal(t, "unknown", FlowFrom(context.Background()))
	assert.Equal(t, "producer", FlowFrom(WithFlow(context.Background(), "producer")))
}
