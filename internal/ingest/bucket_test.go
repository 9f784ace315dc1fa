package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, gets: map[string]int{}}
}

func (f *fakeStore) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeStore) ListDocuments(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	// Same order as MinIOStore.ListDocuments; the non-JSON keys are left in
	// to exercise the poller's own filter.
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeStore) GetDocument(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets[key]++
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func drain(out chan Record) []string {
	var times []string
	for {
		select {
		case rec := <-out:
			times = append(times, rec.Event.Time)
		default:
			return times
		}
	}
}

func TestBucketPollerForwardsInKeyOrder(t *testing.T) {
	store := newFakeStore()
	store.put("cam/002.json", doc("002"))
	store.put("cam/001.json", doc("001"))
	store.put("cam/readme.md", []byte("x"))

	p := NewBucketPoller(store, "cam/", time.Second, 1000)
	out := make(chan Record, 8)

	require.NoError(t, p.poll(context.Background(), out))
	assert.Equal(t, []string{"001", "002"}, drain(out))

	// Second poll only picks up the new object and does not refetch the old ones.
	store.put("cam/003.json", doc("003"))
	require.NoError(t, p.poll(context.Background(), out))
	assert.Equal(t, []string{"003"}, drain(out))
	assert.Equal(t, 1, store.gets["cam/001.json"])
	assert.Equal(t, 0, store.gets["cam/readme.md"])
}

func TestBucketPollerDoesNotRefetchAfterTrim(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 12; i++ {
		store.put(fmt.Sprintf("cam/%03d.json", i), doc(fmt.Sprintf("%03d", i)))
	}

	p := NewBucketPoller(store, "cam/", time.Second, 10)
	out := make(chan Record, 16)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.poll(context.Background(), out))
	}
	assert.Len(t, drain(out), 12)

	total := 0
	for key, n := range store.gets {
		assert.Equal(t, 1, n, "object %s fetched more than once", key)
		total += n
	}
	assert.Equal(t, 12, total)
}

func TestBucketPollerRunStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	store.put("a.json", doc("1"))

	p := NewBucketPoller(store, "", 10*time.Millisecond, 1000)
	out := make(chan Record, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, out) }()

	rec := receive(t, out)
	assert.Equal(t, "1", rec.Event.Time)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestNATSSourceHandle(t *testing.T) {
	s := NewNATSSource(nil, "counter", 1000)
	out := make(chan Record, 4)
	ctx := context.Background()

	require.NoError(t, s.handle(ctx, "m1", doc("5"), out))
	require.NoError(t, s.handle(ctx, "m1", doc("6"), out), "duplicate id is acked")
	require.NoError(t, s.handle(ctx, "m2", []byte("{"), out), "broken document is acked")
	require.NoError(t, s.handle(ctx, "m3", doc("7"), out))

	assert.Equal(t, []string{"5", "7"}, drain(out))
}
