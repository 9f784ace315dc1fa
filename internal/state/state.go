// Package state holds the aggregation shared between the tracking flow and
// the dashboard readers. Every access goes through a guard.Guard so a stuck
// holder surfaces as a LockTimeout instead of hanging the process.
package state

import (
	"context"
	"time"

	"github.com/gammazero/deque"

	"github.com/your-org/peoplecounter/internal/guard"
	"github.com/your-org/peoplecounter/internal/models"
	"github.com/your-org/peoplecounter/internal/tracking"
)

const minuteLayout = "15:04"

type Options struct {
	HistoryCapacity int
	LockTimeout     time.Duration
	Clock           func() time.Time
}

type bucket struct {
	Label string
	Count int
}

// Snapshot is a deep copy of the aggregation at one instant.
type Snapshot struct {
	Timestamp      string
	Detections     []models.Detection
	Tracks         []tracking.Identity
	TotalCrossings int
	Labels         []string
	Counts         []int
}

// AggregationState is the single shared record of current frame, live
// identities, total crossings and per-minute history.
type AggregationState struct {
	guard *guard.Guard
	clock func() time.Time

	timestamp    string
	detections   []models.Detection
	tracks       []tracking.Identity
	total        int
	history      deque.Deque[bucket] // oldest first, at most historyCap
	historyCap   int
	minuteCounts map[string]int
}

func New(opts Options) *AggregationState {
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = 50
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 2 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &AggregationState{
		guard:        guard.New(opts.LockTimeout),
		clock:        opts.Clock,
		historyCap:   opts.HistoryCapacity,
		minuteCounts: make(map[string]int),
	}
	s.history.SetBaseCap(opts.HistoryCapacity)
	return s
}

// Guard exposes the underlying guard, mainly so tests can hold it.
func (s *AggregationState) Guard() *guard.Guard { return s.guard }

// ApplyCrossings adds n to the total and to the current minute bucket.
func (s *AggregationState) ApplyCrossings(ctx context.Context, n int) error {
	return s.guard.Do(ctx, "apply_crossings", func() {
		s.applyCrossings(n)
	})
}

// RecordFrame replaces the published identities and timestamp.
func (s *AggregationState) RecordFrame(ctx context.Context, ids []tracking.Identity, ts string) error {
	return s.guard.Do(ctx, "record_frame", func() {
		s.recordFrame(ids, ts)
	})
}

// PublishFrame stores the incoming frame before tracking runs on it.
func (s *AggregationState) PublishFrame(ctx context.Context, ts string, dets []models.Detection) error {
	return s.guard.Do(ctx, "publish_frame", func() {
		s.timestamp = ts
		s.detections = append([]models.Detection(nil), dets...)
	})
}

// Commit records the frame and applies its crossings in one critical
// section, so readers never see identities and totals from different frames.
func (s *AggregationState) Commit(ctx context.Context, ids []tracking.Identity, ts string, n int) error {
	return s.guard.Do(ctx, "commit", func() {
		s.recordFrame(ids, ts)
		s.applyCrossings(n)
	})
}

func (s *AggregationState) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.guard.Do(ctx, "snapshot", func() {
		snap = Snapshot{
			Timestamp:      s.timestamp,
			Detections:     append([]models.Detection{}, s.detections...),
			Tracks:         copyIdentities(s.tracks),
			TotalCrossings: s.total,
			Labels:         make([]string, 0, s.history.Len()),
			Counts:         make([]int, 0, s.history.Len()),
		}
		for i := 0; i < s.history.Len(); i++ {
			b := s.history.At(i)
			snap.Labels = append(snap.Labels, b.Label)
			snap.Counts = append(snap.Counts, b.Count)
		}
	})
	return snap, err
}

// Reset zeroes the total and clears the history and minute totals. The
// current frame and identities are left alone.
func (s *AggregationState) Reset(ctx context.Context) error {
	return s.guard.Do(ctx, "reset", func() {
		s.total = 0
		s.history.Clear()
		clear(s.minuteCounts)
	})
}

func (s *AggregationState) recordFrame(ids []tracking.Identity, ts string) {
	s.tracks = copyIdentities(ids)
	s.timestamp = ts
}

func (s *AggregationState) applyCrossings(n int) {
	if n <= 0 {
		return
	}
	s.total += n

	label := s.clock().Format(minuteLayout)
	s.minuteCounts[label] += n
	count := s.minuteCounts[label]

	if last := s.history.Len() - 1; last >= 0 && s.history.Back().Label == label {
		s.history.Set(last, bucket{Label: label, Count: count})
		return
	}
	s.history.PushBack(bucket{Label: label, Count: count})
	if s.history.Len() > s.historyCap {
		s.history.PopFront()
	}
}

func copyIdentities(ids []tracking.Identity) []tracking.Identity {
	out := make([]tracking.Identity, len(ids))
	for i, id := range ids {
		out[i] = id
		out[i].Path = append([]models.Point(nil), id.Path...)
	}
	return out
}
