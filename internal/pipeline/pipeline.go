package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/peoplecounter/internal/config"
	"github.com/your-org/peoplecounter/internal/guard"
	"github.com/your-org/peoplecounter/internal/models"
	"github.com/your-org/peoplecounter/internal/observability"
	"github.com/your-org/peoplecounter/internal/state"
	"github.com/your-org/peoplecounter/internal/tracking"
	"github.com/your-org/peoplecounter/pkg/dto"
)

// CrossingPublisher forwards crossing events to other services.
type CrossingPublisher interface {
	PublishCrossing(ctx context.Context, ev dto.CrossingEvent) error
}

// Broadcaster pushes crossing events to connected dashboards.
type Broadcaster interface {
	BroadcastCrossing(ev dto.CrossingEvent)
}

// Pipeline runs the producer flow for one camera:
// filter → publish frame → track → commit → notify.
type Pipeline struct {
	tracker     *tracking.Tracker
	state       *state.AggregationState
	settings    *config.Settings
	counting    config.CountingConfig
	source      string
	publisher   CrossingPublisher
	broadcaster Broadcaster
	now         func() time.Time

	crossed map[int]bool // ids already reported as crossed
}

type Option func(*Pipeline)

func WithPublisher(p CrossingPublisher) Option { return func(pl *Pipeline) { pl.publisher = p } }

func WithBroadcaster(b Broadcaster) Option { return func(pl *Pipeline) { pl.broadcaster = b } }

func WithSource(name string) Option { return func(pl *Pipeline) { pl.source = name } }

func New(
	tracker *tracking.Tracker,
	st *state.AggregationState,
	settings *config.Settings,
	counting config.CountingConfig,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		tracker:  tracker,
		state:    st,
		settings: settings,
		counting: counting,
		source:   "dir",
		now:      time.Now,
		crossed:  make(map[int]bool),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessEvent handles one detection event. Tracking runs outside the
// state guard; its result is committed in a single critical section.
// Events must be fed from a single goroutine, in frame order.
func (p *Pipeline) ProcessEvent(ctx context.Context, ev models.DetectionEvent) error {
	ctx = guard.WithFlow(ctx, "producer")

	threshold := p.settings.ConfidenceThreshold()
	persons := models.FilterPersons(ev.Detections, p.counting.Label, threshold)
	if dropped := len(ev.Detections) - len(persons); dropped > 0 {
		observability.DetectionsDropped.WithLabelValues("filtered").Add(float64(dropped))
	}

	if err := p.state.PublishFrame(ctx, ev.Time, persons); err != nil {
		return fmt.Errorf("publish frame %s: %w", ev.Time, err)
	}

	cfg := tracking.ConfigFrom(p.counting)
	cfg.ConfidenceThreshold = threshold

	start := time.Now()
	ids, crossings := p.tracker.Update(persons, cfg)
	observability.TrackingDuration.Observe(time.Since(start).Seconds())

	if err := p.state.Commit(ctx, ids, ev.Time, crossings); err != nil {
		return fmt.Errorf("commit frame %s: %w", ev.Time, err)
	}

	observability.FramesProcessed.WithLabelValues(p.source).Inc()
	observability.ActiveTracks.Set(float64(p.tracker.Len()))

	fresh := p.newCrossers(ids)
	if crossings > 0 {
		observability.LineCrossings.Add(float64(crossings))
		p.notify(ctx, ev.Time, fresh, crossings)
	}
	return nil
}

// newCrossers returns the ids flagged as crossed since the previous call and
// forgets ids that left the live set.
func (p *Pipeline) newCrossers(ids []tracking.Identity) []int {
	live := make(map[int]bool, len(ids))
	var fresh []int
	for _, id := range ids {
		live[id.ID] = true
		if id.CrossedLine && !p.crossed[id.ID] {
			p.crossed[id.ID] = true
			fresh = append(fresh, id.ID)
		}
	}
	for id := range p.crossed {
		if !live[id] {
			delete(p.crossed, id)
		}
	}
	return fresh
}

func (p *Pipeline) notify(ctx context.Context, frameTime string, trackIDs []int, n int) {
	if p.publisher == nil && p.broadcaster == nil {
		return
	}

	snap, err := p.state.Snapshot(ctx)
	if err != nil {
		slog.Warn("crossing notification skipped", "error", err)
		return
	}

	ev := dto.CrossingEvent{
		ID:        uuid.New(),
		FrameTime: frameTime,
		Count:     n,
		Total:     snap.TotalCrossings,
		TrackIDs:  trackIDs,
		CreatedAt: p.now().UTC(),
	}

	if p.publisher != nil {
		if err := p.publisher.PublishCrossing(ctx, ev); err != nil {
			slog.Error("publish crossing", "error", err, "frame", frameTime)
		}
	}
	if p.broadcaster != nil {
		p.broadcaster.BroadcastCrossing(ev)
	}
}

// Run processes events until ctx is done or events is closed. A failed
// frame is logged and skipped.
func (p *Pipeline) Run(ctx context.Context, events <-chan models.DetectionEvent) {
	slog.Info("counting pipeline started", "source", p.source, "line_x", p.counting.LineX)
	for {
		select {
		case <-ctx.Done():
			slog.Info("counting pipeline stopped", "reason", ctx.Err())
			return
		case ev, ok := <-events:
			if !ok {
				slog.Info("counting pipeline stopped", "reason", "source closed")
				return
			}
			if err := p.ProcessEvent(ctx, ev); err != nil {
				slog.Error("process detection event", "error", err, "time", ev.Time)
			}
		}
	}
}
