package tracking

import (
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/your-org/peoplecounter/internal/config"
	"github.com/your-org/peoplecounter/internal/models"
	"github.com/your-org/peoplecounter/internal/observability"
)

const (
	sizeRatioWeight = 50.0
	// Movement beyond this fraction of the smaller frame side is implausible
	// between consecutive frames.
	maxMovementFraction = 0.25
)

// Config holds the tracker parameters. It is passed on every Update so that
// runtime changes (confidence threshold) apply from the next call.
type Config struct {
	LineX               float64
	ConfidenceThreshold float64
	MaxMatchDistance    float64
	EvictionThreshold   int
	TrajectoryCapacity  int
	FrameWidth          int
	FrameHeight         int
}

func DefaultConfig() Config {
	return ConfigFrom(config.Default().Counting)
}

func ConfigFrom(c config.CountingConfig) Config {
	return Config{
		LineX:               c.LineX,
		ConfidenceThreshold: c.ConfidenceThreshold,
		MaxMatchDistance:    c.MaxMatchDistance,
		EvictionThreshold:   c.MissingFrameEvictionThreshold,
		TrajectoryCapacity:  c.TrajectoryCapacity,
		FrameWidth:          c.FrameWidth,
		FrameHeight:         c.FrameHeight,
	}
}

// Tracker associates per-frame detections with persistent identities and
// counts line crossings.
type Tracker struct {
	mu     sync.Mutex
	people []*TrackedPerson // ascending ID
	nextID int
}

func NewTracker() *Tracker {
	return &Tracker{nextID: 1}
}

// Update runs one tracking step and returns the live identities together
// with the number of identities that crossed the line during this step.
//
// Detections are matched in the order given; each one takes the active
// identity with the lowest score, the lowest ID winning ties. That includes
// identities started by earlier detections of the same call. An identity
// already claimed earlier in the same call is not matched again, so the
// later detection starts a new identity instead.
func (t *Tracker) Update(dets []models.Detection, cfg Config) ([]Identity, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := make([]models.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= cfg.ConfidenceThreshold {
			kept = append(kept, d)
		}
	}

	if len(t.people) == 0 {
		for _, d := range kept {
			t.spawn(d, cfg)
		}
		return t.identities(), 0
	}

	for _, p := range t.people {
		p.markMissing()
	}

	matched := make(map[int]bool, len(kept))

	for _, d := range kept {
		best := -1
		bestScore := math.Inf(1)
		// Identities spawned by earlier detections of this call are candidates too.
		for i := 0; i < len(t.people); i++ {
			p := t.people[i]
			if !p.active(cfg.EvictionThreshold) {
				continue
			}
			if s := matchScore(p, d, cfg); s < bestScore {
				bestScore = s
				best = i
			}
		}

		if best >= 0 && bestScore < cfg.MaxMatchDistance && !matched[best] {
			t.people[best].update(d)
			matched[best] = true
			continue
		}
		t.spawn(d, cfg)
	}

	crossings := detectCrossings(t.people, cfg.LineX)

	live := t.people[:0]
	for _, p := range t.people {
		if p.active(cfg.EvictionThreshold) {
			live = append(live, p)
		} else {
			slog.Debug("identity evicted", "id", p.ID, "age", p.Age)
		}
	}
	for i := len(live); i < len(t.people); i++ {
		t.people[i] = nil
	}
	t.people = live

	return t.identities(), crossings
}

// Len returns the number of identities in the live set.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.people)
}

func (t *Tracker) spawn(d models.Detection, cfg Config) {
	p := newTrackedPerson(t.nextID, d, cfg.TrajectoryCapacity)
	t.nextID++
	t.people = append(t.people, p)
	observability.IdentitiesCreated.Inc()
	slog.Debug("identity created", "id", p.ID, "x", p.Center.X, "y", p.Center.Y)
}

func (t *Tracker) identities() []Identity {
	out := make([]Identity, len(t.people))
	for i, p := range t.people {
		out[i] = p.identity()
	}
	return out
}

// matchScore is lower for better matches:
//
//	distance + 50*(sizeRatio-1) + speedPenalty
//
// where speedPenalty repeats the distance when an identity with known motion
// jumps further than a quarter of the smaller frame side.
func matchScore(p *TrackedPerson, d models.Detection, cfg Config) float64 {
	c := d.Box.Center()
	dist := floats.Distance([]float64{p.Center.X, p.Center.Y}, []float64{c.X, c.Y}, 2)

	sizeRatio := math.Inf(1)
	pa, da := p.Box.Area(), d.Box.Area()
	if pa > 0 && da > 0 {
		sizeRatio = math.Max(pa/da, da/pa)
	}

	speedPenalty := 0.0
	if p.path.Len() >= 2 {
		limit := float64(min(cfg.FrameWidth, cfg.FrameHeight)) * maxMovementFraction
		if dist > limit {
			speedPenalty = dist
		}
	}

	return dist + sizeRatioWeight*(sizeRatio-1) + speedPenalty
}
