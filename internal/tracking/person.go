package tracking

import (
	"github.com/gammazero/deque"

	"github.com/your-org/peoplecounter/internal/models"
)

// TrackedPerson is one person followed across frames.
type TrackedPerson struct {
	ID          int
	Box         models.Box
	Center      models.Point
	Confidence  float64
	Age         int // frames successfully matched
	Missing     int // consecutive update calls without a match
	CrossedLine bool

	path    deque.Deque[models.Point] // oldest first
	pathCap int
}

func newTrackedPerson(id int, det models.Detection, pathCap int) *TrackedPerson {
	p := &TrackedPerson{
		ID:         id,
		Box:        det.Box,
		Center:     det.Box.Center(),
		Confidence: det.Confidence,
		pathCap:    pathCap,
	}
	p.path.SetBaseCap(pathCap)
	p.pushPath(p.Center)
	return p
}

func (p *TrackedPerson) update(det models.Detection) {
	p.Box = det.Box
	p.Center = det.Box.Center()
	p.pushPath(p.Center)
	p.Confidence = det.Confidence
	p.Age++
	p.Missing = 0
}

// pushPath appends c and drops the oldest points beyond pathCap.
func (p *TrackedPerson) pushPath(c models.Point) {
	p.path.PushBack(c)
	for p.path.Len() > p.pathCap {
		p.path.PopFront()
	}
}

// lastPoint returns the i-th trajectory point counting back from the newest.
func (p *TrackedPerson) lastPoint(i int) models.Point {
	return p.path.At(p.path.Len() - 1 - i)
}

func (p *TrackedPerson) markMissing() { p.Missing++ }

func (p *TrackedPerson) active(evictAt int) bool { return p.Missing < evictAt }

// Identity is the plain-data view of a TrackedPerson handed to callers.
type Identity struct {
	ID           int            `json:"id"`
	Box          models.Box     `json:"bbox"`
	Center       models.Point   `json:"center"`
	Path         []models.Point `json:"path"`
	CrossedLine  bool           `json:"crossed_line"`
	Confidence   float64        `json:"confidence"`
	Age          int            `json:"age"`
	MissingCount int            `json:"missing_count"`
}

func (p *TrackedPerson) identity() Identity {
	return Identity{
		ID:           p.ID,
		Box:          p.Box,
		Center:       p.Center,
		Path:         p.pathPoints(),
		CrossedLine:  p.CrossedLine,
		Confidence:   p.Confidence,
		Age:          p.Age,
		MissingCount: p.Missing,
	}
}

func (p *TrackedPerson) pathPoints() []models.Point {
	out := make([]models.Point, p.path.Len())
	for i := range out {
		out[i] = p.path.At(i)
	}
	return out
}
