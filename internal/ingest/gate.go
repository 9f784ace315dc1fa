package ingest

import (
	"bytes"
	"log/slog"
	"sort"
	"sync"

	"github.com/your-org/peoplecounter/internal/models"
	"github.com/your-org/peoplecounter/internal/observability"
)

// Record is one decoded detection document together with its source name
// and original bytes.
type Record struct {
	Name  string
	Raw   []byte
	Event models.DetectionEvent
}

// gate decides which documents move on. A document is forwarded only if
// its name has not been processed yet and its frame time is strictly later
// than the last forwarded one. Empty or undecodable documents are not
// remembered, so a later write of the same file gets another chance.
//
// Names trimmed out of the processed set stay seen through a watermark, the
// highest trimmed name, so a source that lists everything again does not
// refetch them.
type gate struct {
	mu        sync.Mutex
	processed map[string]struct{}
	cap       int
	watermark string
	lastTime  string
}

func newGate(capacity int) *gate {
	if capacity < 2 {
		capacity = 1000
	}
	return &gate{processed: make(map[string]struct{}), cap: capacity}
}

func (g *gate) seen(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.watermark != "" && name <= g.watermark {
		return true
	}
	_, ok := g.processed[name]
	return ok
}

func (g *gate) admit(name string, data []byte) (Record, bool) {
	if g.seen(name) {
		return Record{}, false
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Record{}, false
	}

	ev, recordErrs, err := models.ParseEvent(data)
	if err != nil {
		slog.Debug("skipping undecodable detection document", "name", name, "error", err)
		return Record{}, false
	}
	for _, rerr := range recordErrs {
		slog.Warn("dropping malformed detection", "name", name, "error", rerr)
		observability.DetectionsDropped.WithLabelValues("malformed").Inc()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	forward := ev.Time > g.lastTime
	if forward {
		g.lastTime = ev.Time
	} else {
		observability.DetectionsDropped.WithLabelValues("stale").Add(float64(len(ev.Detections)))
	}

	g.processed[name] = struct{}{}
	if len(g.processed) > g.cap {
		g.trim()
	}

	return Record{Name: name, Raw: data, Event: ev}, forward
}

// trim keeps the newest half of the processed names, by name order.
func (g *gate) trim() {
	names := make([]string, 0, len(g.processed))
	for n := range g.processed {
		names = append(names, n)
	}
	sort.Strings(names)
	drop := names[:len(names)-g.cap/2]
	for _, n := range drop {
		delete(g.processed, n)
	}
	if last := drop[len(drop)-1]; last > g.watermark {
		g.watermark = last
	}
}
