package tracking

import "log/slog"

// CrossesLine reports a left-to-right transition over the vertical line at
// lineX. Right-to-left movement never counts.
func CrossesLine(prevX, curX, lineX float64) bool {
	return prevX < lineX && curX >= lineX
}

// detectCrossings checks the last two trajectory points of every person that
// has not yet crossed, and marks the ones that did. It returns how many
// crossed during this call.
func detectCrossings(people []*TrackedPerson, lineX float64) int {
	crossings := 0
	for _, p := range people {
		if p.CrossedLine || p.path.Len() < 2 {
			continue
		}
		cur := p.lastPoint(0)
		prev := p.lastPoint(1)
		if CrossesLine(prev.X, cur.X, lineX) {
			p.CrossedLine = true
			crossings++
			slog.Info("person crossed the line", "id", p.ID, "from_x", prev.X, "to_x", cur.X)
		}
	}
	return crossings
}
