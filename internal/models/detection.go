package models

import "math"

// Box is an axis-aligned bounding box with Left <= Right and Top <= Bottom.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// NewBox orders the corners so the box is well formed whatever order the
// camera reported them in.
func NewBox(left, top, right, bottom float64) Box {
	return Box{
		Left:   math.Min(left, right),
		Top:    math.Min(top, bottom),
		Right:  math.Max(left, right),
		Bottom: math.Max(top, bottom),
	}
}

func (b Box) Width() float64  { return b.Right - b.Left }
func (b Box) Height() float64 { return b.Bottom - b.Top }
func (b Box) Area() float64   { return b.Width() * b.Height() }

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{X: (b.Left + b.Right) / 2, Y: (b.Top + b.Bottom) / 2}
}

// Point is a position in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one labeled, confidence-scored box from one frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

func NewDetection(label string, confidence, left, top, right, bottom float64) Detection {
	return Detection{
		Label:      label,
		Confidence: confidence,
		Box:        NewBox(left, top, right, bottom),
	}
}

// FilterPersons keeps detections carrying label with confidence >= threshold.
func FilterPersons(dets []Detection, label string, threshold float64) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Label == label && d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}
