package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedInput marks a detection record that is missing required fields.
var ErrMalformedInput = errors.New("malformed input")

// RecordError describes one dropped record of a detection event.
type RecordError struct {
	Index int
	Field string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("detection %d: missing %s", e.Index, e.Field)
}

func (e *RecordError) Unwrap() error { return ErrMalformedInput }

// DetectionEvent is one frame's detections as written by the camera process.
type DetectionEvent struct {
	Time       string      `json:"time"`
	Detections []Detection `json:"detections"`
}

type rawEvent struct {
	Time       string            `json:"time"`
	Detections []json.RawMessage `json:"detections"`
}

type rawDetection struct {
	Label      *string  `json:"label"`
	Confidence *float64 `json:"confidence"`
	Left       *float64 `json:"left"`
	Top        *float64 `json:"top"`
	Right      *float64 `json:"right"`
	Bottom     *float64 `json:"bottom"`
}

// ParseEvent decodes a detection file. Records with missing fields are
// dropped and reported in recordErrs; the rest of the batch is kept.
// err is non-nil only when the document itself cannot be decoded.
func ParseEvent(data []byte) (ev DetectionEvent, recordErrs []error, err error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return DetectionEvent{}, nil, fmt.Errorf("decode detection event: %w", err)
	}

	ev.Time = raw.Time
	ev.Detections = make([]Detection, 0, len(raw.Detections))
	for i, msg := range raw.Detections {
		d, err := parseDetection(i, msg)
		if err != nil {
			recordErrs = append(recordErrs, err)
			continue
		}
		ev.Detections = append(ev.Detections, d)
	}
	return ev, recordErrs, nil
}

func parseDetection(i int, msg json.RawMessage) (Detection, error) {
	var rd rawDetection
	if err := json.Unmarshal(msg, &rd); err != nil {
		return Detection{}, fmt.Errorf("detection %d: %w: %v", i, ErrMalformedInput, err)
	}

	missing := func(field string) error { return &RecordError{Index: i, Field: field} }
	switch {
	case rd.Label == nil:
		return Detection{}, missing("label")
	case rd.Confidence == nil:
		return Detection{}, missing("confidence")
	case rd.Left == nil:
		return Detection{}, missing("left")
	case rd.Top == nil:
		return Detection{}, missing("top")
	case rd.Right == nil:
		return Detection{}, missing("right")
	case rd.Bottom == nil:
		return Detection{}, missing("bottom")
	}

	return NewDetection(*rd.Label, *rd.Confidence, *rd.Left, *rd.Top, *rd.Right, *rd.Bottom), nil
}
