package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/peoplecounter/internal/models"
	"github.com/your-org/peoplecounter/internal/tracking"
)

type History struct {
	Labels []string `json:"labels"`
	Counts []int    `json:"counts"`
}

// DataResponse is the body of GET /api/data.
type DataResponse struct {
	Timestamp     string              `json:"timestamp"`
	Detections    []models.Detection  `json:"detections"`
	Tracks        []tracking.Identity `json:"tracks"`
	CrossingCount int                 `json:"crossing_count"`
	History       History             `json:"history"`
	LineX         float64             `json:"line_x"`
	ActiveTracks  int                 `json:"active_tracks"`
}

type SettingsRequest struct {
	UpdateFrequency     *int     `json:"update_frequency,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

type SettingsResponse struct {
	Success             bool    `json:"success"`
	UpdateFrequency     int     `json:"update_frequency"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

type StatusResponse struct {
	Status        string  `json:"status"`
	Time          string  `json:"time"`
	Goroutines    int     `json:"goroutines"`
	Source        string  `json:"source"`
	HasData       bool    `json:"has_data"`
	LastFrame     string  `json:"last_frame"`
	ActiveTracks  int     `json:"active_tracks"`
	CrossingCount int     `json:"crossing_count"`
	LineX         float64 `json:"line_x"`
	Uptime        string  `json:"uptime"`
	// QueueDepth is the DETECTIONS backlog; absent when NATS is off.
	QueueDepth *uint64 `json:"queue_depth,omitempty"`
}

// CrossingEvent announces that one or more identities crossed the line
// during a single frame.
type CrossingEvent struct {
	ID        uuid.UUID `json:"id"`
	FrameTime string    `json:"frame_time"`
	Count     int       `json:"count"`
	Total     int       `json:"total"`
	TrackIDs  []int     `json:"track_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// ControlMessage is carried on the control subject.
type ControlMessage struct {
	Action   string           `json:"action"` // reset, settings
	Settings *SettingsRequest `json:"settings,omitempty"`
}

// WSEvent is a WebSocket message for real-time delivery.
type WSEvent struct {
	Type     string         `json:"type"` // snapshot, crossing
	Data     *DataResponse  `json:"data,omitempty"`
	Crossing *CrossingEvent `json:"crossing,omitempty"`
}
