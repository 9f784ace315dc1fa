package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/peoplecounter/internal/config"
	"github.com/your-org/peoplecounter/internal/guard"
	"github.com/your-org/peoplecounter/internal/models"
	"github.com/your-org/peoplecounter/internal/state"
	"github.com/your-org/peoplecounter/internal/tracking"
	"github.com/your-org/peoplecounter/pkg/dto"
)

const noData = "No data"

// Backlog reports how many detection messages are waiting to be counted.
type Backlog interface {
	QueueDepth(ctx context.Context) (uint64, error)
}

type CounterHandler struct {
	state    *state.AggregationState
	settings *config.Settings
	lineX    float64
	source   string
	backlog  Backlog
	started  time.Time
}

func NewCounterHandler(st *state.AggregationState, settings *config.Settings, lineX float64, source string) *CounterHandler {
	return &CounterHandler{
		state:    st,
		settings: settings,
		lineX:    lineX,
		source:   source,
		started:  time.Now(),
	}
}

// WithBacklog adds the queue depth to /api/status.
func (h *CounterHandler) WithBacklog(b Backlog) *CounterHandler {
	h.backlog = b
	return h
}

// NewDataResponse shapes a snapshot for dashboard clients.
func NewDataResponse(snap state.Snapshot, lineX float64) *dto.DataResponse {
	resp := &dto.DataResponse{
		Timestamp:     snap.Timestamp,
		Detections:    snap.Detections,
		Tracks:        snap.Tracks,
		CrossingCount: snap.TotalCrossings,
		History:       dto.History{Labels: snap.Labels, Counts: snap.Counts},
		LineX:         lineX,
		ActiveTracks:  len(snap.Tracks),
	}
	if resp.Timestamp == "" {
		resp.Timestamp = noData
	}
	if resp.Detections == nil {
		resp.Detections = []models.Detection{}
	}
	if resp.Tracks == nil {
		resp.Tracks = []tracking.Identity{}
	}
	return resp
}

func (h *CounterHandler) Data(c *gin.Context) {
	snap, err := h.state.Snapshot(guard.WithFlow(c.Request.Context(), "dashboard"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDataResponse(snap, h.lineX))
}

func (h *CounterHandler) Reset(c *gin.Context) {
	if err := h.state.Reset(guard.WithFlow(c.Request.Context(), "control")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *CounterHandler) Settings(c *gin.Context) {
	var req dto.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err))
		return
	}

	values, err := h.settings.Apply(config.SettingsUpdate{
		UpdateFrequencyMs:   req.UpdateFrequency,
		ConfidenceThreshold: req.ConfidenceThreshold,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SettingsResponse{
		Success:             true,
		UpdateFrequency:     values.UpdateFrequencyMs,
		ConfidenceThreshold: values.ConfidenceThreshold,
	})
}

func (h *CounterHandler) Status(c *gin.Context) {
	snap, err := h.state.Snapshot(guard.WithFlow(c.Request.Context(), "status"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.StatusResponse{
		Status:        "ok",
		Time:          time.Now().Format(time.RFC3339),
		Goroutines:    runtime.NumGoroutine(),
		Source:        h.source,
		HasData:       snap.Timestamp != "",
		LastFrame:     snap.Timestamp,
		ActiveTracks:  len(snap.Tracks),
		CrossingCount: snap.TotalCrossings,
		LineX:         h.lineX,
		Uptime:        time.Since(h.started).Round(time.Second).String(),
	}
	if !resp.HasData {
		resp.LastFrame = noData
	}
	if h.backlog != nil {
		depth, err := h.backlog.QueueDepth(c.Request.Context())
		if err != nil {
			slog.Warn("read detection backlog", "error", err)
		} else {
			resp.QueueDepth = &depth
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CounterHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "API is working",
		"time":    time.Now().Format(time.RFC3339),
	})
}
