package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pc",
		Name:      "frames_processed_total",
		Help:      "Total number of detection events processed",
	}, []string{"source"})

	DetectionsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pc",
		Name:      "detections_dropped_total",
		Help:      "Detection records dropped before tracking",
	}, []string{"reason"})

	IdentitiesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pc",
		Name:      "identities_created_total",
		Help:      "Total number of tracked identities created",
	})

	LineCrossings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pc",
		Name:      "line_crossings_total",
		Help:      "Total number of left-to-right line crossings",
	})

	ActiveTracks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pc",
		Name:      "active_tracks",
		Help:      "Number of identities in the live set",
	})

	LockTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pc",
		Name:      "lock_timeouts_total",
		Help:      "Guard acquisitions that exceeded the wait bound",
	}, []string{"op"})

	TrackingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pc",
		Name:      "tracking_duration_seconds",
		Help:      "Duration of one tracker update",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pc",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pc",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
