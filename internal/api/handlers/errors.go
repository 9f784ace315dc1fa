package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/peoplecounter/internal/config"
	"github.com/your-org/peoplecounter/internal/guard"
)

// respondError maps domain errors onto HTTP. A lock timeout is reported
// explicitly so a dashboard never renders stale data as current.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, guard.ErrLockTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "lock_timeout",
			"message":   err.Error(),
			"retryable": true,
		})
	case errors.Is(err, config.ErrInvalidConfiguration):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_configuration",
			"message": err.Error(),
		})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
