package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/qaharvest/models"
)

// Version is reported by the health endpoint and the CLI.
const Version = "0.3.0"

// Health returns a handler for GET /api/v1/health. Status turns to
// "stopping" once a stop was requested for the current section.
func Health(runs RunTracker, backend string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if _, _, stats, ok := runs.Status(); ok && stats.StopRequested {
			status = "stopping"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Backend: backend,
			Version: Version,
		})
	}
}
