package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/qaharvest/models"
)

// RunTracker exposes the section run in progress. *crawler.Crawler
// implements it.
type RunTracker interface {
	Status() (topicURL, section string, stats models.RunStats, ok bool)
	Stop()
}

// GetRun returns a handler for GET /api/v1/run.
func GetRun(runs RunTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		topicURL, section, stats, ok := runs.Status()
		if !ok {
			c.JSON(http.StatusNotFound, models.RunResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeNoRun, Message: "no section has started yet"},
			})
			return
		}
		c.JSON(http.StatusOK, models.RunResponse{Section: section, TopicURL: topicURL, Stats: stats})
	}
}

// StopRun returns a handler for POST /api/v1/run/stop. The current record
// is finished and flushed before the run ends.
func StopRun(runs RunTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs.Stop()
		slog.Info("stop requested", "source", "api", "client", c.ClientIP())

		topicURL, section, stats, _ := runs.Status()
		c.JSON(http.StatusAccepted, models.RunResponse{Section: section, TopicURL: topicURL, Stats: stats})
	}
}
