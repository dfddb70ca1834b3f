package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/qaharvest/api/handler"
	"github.com/use-agent/qaharvest/api/middleware"
	"github.com/use-agent/qaharvest/config"
)

// NewRouter creates the status server engine.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Control: Auth (if keys are set) → RateLimit
//
// Health, run status and metrics stay open so probes and scrapers always work.
func NewRouter(runs handler.RunTracker, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Status.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(runs, cfg.Browser.Backend, startTime))
	v1.GET("/run", handler.GetRun(runs))

	control := v1.Group("")
	control.Use(middleware.Auth(cfg.Status.APIKeys))
	control.Use(middleware.RateLimit(cfg.Status.RatePerSecond, cfg.Status.Burst))
	control.POST("/run/stop", handler.StopRun(runs))

	return r
}
