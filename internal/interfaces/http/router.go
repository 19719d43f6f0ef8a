// Package http is the gin transport of the assessment engine.
package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/EquityLens/internal/application/assessment"
	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/internal/interfaces/http/handlers"
	"github.com/turtacn/EquityLens/internal/interfaces/http/middleware"
)

// RouterDeps bundles everything the router mounts.  MetricsHandler and
// HealthChecks are optional.
type RouterDeps struct {
	Service        assessment.Service
	Logger         logging.Logger
	Observer       middleware.HTTPObserver
	MetricsHandler nethttp.Handler
	HealthChecks   map[string]handlers.HealthChecker
}

// NewRouter builds the gin engine with all routes and middleware attached.
func NewRouter(cfg config.ServerConfig, deps RouterDeps) *gin.Engine {
	switch cfg.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	log := deps.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log, deps.Observer))

	health := handlers.NewHealthHandler(deps.HealthChecks)
	r.GET("/healthz", health.Live)
	r.GET("/readyz", health.Ready)
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	reports := handlers.NewReportHandler(deps.Service)
	v1 := r.Group("/api/v1")
	{
		v1.POST("/reports", reports.Submit)
		v1.GET("/reports", reports.List)
		v1.GET("/reports/:id", reports.Get)
		v1.GET("/reports/:id/assessment", reports.GetAssessment)
		v1.GET("/reports/:id/history", reports.History)
		v1.POST("/reports/:id/reassess", reports.Reassess)
		v1.POST("/reports/:id/retract", reports.Retract)
		v1.POST("/reports/:id/archive", reports.Archive)
		v1.POST("/assessments/compare", reports.Compare)
	}
	return r
}
