package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/casefile-labs/bwc-pipeline/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg             *config.Config
	analysisHandler *Analysis
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, analysisHandler *Analysis) *Router {
	return &Router{
		cfg:             cfg,
		analysisHandler: analysisHandler,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")
	rt.setupAnalysisRoutes(v1)

	if rt.analysisHandler != nil {
		v1.GET("/cases/:caseNumber/analyses", rt.analysisHandler.ListByCase)
	}
}

// setupAnalysisRoutes configures the analysis run lifecycle routes
func (rt *Router) setupAnalysisRoutes(g *echo.Group) {
	analyses := g.Group("/analyses")

	if rt.analysisHandler != nil {
		analyses.POST("", rt.analysisHandler.Submit)
		analyses.GET("/:id/status", rt.analysisHandler.Status)
		analyses.GET("/:id/report", rt.analysisHandler.Report)
		analyses.POST("/:id/exports", rt.analysisHandler.Export)
		analyses.POST("/:id/cancel", rt.analysisHandler.Cancel)
	} else {
		analyses.POST("", rt.notImplemented)
		analyses.GET("/:id/status", rt.notImplemented)
		analyses.GET("/:id/report", rt.notImplemented)
		analyses.POST("/:id/exports", rt.notImplemented)
		analyses.POST("/:id/cancel", rt.notImplemented)
	}
}

// notImplemented returns 501 Not Implemented response
func (rt *Router) notImplemented(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]interface{}{
		"error":  "This endpoint is not yet implemented",
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
	})
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	env := "development"
	if rt.cfg != nil {
		env = rt.cfg.Server.Environment
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"time":        time.Now().Format(time.RFC3339),
		"environment": env,
	})
}
