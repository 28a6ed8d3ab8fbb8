package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/greenboardhq/greenboard/src/internal/api/handlers"
	echoMiddleware "github.com/greenboardhq/greenboard/src/internal/api/middleware"
)

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	// Health checks
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/healthz", s.handleHealthz)

	// Service info
	s.echo.GET("/", s.handleRoot)

	// API v1 routes
	apiV1 := s.echo.Group("/api/v1")
	apiV1.GET("/health", s.handleHealth)

	// Search routes
	searchHandler := handlers.NewSearchHandler(s.searchService, s.config)
	searchHandler.RegisterRoutes(apiV1)

	// Admin routes
	if s.config.GetBool("features.admin") {
		adminGroup := apiV1.Group("/admin")
		adminHandler := handlers.NewAdminHandler(s.db, s.config, s.cache)
		adminHandler.RegisterRoutes(adminGroup)

		if s.config.GetBool("metrics.enabled") {
			adminGroup.GET("/metrics", echoMiddleware.MetricsHandler(s.metrics, s.config.GetString("version")))
		}
	}

	// Catch-all for 404
	s.echo.RouteNotFound("/*", s.handle404)
}

// handleRoot describes the service
func (s *Server) handleRoot(c echo.Context) error {
	base := s.config.GetString("server.url")
	if base == "" {
		base = s.network.GetBestURL(c, s.config.GetInt("server.port"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":        "Greenboard",
		"description": "Federated search across climate jobs, resources, partners, and training programs",
		"version":     s.config.GetString("version"),
		"endpoints": map[string]string{
			"search":      base + "/api/v1/search",
			"suggestions": base + "/api/v1/search/suggestions",
			"sources":     base + "/api/v1/sources",
			"health":      base + "/healthz",
		},
	})
}

// Health check handler
func (s *Server) handleHealth(c echo.Context) error {
	health := map[string]interface{}{
		"status":  "healthy",
		"version": s.config.GetString("version"),
		"uptime":  s.getUptime(),
	}

	// Check database
	if err := s.db.Exec("SELECT 1").Error; err != nil {
		health["status"] = "unhealthy"
		health["database"] = "error"
	} else {
		health["database"] = "ok"
	}

	status := http.StatusOK
	if health["status"] == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, health)
}

// Enhanced health check handler
func (s *Server) handleHealthz(c echo.Context) error {
	healthz := s.getSystemStatus()

	status := http.StatusOK
	if healthz.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, healthz)
}

func (s *Server) handle404(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]interface{}{
		"error": "Not found",
		"path":  c.Request().URL.Path,
	})
}

// getUptime formats the elapsed time since server start
func (s *Server) getUptime() string {
	uptime := time.Since(s.startTime)
	days := int(uptime.Hours() / 24)
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
