package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/cache"
	"github.com/greenboardhq/greenboard/src/internal/database/models"
)

// AdminHandler handles operational endpoints. Routes are only registered
// when features.admin is enabled.
type AdminHandler struct {
	db     *gorm.DB
	config *viper.Viper
	cache  *cache.ResponseCache
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *gorm.DB, config *viper.Viper, responseCache *cache.ResponseCache) *AdminHandler {
	return &AdminHandler{
		db:     db,
		config: config,
		cache:  responseCache,
	}
}

// Dashboard returns datastore and cache statistics
func (h *AdminHandler) Dashboard(c echo.Context) error {
	stats := map[string]interface{}{}

	var jobCount int64
	h.db.Model(&models.Job{}).Count(&jobCount)
	stats["total_jobs"] = jobCount

	var activeJobCount int64
	h.db.Model(&models.Job{}).Where("is_active = ?", true).Count(&activeJobCount)
	stats["active_jobs"] = activeJobCount

	var resourceCount int64
	h.db.Model(&models.Resource{}).Count(&resourceCount)
	stats["total_resources"] = resourceCount

	var partnerCount int64
	h.db.Model(&models.Partner{}).Count(&partnerCount)
	stats["total_partners"] = partnerCount

	var programCount int64
	h.db.Model(&models.Program{}).Count(&programCount)
	stats["total_programs"] = programCount

	systemInfo := map[string]interface{}{
		"version":     h.config.GetString("version"),
		"environment": h.config.GetString("environment"),
		"database":    h.config.GetString("database.type"),
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"stats":       stats,
		"cache":       h.cache.Stats(),
		"system_info": systemInfo,
	})
}

// CacheStats returns cache effectiveness counters
func (h *AdminHandler) CacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.cache.Stats())
}

// InvalidateCache flushes cached responses by tag. Without an explicit
// tag every API-derived entry is dropped.
func (h *AdminHandler) InvalidateCache(c echo.Context) error {
	tags := splitCSV(c.QueryParam("tags"))
	if len(tags) == 0 {
		tags = []string{cache.TagAPIData}
	}

	removed := h.cache.Invalidate(c.Request().Context(), tags...)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"invalidated": removed,
		"tags":        tags,
	})
}

// CleanCache evicts expired cache entries eagerly
func (h *AdminHandler) CleanCache(c echo.Context) error {
	removed := h.cache.CleanExpired(c.Request().Context())

	return c.JSON(http.StatusOK, map[string]interface{}{
		"removed": removed,
	})
}

// RegisterRoutes registers admin routes
func (h *AdminHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/dashboard", h.Dashboard)
	g.GET("/cache/stats", h.CacheStats)
	g.POST("/cache/invalidate", h.InvalidateCache)
	g.POST("/cache/clean", h.CleanCache)
}
