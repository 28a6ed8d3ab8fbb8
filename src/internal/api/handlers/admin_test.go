package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/cache"
	"github.com/greenboardhq/greenboard/src/internal/database/models"
)

func setupAdminTest(t *testing.T, responseCache *cache.ResponseCache) (*echo.Echo, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Job{},
		&models.Resource{},
		&models.Partner{},
		&models.Program{},
	)
	require.NoError(t, err)

	cfg := viper.New()
	cfg.Set("version", "test")
	cfg.Set("environment", "test")
	cfg.Set("database.type", "sqlite")

	e := echo.New()
	handler := NewAdminHandler(db, cfg, responseCache)
	handler.RegisterRoutes(e.Group("/api/v1/admin"))

	return e, db
}

func TestAdminDashboard(t *testing.T) {
	e, db := setupAdminTest(t, cache.NewResponseCache(0, 0))

	jobs := []models.Job{
		{Title: "Solar Installer", IsActive: true},
		{Title: "Grid Analyst", IsActive: false},
	}
	for i := range jobs {
		require.NoError(t, db.Create(&jobs[i]).Error)
	}
	require.NoError(t, db.Create(&models.Resource{Title: "Wind Energy Basics"}).Error)

	// Soft deleted records must not count.
	retired := models.Job{Title: "Coal Plant Operator", IsActive: true}
	require.NoError(t, db.Create(&retired).Error)
	require.NoError(t, db.Delete(&retired).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Stats      map[string]int64  `json:"stats"`
		Cache      cache.Stats       `json:"cache"`
		SystemInfo map[string]string `json:"system_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, int64(2), resp.Stats["total_jobs"])
	assert.Equal(t, int64(1), resp.Stats["active_jobs"])
	assert.Equal(t, int64(1), resp.Stats["total_resources"])
	assert.Equal(t, int64(0), resp.Stats["total_partners"])
	assert.Equal(t, int64(0), resp.Stats["total_programs"])
	assert.Equal(t, "test", resp.SystemInfo["version"])
	assert.Equal(t, "sqlite", resp.SystemInfo["database"])
}

func TestAdminCacheStats(t *testing.T) {
	responseCache := cache.NewResponseCache(0, 0)
	e, _ := setupAdminTest(t, responseCache)

	ctx := context.Background()
	responseCache.Set(ctx, "k1", "v1", cache.TagAPIData)
	responseCache.Get(ctx, "k1")
	responseCache.Get(ctx, "missing")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestAdminInvalidateCache(t *testing.T) {
	t.Run("DefaultsToAPIDataTag", func(t *testing.T) {
		responseCache := cache.NewResponseCache(0, 0)
		e, _ := setupAdminTest(t, responseCache)

		ctx := context.Background()
		responseCache.Set(ctx, "api", "v", cache.TagAPIData)
		responseCache.Set(ctx, "other", "v", "reports")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/invalidate", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Invalidated int      `json:"invalidated"`
			Tags        []string `json:"tags"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Invalidated)
		assert.Equal(t, []string{cache.TagAPIData}, resp.Tags)

		_, found := responseCache.Get(ctx, "api")
		assert.False(t, found)
		_, found = responseCache.Get(ctx, "other")
		assert.True(t, found)
	})

	t.Run("AcceptsExplicitTags", func(t *testing.T) {
		responseCache := cache.NewResponseCache(0, 0)
		e, _ := setupAdminTest(t, responseCache)

		ctx := context.Background()
		responseCache.Set(ctx, "api", "v", cache.TagAPIData)
		responseCache.Set(ctx, "other", "v", "reports")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/invalidate?tags=reports", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Invalidated int      `json:"invalidated"`
			Tags        []string `json:"tags"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Invalidated)
		assert.Equal(t, []string{"reports"}, resp.Tags)

		_, found := responseCache.Get(ctx, "api")
		assert.True(t, found)
	})
}

func TestAdminCleanCache(t *testing.T) {
	responseCache := cache.NewResponseCache(time.Nanosecond, 0)
	e, _ := setupAdminTest(t, responseCache)

	ctx := context.Background()
	responseCache.Set(ctx, "stale", "v", cache.TagAPIData)
	time.Sleep(time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/clean", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Removed)
	assert.Equal(t, 0, responseCache.Stats().Entries)
}
