package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/cache"
	"github.com/greenboardhq/greenboard/src/internal/database/models"
	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
	"github.com/greenboardhq/greenboard/src/internal/metrics"
	"github.com/greenboardhq/greenboard/src/internal/search"
	"github.com/greenboardhq/greenboard/src/internal/services"
)

// requestValidator mirrors the server package validator so handler tests
// exercise the same error shape without importing the server package.
type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i interface{}) error {
	if err := rv.v.Struct(i); err != nil {
		return apperrors.NewValidationError(err.Error(), "")
	}
	return nil
}

func setupHandlerTest(t *testing.T) (*echo.Echo, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	// A single connection keeps the concurrent sub-queries on the same
	// in-memory database.
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
	cfg.Set("features.suggestions", true)
	cfg.Set("search.default_limit", 20)
	cfg.Set("search.max_limit", 100)

	svc := services.NewSearchService(db, cfg, cache.NewResponseCache(0, 0), metrics.NewMetrics(db), nil)

	e := echo.New()
	e.Validator = &requestValidator{v: validator.New()}
	e.HTTPErrorHandler = apperrors.NewErrorHandler(cfg, nil).HTTPErrorHandler

	handler := NewSearchHandler(svc, cfg)
	handler.RegisterRoutes(e.Group("/api/v1"))

	return e, db
}

func seedHandlerFixture(t *testing.T, db *gorm.DB) {
	jobs := []models.Job{
		{
			Title:          "Solar Installer",
			Description:    "Install rooftop systems for homeowners.",
			Company:        "Bright Future Energy",
			Location:       "Denver, CO",
			EmploymentType: "full_time",
			ClimateSectors: "solar",
			IsActive:       true,
		},
	}
	for i := range jobs {
		require.NoError(t, db.Create(&jobs[i]).Error)
	}

	resources := []models.Resource{
		{
			Title:        "Wind Energy Basics",
			Description:  "An introduction to wind power careers.",
			ResourceType: "article",
			Topics:       "wind",
		},
	}
	for i := range resources {
		require.NoError(t, db.Create(&resources[i]).Error)
	}
}

func decodeSearchResponse(t *testing.T, rec *httptest.ResponseRecorder) search.SearchResponse {
	var resp search.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("ReturnsRankedResults", func(t *testing.T) {
		e, db := setupHandlerTest(t)
		seedHandlerFixture(t, db)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=solar", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeSearchResponse(t, rec)

		require.Len(t, resp.Results, 1)
		assert.Equal(t, "Solar Installer", resp.Results[0].Record.Title)
		assert.Equal(t, search.SourceJob, resp.Results[0].Record.Source)
		assert.InDelta(t, 0.9, resp.Results[0].Score, 1e-9)
		assert.Contains(t, resp.Results[0].Highlights, "<mark>Solar</mark> Installer")
		assert.Equal(t, 1, resp.Total)

		require.Len(t, resp.Sources, 4)
		for _, status := range resp.Sources {
			assert.True(t, status.OK, "source %s should succeed", status.Source)
		}
	})

	t.Run("AppliesFiltersFromQueryParams", func(t *testing.T) {
		e, db := setupHandlerTest(t)
		seedHandlerFixture(t, db)

		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/search?climate_sectors=wind&include_facets=true", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeSearchResponse(t, rec)

		require.Len(t, resp.Results, 1)
		assert.Equal(t, "Wind Energy Basics", resp.Results[0].Record.Title)
		require.Contains(t, resp.Facets, search.FacetClimateSectors)
		assert.Equal(t, []search.Facet{{Value: "wind", Count: 1}}, resp.Facets[search.FacetClimateSectors])
	})

	t.Run("RejectsUnknownContentType", func(t *testing.T) {
		e, _ := setupHandlerTest(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?content_types=video", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	})

	t.Run("RejectsNonIntegerLimit", func(t *testing.T) {
		e, _ := setupHandlerTest(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?limit=ten", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	})

	t.Run("NegativeLimitSurfacesServiceValidation", func(t *testing.T) {
		e, _ := setupHandlerTest(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?limit=-1", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Equal(t, "VALIDATION_FAILED", resp.Code)
		assert.Equal(t, "limit", resp.Details["field"])
	})
}

func TestSearchPostEndpoint(t *testing.T) {
	t.Run("BindsFiltersFromBody", func(t *testing.T) {
		e, db := setupHandlerTest(t)
		seedHandlerFixture(t, db)

		body := `{"text":"","climate_sectors":["wind"],"include_facets":true,"limit":10}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeSearchResponse(t, rec)

		require.Len(t, resp.Results, 1)
		assert.Equal(t, "Wind Energy Basics", resp.Results[0].Record.Title)
		assert.InDelta(t, 0.5, resp.Results[0].Score, 1e-9)
		assert.Contains(t, resp.Facets, search.FacetClimateSectors)
	})

	t.Run("RejectsInvalidDateRange", func(t *testing.T) {
		e, _ := setupHandlerTest(t)

		body := `{"text":"solar","date_range":"1y"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	})

	t.Run("RejectsMalformedBody", func(t *testing.T) {
		e, _ := setupHandlerTest(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader("{not json"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSuggestionsEndpoint(t *testing.T) {
	t.Run("ReturnsCorpusMatches", func(t *testing.T) {
		e, _ := setupHandlerTest(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/search/suggestions?q=solar", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Query       string   `json:"query"`
			Suggestions []string `json:"suggestions"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "solar", resp.Query)
		assert.Equal(t, []string{"Solar Installer", "Solar Panel Technician"}, resp.Suggestions)
	})

	t.Run("ShortPartialYieldsEmptyList", func(t *testing.T) {
		e, _ := setupHandlerTest(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/search/suggestions?q=s", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"suggestions":[]`)
	})

	t.Run("NotRegisteredWhenDisabled", func(t *testing.T) {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		require.NoError(t, err)

		cfg := viper.New()
		cfg.Set("features.suggestions", false)

		svc := services.NewSearchService(db, cfg, cache.NewResponseCache(0, 0), metrics.NewMetrics(db), nil)

		e := echo.New()
		handler := NewSearchHandler(svc, cfg)
		handler.RegisterRoutes(e.Group("/api/v1"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/search/suggestions?q=solar", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSourcesEndpoint(t *testing.T) {
	e, _ := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sources      []string `json:"sources"`
		DefaultLimit int      `json:"default_limit"`
		MaxLimit     int      `json:"max_limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"job", "resource", "partner", "program"}, resp.Sources)
	assert.Equal(t, 20, resp.DefaultLimit)
	assert.Equal(t, 100, resp.MaxLimit)
}
