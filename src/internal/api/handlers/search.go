package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"

	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
	"github.com/greenboardhq/greenboard/src/internal/search"
	"github.com/greenboardhq/greenboard/src/internal/services"
)

// SearchHandler handles search-related endpoints
type SearchHandler struct {
	service *services.SearchService
	config  *viper.Viper
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service *services.SearchService, config *viper.Viper) *SearchHandler {
	return &SearchHandler{
		service: service,
		config:  config,
	}
}

// SearchRequest is the JSON body accepted by the POST search endpoint.
type SearchRequest struct {
	Text            string   `json:"text"`
	ContentTypes    []string `json:"content_types" validate:"omitempty,dive,oneof=job resource partner program"`
	ClimateSectors  []string `json:"climate_sectors"`
	EmploymentTypes []string `json:"employment_types"`
	Location        string   `json:"location"`
	ExperienceLevel string   `json:"experience_level"`
	SalaryRange     string   `json:"salary_range"`
	DateRange       string   `json:"date_range" validate:"omitempty,oneof=24h 7d 30d 90d"`
	Limit           int      `json:"limit"`
	IncludeFacets   bool     `json:"include_facets"`
}

// Search performs a federated search from query parameters
func (h *SearchHandler) Search(c echo.Context) error {
	query, err := parseSearchQuery(c)
	if err != nil {
		return err
	}

	resp, err := h.service.Execute(c.Request().Context(), query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// SearchPost performs a federated search from a JSON body
func (h *SearchHandler) SearchPost(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", "body").WithCause(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	contentTypes, err := parseContentTypes(req.ContentTypes)
	if err != nil {
		return err
	}

	query := search.Query{
		FreeText: req.Text,
		Filters: search.FilterSet{
			ContentTypes:    contentTypes,
			ClimateSectors:  cleanList(req.ClimateSectors),
			EmploymentTypes: cleanList(req.EmploymentTypes),
			Location:        strings.TrimSpace(req.Location),
			ExperienceLevel: strings.TrimSpace(req.ExperienceLevel),
			SalaryRange:     strings.TrimSpace(req.SalaryRange),
			DateRange:       strings.TrimSpace(req.DateRange),
		},
		Limit:         req.Limit,
		IncludeFacets: req.IncludeFacets,
	}

	resp, err := h.service.Execute(c.Request().Context(), query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// Suggest provides type-ahead completions for a partial query
func (h *SearchHandler) Suggest(c echo.Context) error {
	partial := c.QueryParam("q")

	suggestions := h.service.Suggestions(partial)
	if suggestions == nil {
		suggestions = []string{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"query":       partial,
		"suggestions": suggestions,
	})
}

// Sources describes the record sources a search fans out to
func (h *SearchHandler) Sources(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sources":       search.AllSources,
		"default_limit": h.config.GetInt("search.default_limit"),
		"max_limit":     h.config.GetInt("search.max_limit"),
	})
}

// RegisterRoutes registers search routes
func (h *SearchHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/search", h.Search)
	g.POST("/search", h.SearchPost)
	g.GET("/sources", h.Sources)

	if h.config.GetBool("features.suggestions") {
		g.GET("/search/suggestions", h.Suggest)
	}
}

// parseSearchQuery builds a search query from GET query parameters.
func parseSearchQuery(c echo.Context) (search.Query, error) {
	contentTypes, err := parseContentTypes(splitCSV(c.QueryParam("content_types")))
	if err != nil {
		return search.Query{}, err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return search.Query{}, apperrors.NewValidationError("limit must be an integer", "limit")
		}
		limit = parsed
	}

	includeFacets, _ := strconv.ParseBool(c.QueryParam("include_facets"))

	return search.Query{
		FreeText: c.QueryParam("q"),
		Filters: search.FilterSet{
			ContentTypes:    contentTypes,
			ClimateSectors:  splitCSV(c.QueryParam("climate_sectors")),
			EmploymentTypes: splitCSV(c.QueryParam("employment_types")),
			Location:        strings.TrimSpace(c.QueryParam("location")),
			ExperienceLevel: strings.TrimSpace(c.QueryParam("experience_level")),
			SalaryRange:     strings.TrimSpace(c.QueryParam("salary_range")),
			DateRange:       strings.TrimSpace(c.QueryParam("date_range")),
		},
		Limit:         limit,
		IncludeFacets: includeFacets,
	}, nil
}

// parseContentTypes converts raw tokens to source types, rejecting
// anything unknown.
func parseContentTypes(raw []string) ([]search.SourceType, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	types := make([]search.SourceType, 0, len(raw))
	for _, token := range raw {
		t, ok := search.ParseSourceType(token)
		if !ok {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("unknown content type %q", token), "content_types")
		}
		types = append(types, t)
	}
	return types, nil
}

// splitCSV splits a comma separated parameter, dropping empty tokens.
func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return cleanList(strings.Split(raw, ","))
}

// cleanList trims every entry and drops the empty ones.
func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
