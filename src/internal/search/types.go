package search

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies one federated record source.
type SourceType string

const (
	SourceJob      SourceType = "job"
	SourceResource SourceType = "resource"
	SourcePartner  SourceType = "partner"
	SourceProgram  SourceType = "program"
)

// AllSources lists every source type in fanout iteration order.
var AllSources = []SourceType{SourceJob, SourceResource, SourcePartner, SourceProgram}

// ParseSourceType normalizes a raw string to a known source type.
func ParseSourceType(s string) (SourceType, bool) {
	t := SourceType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceJob, SourceResource, SourcePartner, SourceProgram:
		return true
	}
	return false
}

// Facet dimension names used in SearchResponse.Facets.
const (
	FacetClimateSectors  = "climate_sectors"
	FacetEmploymentTypes = "employment_types"
)

// Canonical RawFields keys shared across sources. Each source stores its
// native tag column under these names so the aggregator stays
// source-agnostic.
const (
	FieldClimateSectors = "climate_sectors"
	FieldEmploymentType = "employment_type"
)

// DateRangeWindow maps a date range token to its lookback duration.
func DateRangeWindow(token string) (time.Duration, bool) {
	switch token {
	case "24h":
		return 24 * time.Hour, true
	case "7d":
		return 7 * 24 * time.Hour, true
	case "30d":
		return 30 * 24 * time.Hour, true
	case "90d":
		return 90 * 24 * time.Hour, true
	}
	return 0, false
}

// FilterSet narrows a query to matching sources and records.
type FilterSet struct {
	ContentTypes    []SourceType `json:"content_types,omitempty"`
	ClimateSectors  []string     `json:"climate_sectors,omitempty"`
	EmploymentTypes []string     `json:"employment_types,omitempty"`
	Location        string       `json:"location,omitempty"`
	ExperienceLevel string       `json:"experience_level,omitempty"`
	SalaryRange     string       `json:"salary_range,omitempty"`
	DateRange       string       `json:"date_range,omitempty"`
}

// EnabledSources returns the sources this filter set selects, deduplicated
// and in fanout iteration order. An empty content type list selects all.
func (f FilterSet) EnabledSources() []SourceType {
	if len(f.ContentTypes) == 0 {
		return append([]SourceType(nil), AllSources...)
	}
	requested := make(map[SourceType]bool, len(f.ContentTypes))
	for _, t := range f.ContentTypes {
		requested[t] = true
	}
	enabled := make([]SourceType, 0, len(requested))
	for _, t := range AllSources {
		if requested[t] {
			enabled = append(enabled, t)
		}
	}
	return enabled
}

// Query is one logical search request.
type Query struct {
	FreeText      string    `json:"free_text"`
	Filters       FilterSet `json:"filters"`
	Limit         int       `json:"limit"`
	IncludeFacets bool      `json:"include_facets"`
}

// CandidateRecord is a read-only projection of one datastore row.
type CandidateRecord struct {
	ID          uuid.UUID              `json:"id"`
	Source      SourceType             `json:"source_type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	RawFields   map[string]interface{} `json:"raw_fields,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ScoredResult pairs a candidate with its relevance score and highlights.
type ScoredResult struct {
	Record     CandidateRecord `json:"record"`
	Score      float64         `json:"score"`
	Highlights []string        `json:"highlights,omitempty"`
}

// Facet is one value and count pair within a facet dimension.
type Facet struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// SourceStatus records the outcome of one per-source sub-query.
type SourceStatus struct {
	Source    SourceType `json:"source"`
	OK        bool       `json:"ok"`
	Error     string     `json:"error,omitempty"`
	Count     int        `json:"count"`
	ElapsedMs int64      `json:"elapsed_ms"`
}

// SearchResponse is the assembled answer for one query execution.
type SearchResponse struct {
	Results []ScoredResult `json:"results"`
	// Total counts scored candidates before truncation. Sub-queries are
	// capped per source, so this undercounts full datastore matches.
	Total       int                `json:"total"`
	Facets      map[string][]Facet `json:"facets,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	Sources     []SourceStatus     `json:"sources,omitempty"`
	ElapsedMs   int64              `json:"elapsed_ms"`
}
