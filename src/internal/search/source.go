package search

import "context"

// Canonical filter names used as FieldMapping.Filters keys.
const (
	FilterEmploymentType  = "employment_type"
	FilterExperienceLevel = "experience_level"
	FilterLocation        = "location"
	FilterSalaryRange     = "salary_range"
)

// SourceQuery is the capped, filter-translated sub-query handed to one
// source.
type SourceQuery struct {
	FreeText string
	Filters  FilterSet
	Limit    int
}

// Source retrieves candidate records from one backing table.
// Implementations match FreeText case-insensitively across their text
// columns, apply only the filters their mapping declares, and return
// newest records first.
type Source interface {
	Type() SourceType
	Search(ctx context.Context, q SourceQuery) ([]CandidateRecord, error)
}

// FieldMapping declares a source's native column names for the canonical
// search fields. Every source names its sector tags differently; the
// mapping keeps that heterogeneity out of the orchestrator and the
// aggregator.
type FieldMapping struct {
	Table        string
	TextColumns  []string
	SectorColumn string
	// Filters maps canonical filter names to native columns. A missing
	// entry means the filter does not apply to the source.
	Filters map[string]string
}

var fieldMappings = map[SourceType]FieldMapping{
	SourceJob: {
		Table:        "jobs",
		TextColumns:  []string{"title", "description", "company"},
		SectorColumn: "climate_sectors",
		Filters: map[string]string{
			FilterEmploymentType:  "employment_type",
			FilterExperienceLevel: "experience_level",
			FilterLocation:        "location",
			FilterSalaryRange:     "salary_range",
		},
	},
	SourceResource: {
		Table:        "resources",
		TextColumns:  []string{"title", "description"},
		SectorColumn: "topics",
		Filters:      map[string]string{},
	},
	SourcePartner: {
		Table:        "partners",
		TextColumns:  []string{"name", "description"},
		SectorColumn: "focus_areas",
		Filters: map[string]string{
			FilterLocation: "location",
		},
	},
	SourceProgram: {
		Table:        "programs",
		TextColumns:  []string{"title", "description", "provider"},
		SectorColumn: "sector_tags",
		Filters:      map[string]string{},
	},
}

// MappingFor returns the field mapping for a source type.
func MappingFor(t SourceType) (FieldMapping, bool) {
	m, ok := fieldMappings[t]
	return m, ok
}
