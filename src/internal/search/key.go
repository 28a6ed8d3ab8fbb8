package search

import (
	"fmt"
	"sort"
	"strings"
)

// CacheKey derives the deterministic cache key for a query. Field order
// is fixed and set-valued filters are sorted, so logically identical
// queries collide on the same entry. Free text is lowercased because
// matching is case-insensitive.
func CacheKey(q Query) string {
	enabled := q.Filters.EnabledSources()
	types := make([]string, len(enabled))
	for i, t := range enabled {
		types[i] = string(t)
	}
	return fmt.Sprintf("search:q=%s:types=%s:sectors=%s:employment=%s:location=%s:experience=%s:salary=%s:date=%s:limit=%d:facets=%t",
		strings.ToLower(strings.TrimSpace(q.FreeText)),
		strings.Join(types, ","),
		strings.Join(sortedCopy(q.Filters.ClimateSectors), ","),
		strings.Join(sortedCopy(q.Filters.EmploymentTypes), ","),
		q.Filters.Location,
		q.Filters.ExperienceLevel,
		q.Filters.SalaryRange,
		q.Filters.DateRange,
		q.Limit,
		q.IncludeFacets,
	)
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
