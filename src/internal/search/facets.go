package search

import "sort"

// facetCounter tallies distinct values while remembering first-seen
// order for deterministic tie-breaking.
type facetCounter struct {
	counts map[string]int
	order  []string
}

func newFacetCounter() *facetCounter {
	return &facetCounter{counts: make(map[string]int)}
}

func (c *facetCounter) add(value string) {
	if value == "" {
		return
	}
	if _, seen := c.counts[value]; !seen {
		c.order = append(c.order, value)
	}
	c.counts[value]++
}

func (c *facetCounter) list() []Facet {
	out := make([]Facet, 0, len(c.order))
	for _, v := range c.order {
		out = append(out, Facet{Value: v, Count: c.counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// Aggregate counts facet values across the full per-source candidate
// sets, before merge truncation. Sector tags are counted for every
// source; employment type only for job candidates. Each dimension is
// sorted by descending count, ties keep first-seen order. Empty
// dimensions are omitted.
func Aggregate(fr *FanoutResult) map[string][]Facet {
	sectors := newFacetCounter()
	employment := newFacetCounter()
	for _, t := range fr.Order {
		for _, rec := range fr.Candidates[t] {
			if values, ok := rec.RawFields[FieldClimateSectors].([]string); ok {
				for _, v := range values {
					sectors.add(v)
				}
			}
			if t == SourceJob {
				if v, ok := rec.RawFields[FieldEmploymentType].(string); ok {
					employment.add(v)
				}
			}
		}
	}

	facets := make(map[string][]Facet, 2)
	if list := sectors.list(); len(list) > 0 {
		facets[FacetClimateSectors] = list
	}
	if list := employment.list(); len(list) > 0 {
		facets[FacetEmploymentTypes] = list
	}
	return facets
}
