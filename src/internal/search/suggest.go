package search

import "strings"

// suggestionCorpus is the static term list served to typeahead clients.
// Matches are returned in corpus order, not relevance order.
var suggestionCorpus = []string{
	"Solar Installer",
	"Solar Panel Technician",
	"Wind Turbine Technician",
	"Energy Efficiency Auditor",
	"EV Charging Engineer",
	"Sustainability Analyst",
	"Climate Policy Advisor",
	"Carbon Accounting",
	"Green Building",
	"Renewable Energy",
	"Environmental Justice",
	"Heat Pump Installation",
	"Battery Storage",
	"Grid Modernization",
	"Regenerative Agriculture",
	"Clean Energy Finance",
	"Recycling Operations",
	"Urban Forestry",
	"Water Conservation",
	"Electric Fleet Mechanic",
}

const (
	minPartialLength = 2
	maxSuggestions   = 5
)

// Suggest returns up to five corpus terms containing the partial text,
// matched case-insensitively. Partials shorter than two characters
// yield no suggestions.
func Suggest(partial string) []string {
	partial = strings.TrimSpace(partial)
	if len(partial) < minPartialLength {
		return []string{}
	}
	needle := strings.ToLower(partial)
	out := make([]string, 0, maxSuggestions)
	for _, term := range suggestionCorpus {
		if strings.Contains(strings.ToLower(term), needle) {
			out = append(out, term)
			if len(out) == maxSuggestions {
				break
			}
		}
	}
	return out
}
