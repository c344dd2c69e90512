// Package runbook implements deterministic matching of incidents against the
// tenant's runbook catalog, plus write-time validation of runbook templates.
package runbook

import (
	"regexp"
	"sort"

	"github.com/remedyloop/remedyd/internal/models"
)

// Select returns the first enabled runbook whose severity scope and trigger
// conditions match the incident, or nil when none match. A nil result is a
// valid terminal outcome: the incident simply stays open.
//
// Candidates must all belong to incident.TenantID; the repository query
// enforces that. Ordering is by CreatedAt ascending with ID as tie-breaker so
// the same incident shape always yields the same choice.
func Select(incident *models.Incident, candidates []*models.Runbook) *models.Runbook {
	sorted := make([]*models.Runbook, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	for _, rb := range sorted {
		if !rb.Enabled {
			continue
		}
		if !scopeMatches(rb.SeverityScope, incident.Severity) {
			continue
		}
		if Matches(rb.Trigger, incident) {
			return rb
		}
	}
	return nil
}

func scopeMatches(scope models.SeverityScope, sev models.Severity) bool {
	return scope == models.ScopeAll || models.Severity(scope) == sev
}

// Matches evaluates the trigger conjunction: every present predicate must
// hold, an absent predicate is "don't care".
func Matches(tc models.TriggerConditions, incident *models.Incident) bool {
	if tc.Source != nil && *tc.Source != incident.Source {
		return false
	}
	if tc.MinSeverity != nil && !incident.Severity.AtLeast(*tc.MinSeverity) {
		return false
	}
	if tc.TitlePattern != nil {
		re, err := regexp.Compile("(?i)" + *tc.TitlePattern)
		if err != nil {
			// Invalid patterns are rejected at catalog write time; a stored
			// one that slipped through must not match anything.
			return false
		}
		if !re.MatchString(incident.Title) {
			return false
		}
	}
	return true
}
