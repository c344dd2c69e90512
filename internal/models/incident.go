package models

import "time"

// Severity is the ordinal incident classification derived from a continuous
// risk signal. Assigned once at creation and never mutated; re-evaluation of a
// signal creates a new incident.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for min-severity comparisons.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// ValidSeverity reports whether s is a known severity value.
func ValidSeverity(s Severity) bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is greater than or equal to min on the
// low < medium < high < critical scale.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// IncidentSource identifies the signal origin of an incident.
type IncidentSource string

const (
	SourceForecast      IncidentSource = "forecast"
	SourceSafetyEvent   IncidentSource = "safety_event"
	SourceCognitiveFlag IncidentSource = "cognitive_flag"
	SourceManual        IncidentSource = "manual"
	SourceSystem        IncidentSource = "system"
)

// ValidSource reports whether src is a known incident source.
func ValidSource(src IncidentSource) bool {
	switch src {
	case SourceForecast, SourceSafetyEvent, SourceCognitiveFlag, SourceManual, SourceSystem:
		return true
	}
	return false
}

// IncidentStatus drives the incident lifecycle state machine.
type IncidentStatus string

const (
	StatusOpen             IncidentStatus = "open"
	StatusRemediating      IncidentStatus = "remediating"
	StatusAwaitingApproval IncidentStatus = "awaiting_approval"
	StatusResolved         IncidentStatus = "resolved"
	StatusClosed           IncidentStatus = "closed"
)

// Terminal reports whether the status admits no further automatic transitions.
func (s IncidentStatus) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Incident is one detected anomaly requiring tracked response. Every incident
// belongs to exactly one tenant; no read or write ever crosses tenants.
type Incident struct {
	ID                  string         `json:"id" db:"id"`
	TenantID            string         `json:"tenant_id" db:"tenant_id"`
	Source              IncidentSource `json:"source" db:"source"`
	// LinkedSignalID back-references the originating external record (forecast
	// or event id). A lookup key only, never an ownership relation.
	LinkedSignalID      *string        `json:"linked_signal_id,omitempty" db:"linked_signal_id"`
	Severity            Severity       `json:"severity" db:"severity"`
	Status              IncidentStatus `json:"status" db:"status"`
	Title               string         `json:"title" db:"title"`
	Summary             string         `json:"summary" db:"summary"`
	RootCauseHypothesis string         `json:"root_cause_hypothesis,omitempty" db:"root_cause_hypothesis"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
	// ResolvedAt is set if and only if Status is resolved or closed.
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
}

// IncidentFilter narrows ListIncidents queries. Nil fields are "don't care".
// TenantID is mandatory everywhere and therefore not optional here.
type IncidentFilter struct {
	Status   *IncidentStatus
	Severity *Severity
	Source   *IncidentSource
	Limit    int
}
