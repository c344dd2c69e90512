package models

import (
	"encoding/json"
	"time"
)

// SeverityScope is the coarse pre-filter a runbook applies before its trigger
// conditions are evaluated: "all" or one exact severity.
type SeverityScope string

const ScopeAll SeverityScope = "all"

// ValidSeverityScope reports whether scope is "all" or a known severity.
func ValidSeverityScope(scope SeverityScope) bool {
	return scope == ScopeAll || ValidSeverity(Severity(scope))
}

// TriggerConditions is a conjunction of optional predicates. An absent (nil)
// predicate is "don't care"; all present predicates must hold for a match.
type TriggerConditions struct {
	// Source must equal the incident source exactly.
	Source *IncidentSource `json:"source,omitempty"`
	// MinSeverity is an ordinal >= comparison against the incident severity.
	MinSeverity *Severity `json:"min_severity,omitempty"`
	// TitlePattern is a case-insensitive regex searched against the incident
	// title (substring search, not a full match).
	TitlePattern *string `json:"title_pattern,omitempty"`
}

// RunbookAction is a single ordered remediation step. Order is a strict total
// order within a runbook; duplicate orders are a configuration error rejected
// at catalog write time.
type RunbookAction struct {
	Type             string          `json:"type"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	Order            int             `json:"order"`
	RequiresApproval bool            `json:"requires_approval,omitempty"`
}

// Runbook is a declarative, tenant-scoped remediation template. Runbooks are
// never shared across tenants, even when content is identical.
type Runbook struct {
	ID            string        `json:"id" db:"id"`
	TenantID      string        `json:"tenant_id" db:"tenant_id"`
	Name          string        `json:"name" db:"name"`
	SeverityScope SeverityScope `json:"severity_scope" db:"severity_scope"`
	// TriggerJSON / ActionsJSON are the persisted encodings; the repository
	// decodes them into Trigger / Actions on read.
	TriggerJSON string            `json:"-" db:"trigger_json"`
	ActionsJSON string            `json:"-" db:"actions_json"`
	Trigger     TriggerConditions `json:"trigger_conditions" db:"-"`
	Actions     []RunbookAction   `json:"actions" db:"-"`
	// RequiresHSOEApproval pauses the whole runbook for a human go-ahead
	// before any action executes, regardless of per-action flags.
	RequiresHSOEApproval bool      `json:"requires_hsoe_approval" db:"requires_hsoe_approval"`
	Enabled              bool      `json:"enabled" db:"enabled"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}
