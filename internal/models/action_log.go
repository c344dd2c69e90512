package models

import "time"

// ActionStatus tracks a single attempted action.
// pending → running → {success | failed | skipped}; success → rolled_back.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionRunning    ActionStatus = "running"
	ActionSuccess    ActionStatus = "success"
	ActionFailed     ActionStatus = "failed"
	ActionSkipped    ActionStatus = "skipped"
	ActionRolledBack ActionStatus = "rolled_back"
)

// Reserved action types written by the orchestrator itself.
const (
	// ActionTypeEscalate marks the approval gate: a pending escalate entry is
	// written when execution pauses for human sign-off.
	ActionTypeEscalate = "escalate"
	// ActionTypeRollback marks a compensating action referencing an original
	// success entry.
	ActionTypeRollback = "rollback"
)

// InitiatorOrchestrator is the initiated_by value for automatic actions; any
// other value is a human identifier supplied by the approval collaborator.
const InitiatorOrchestrator = "orchestrator"

// ActionLogEntry is one append-only audit row per attempted action, rollback
// attempts included. Only Status (and ErrorMessage alongside it) is ever
// updated after insert; type and payload are immutable, which is what makes
// the log a trustworthy audit trail.
type ActionLogEntry struct {
	ID         string `json:"id" db:"id"`
	IncidentID string `json:"incident_id" db:"incident_id"`
	TenantID   string `json:"tenant_id" db:"tenant_id"`
	ActionType string `json:"action_type" db:"action_type"`
	// ActionPayload is opaque to the log; the executor registry interprets it.
	ActionPayload string       `json:"action_payload,omitempty" db:"action_payload"`
	ActionOrder   int          `json:"action_order" db:"action_order"`
	Status        ActionStatus `json:"status" db:"status"`
	ErrorMessage  *string      `json:"error_message,omitempty" db:"error_message"`
	InitiatedBy   string       `json:"initiated_by" db:"initiated_by"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// ActionLogFilter narrows audit queries. Nil fields are "don't care".
type ActionLogFilter struct {
	IncidentID *string
	ActionType *string
	Status     *ActionStatus
	Since      *time.Time
	Until      *time.Time
	Limit      int
}
