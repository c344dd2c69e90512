package repository

import (
	"context"
	"errors"
	"time"

	"github.com/remedyloop/remedyd/internal/models"
)

// ErrNotFound is returned when a tenant-scoped lookup matches no row.
var ErrNotFound = errors.New("not found")

// IncidentRepository defines incident data access. Every method is scoped to a
// tenant; a row belonging to another tenant is indistinguishable from a
// missing one.
type IncidentRepository interface {
	CreateIncident(ctx context.Context, incident *models.Incident) error
	GetIncident(ctx context.Context, tenantID, id string) (*models.Incident, error)
	// FindIncidentBySignal looks up an incident by its linked signal id, used
	// to deduplicate redelivered upstream signals.
	FindIncidentBySignal(ctx context.Context, tenantID, linkedSignalID string) (*models.Incident, error)
	ListIncidents(ctx context.Context, tenantID string, filter models.IncidentFilter) ([]*models.Incident, error)
	// CompareAndSetStatus transitions the incident status only if the stored
	// status still equals expected. Returns false (and no error) when the
	// guard fails; a losing writer treats that as a benign no-op.
	CompareAndSetStatus(ctx context.Context, tenantID, id string, expected, next models.IncidentStatus, resolvedAt *time.Time) (bool, error)
	// DeleteIncident cascades to the incident's action log. Test/teardown
	// only, never part of normal operation.
	DeleteIncident(ctx context.Context, tenantID, id string) error
}

// RunbookRepository defines catalog data access.
type RunbookRepository interface {
	CreateRunbook(ctx context.Context, rb *models.Runbook) error
	GetRunbook(ctx context.Context, tenantID, id string) (*models.Runbook, error)
	ListRunbooks(ctx context.Context, tenantID string) ([]*models.Runbook, error)
	// ListCandidateRunbooks returns enabled runbooks whose severity scope is
	// "all" or exactly sev, the coarse pre-filter before trigger evaluation.
	ListCandidateRunbooks(ctx context.Context, tenantID string, sev models.Severity) ([]*models.Runbook, error)
	UpdateRunbook(ctx context.Context, rb *models.Runbook) error
	SetRunbookEnabled(ctx context.Context, tenantID, id string, enabled bool) error
}

// ActionLogRepository defines access to the append-mostly audit ledger.
type ActionLogRepository interface {
	AppendAction(ctx context.Context, entry *models.ActionLogEntry) error
	// UpdateActionStatus mutates only the status and error message; type and
	// payload are immutable once written.
	UpdateActionStatus(ctx context.Context, tenantID, entryID string, status models.ActionStatus, errMsg *string) error
	ListActions(ctx context.Context, tenantID, incidentID string) ([]*models.ActionLogEntry, error)
	// ListReversibleActions returns success entries newest-first, the order
	// the rollback engine walks them in.
	ListReversibleActions(ctx context.Context, tenantID, incidentID string) ([]*models.ActionLogEntry, error)
	QueryActionLog(ctx context.Context, tenantID string, filter models.ActionLogFilter) ([]*models.ActionLogEntry, error)
}

// NotificationRepository defines notification channel data access.
type NotificationRepository interface {
	CreateChannel(ctx context.Context, ch *models.NotificationChannel) error
	ListChannels(ctx context.Context, tenantID string) ([]*models.NotificationChannel, error)
	DeleteChannel(ctx context.Context, tenantID, id string) error
}

// Store aggregates all repositories behind one handle.
type Store interface {
	IncidentRepository
	RunbookRepository
	ActionLogRepository
	NotificationRepository
}
