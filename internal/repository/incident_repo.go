package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remedyloop/remedyd/internal/models"
)

// ErrDuplicateSignal is returned when an insert collides with the partial
// unique index on (tenant_id, linked_signal_id). Callers treat it as a benign
// redelivery, not a failure.
var ErrDuplicateSignal = errors.New("incident already exists for linked signal")

func (r *SQLRepository) CreateIncident(ctx context.Context, incident *models.Incident) error {
	if incident.ID == "" {
		incident.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = now
	}
	incident.UpdatedAt = now

	query := r.rebind(`
		INSERT INTO incidents (id, tenant_id, source, linked_signal_id, severity, status,
			title, summary, root_cause_hypothesis, created_at, updated_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		incident.ID,
		incident.TenantID,
		incident.Source,
		incident.LinkedSignalID,
		incident.Severity,
		incident.Status,
		incident.Title,
		incident.Summary,
		incident.RootCauseHypothesis,
		incident.CreatedAt,
		incident.UpdatedAt,
		incident.ResolvedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateSignal
	}
	return err
}

func (r *SQLRepository) GetIncident(ctx context.Context, tenantID, id string) (*models.Incident, error) {
	var incident models.Incident
	query := r.rebind(`SELECT * FROM incidents WHERE tenant_id = ? AND id = ?`)
	err := r.db.GetContext(ctx, &incident, query, tenantID, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	return &incident, err
}

func (r *SQLRepository) FindIncidentBySignal(ctx context.Context, tenantID, linkedSignalID string) (*models.Incident, error) {
	var incident models.Incident
	query := r.rebind(`SELECT * FROM incidents WHERE tenant_id = ? AND linked_signal_id = ?`)
	err := r.db.GetContext(ctx, &incident, query, tenantID, linkedSignalID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("incident for signal %s: %w", linkedSignalID, ErrNotFound)
	}
	return &incident, err
}

func (r *SQLRepository) ListIncidents(ctx context.Context, tenantID string, filter models.IncidentFilter) ([]*models.Incident, error) {
	query := `SELECT * FROM incidents WHERE tenant_id = ?`
	args := []interface{}{tenantID}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.Severity != nil {
		query += " AND severity = ?"
		args = append(args, *filter.Severity)
	}
	if filter.Source != nil {
		query += " AND source = ?"
		args = append(args, *filter.Source)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var incidents []*models.Incident
	err := r.db.SelectContext(ctx, &incidents, r.rebind(query), args...)
	return incidents, err
}

func (r *SQLRepository) CompareAndSetStatus(ctx context.Context, tenantID, id string, expected, next models.IncidentStatus, resolvedAt *time.Time) (bool, error) {
	query := r.rebind(`
		UPDATE incidents
		SET status = ?, updated_at = ?, resolved_at = COALESCE(?, resolved_at)
		WHERE tenant_id = ? AND id = ? AND status = ?
	`)
	res, err := r.db.ExecContext(ctx, query, next, time.Now().UTC(), resolvedAt, tenantID, id, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLRepository) DeleteIncident(ctx context.Context, tenantID, id string) error {
	query := r.rebind(`DELETE FROM incidents WHERE tenant_id = ? AND id = ?`)
	_, err := r.db.ExecContext(ctx, query, tenantID, id)
	return err
}
