package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remedyloop/remedyd/internal/models"
)

func (r *SQLRepository) AppendAction(ctx context.Context, entry *models.ActionLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.InitiatedBy == "" {
		entry.InitiatedBy = models.InitiatorOrchestrator
	}

	query := r.rebind(`
		INSERT INTO action_log (id, incident_id, tenant_id, action_type, action_payload,
			action_order, status, error_message, initiated_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.IncidentID,
		entry.TenantID,
		entry.ActionType,
		entry.ActionPayload,
		entry.ActionOrder,
		entry.Status,
		entry.ErrorMessage,
		entry.InitiatedBy,
		entry.CreatedAt,
	)
	return err
}

// UpdateActionStatus touches only status and error_message. The type and
// payload columns have no update path anywhere in this package.
func (r *SQLRepository) UpdateActionStatus(ctx context.Context, tenantID, entryID string, status models.ActionStatus, errMsg *string) error {
	query := r.rebind(`UPDATE action_log SET status = ?, error_message = ? WHERE tenant_id = ? AND id = ?`)
	res, err := r.db.ExecContext(ctx, query, status, errMsg, tenantID, entryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action log entry %s: %w", entryID, ErrNotFound)
	}
	return nil
}

func (r *SQLRepository) ListActions(ctx context.Context, tenantID, incidentID string) ([]*models.ActionLogEntry, error) {
	var entries []*models.ActionLogEntry
	query := r.rebind(`
		SELECT * FROM action_log
		WHERE tenant_id = ? AND incident_id = ?
		ORDER BY created_at ASC, action_order ASC
	`)
	err := r.db.SelectContext(ctx, &entries, query, tenantID, incidentID)
	return entries, err
}

func (r *SQLRepository) ListReversibleActions(ctx context.Context, tenantID, incidentID string) ([]*models.ActionLogEntry, error) {
	var entries []*models.ActionLogEntry
	// Reverse of execution order: newest first.
	query := r.rebind(`
		SELECT * FROM action_log
		WHERE tenant_id = ? AND incident_id = ? AND status = ?
		ORDER BY created_at DESC, action_order DESC
	`)
	err := r.db.SelectContext(ctx, &entries, query, tenantID, incidentID, models.ActionSuccess)
	return entries, err
}

func (r *SQLRepository) QueryActionLog(ctx context.Context, tenantID string, filter models.ActionLogFilter) ([]*models.ActionLogEntry, error) {
	query := `SELECT * FROM action_log WHERE tenant_id = ?`
	args := []interface{}{tenantID}

	if filter.IncidentID != nil {
		query += " AND incident_id = ?"
		args = append(args, *filter.IncidentID)
	}
	if filter.ActionType != nil {
		query += " AND action_type = ?"
		args = append(args, *filter.ActionType)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query += " AND created_at <= ?"
		args = append(args, *filter.Until)
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var entries []*models.ActionLogEntry
	err := r.db.SelectContext(ctx, &entries, r.rebind(query), args...)
	return entries, err
}
