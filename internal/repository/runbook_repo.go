package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remedyloop/remedyd/internal/models"
)

// encodeRunbook serializes the trigger and action list into the persisted
// JSON columns. Validation has already run by the time this is called.
func encodeRunbook(rb *models.Runbook) error {
	trigger, err := json.Marshal(rb.Trigger)
	if err != nil {
		return fmt.Errorf("encode trigger: %w", err)
	}
	actions, err := json.Marshal(rb.Actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	rb.TriggerJSON = string(trigger)
	rb.ActionsJSON = string(actions)
	return nil
}

// decodeRunbook populates Trigger and Actions from the persisted columns.
func decodeRunbook(rb *models.Runbook) error {
	if err := json.Unmarshal([]byte(rb.TriggerJSON), &rb.Trigger); err != nil {
		return fmt.Errorf("decode trigger for runbook %s: %w", rb.ID, err)
	}
	if err := json.Unmarshal([]byte(rb.ActionsJSON), &rb.Actions); err != nil {
		return fmt.Errorf("decode actions for runbook %s: %w", rb.ID, err)
	}
	return nil
}

func (r *SQLRepository) CreateRunbook(ctx context.Context, rb *models.Runbook) error {
	if rb.ID == "" {
		rb.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rb.CreatedAt.IsZero() {
		rb.CreatedAt = now
	}
	rb.UpdatedAt = now
	if err := encodeRunbook(rb); err != nil {
		return err
	}

	query := r.rebind(`
		INSERT INTO runbooks (id, tenant_id, name, severity_scope, trigger_json, actions_json,
			requires_hsoe_approval, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		rb.ID,
		rb.TenantID,
		rb.Name,
		rb.SeverityScope,
		rb.TriggerJSON,
		rb.ActionsJSON,
		rb.RequiresHSOEApproval,
		rb.Enabled,
		rb.CreatedAt,
		rb.UpdatedAt,
	)
	return err
}

func (r *SQLRepository) GetRunbook(ctx context.Context, tenantID, id string) (*models.Runbook, error) {
	var rb models.Runbook
	query := r.rebind(`SELECT * FROM runbooks WHERE tenant_id = ? AND id = ?`)
	err := r.db.GetContext(ctx, &rb, query, tenantID, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("runbook %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := decodeRunbook(&rb); err != nil {
		return nil, err
	}
	return &rb, nil
}

func (r *SQLRepository) ListRunbooks(ctx context.Context, tenantID string) ([]*models.Runbook, error) {
	var runbooks []*models.Runbook
	query := r.rebind(`SELECT * FROM runbooks WHERE tenant_id = ? ORDER BY created_at ASC, id ASC`)
	if err := r.db.SelectContext(ctx, &runbooks, query, tenantID); err != nil {
		return nil, err
	}
	for _, rb := range runbooks {
		if err := decodeRunbook(rb); err != nil {
			return nil, err
		}
	}
	return runbooks, nil
}

func (r *SQLRepository) ListCandidateRunbooks(ctx context.Context, tenantID string, sev models.Severity) ([]*models.Runbook, error) {
	var runbooks []*models.Runbook
	// Deterministic candidate order: created_at ascending, id as tie-breaker.
	query := r.rebind(`
		SELECT * FROM runbooks
		WHERE tenant_id = ? AND enabled = ? AND severity_scope IN (?, ?)
		ORDER BY created_at ASC, id ASC
	`)
	if err := r.db.SelectContext(ctx, &runbooks, query, tenantID, true, models.ScopeAll, models.SeverityScope(sev)); err != nil {
		return nil, err
	}
	for _, rb := range runbooks {
		if err := decodeRunbook(rb); err != nil {
			return nil, err
		}
	}
	return runbooks, nil
}

func (r *SQLRepository) UpdateRunbook(ctx context.Context, rb *models.Runbook) error {
	rb.UpdatedAt = time.Now().UTC()
	if err := encodeRunbook(rb); err != nil {
		return err
	}
	query := r.rebind(`
		UPDATE runbooks
		SET name = ?, severity_scope = ?, trigger_json = ?, actions_json = ?,
		    requires_hsoe_approval = ?, enabled = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`)
	res, err := r.db.ExecContext(ctx, query,
		rb.Name,
		rb.SeverityScope,
		rb.TriggerJSON,
		rb.ActionsJSON,
		rb.RequiresHSOEApproval,
		rb.Enabled,
		rb.UpdatedAt,
		rb.TenantID,
		rb.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("runbook %s: %w", rb.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLRepository) SetRunbookEnabled(ctx context.Context, tenantID, id string, enabled bool) error {
	query := r.rebind(`UPDATE runbooks SET enabled = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`)
	res, err := r.db.ExecContext(ctx, query, enabled, time.Now().UTC(), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("runbook %s: %w", id, ErrNotFound)
	}
	return nil
}
