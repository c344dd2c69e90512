package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/remedyloop/remedyd/internal/pkg/metrics"
)

// ErrNothingToRollback is returned when the incident has no successful
// forward actions to reverse.
var ErrNothingToRollback = errors.New("no successful actions to roll back")

// rollbackPayload is the persisted payload of a rollback log entry,
// referencing the original forward action it compensates.
type rollbackPayload struct {
	OriginalEntryID string          `json:"original_entry_id"`
	OriginalAction  string          `json:"original_action"`
	OriginalPayload json.RawMessage `json:"original_payload,omitempty"`
}

// Rollback walks the incident's successful actions in reverse execution
// order and invokes the compensating executor for each. Unlike forward
// execution, a failed step does not halt the reversal: a partially-reverted
// system beats a partially-remediated one, so every remaining action is
// still attempted. Actions without a registered inverse are logged as
// skipped so incomplete reversal is visible in the audit trail.
func (o *Orchestrator) Rollback(ctx context.Context, tenantID, incidentID, initiatedBy string) error {
	inc, err := o.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return err
	}
	entries, err := o.store.ListReversibleActions(ctx, tenantID, incidentID)
	if err != nil {
		return err
	}
	if initiatedBy == "" {
		initiatedBy = models.InitiatorOrchestrator
	}

	reversed := 0
	for _, original := range entries {
		// Escalation markers and prior rollback entries are bookkeeping, not
		// remediation steps.
		if original.ActionType == models.ActionTypeEscalate || original.ActionType == models.ActionTypeRollback {
			continue
		}
		reversed++

		payload, err := json.Marshal(rollbackPayload{
			OriginalEntryID: original.ID,
			OriginalAction:  original.ActionType,
			OriginalPayload: json.RawMessage(nonEmptyJSON(original.ActionPayload)),
		})
		if err != nil {
			return err
		}

		inverse := o.registry.Inverse(original.ActionType)
		if inverse == nil {
			// Best-effort, not guaranteed total reversal: record the gap
			// rather than silently omitting it.
			if err := o.store.AppendAction(ctx, &models.ActionLogEntry{
				IncidentID:    incidentID,
				TenantID:      tenantID,
				ActionType:    models.ActionTypeRollback,
				ActionPayload: string(payload),
				ActionOrder:   original.ActionOrder,
				Status:        models.ActionSkipped,
				InitiatedBy:   initiatedBy,
			}); err != nil {
				return err
			}
			metrics.RollbacksTotal.WithLabelValues("skipped").Inc()
			o.logger.Warn("no inverse registered, rollback step skipped",
				"tenant_id", tenantID, "incident_id", incidentID, "action_type", original.ActionType)
			continue
		}

		entry := &models.ActionLogEntry{
			IncidentID:    incidentID,
			TenantID:      tenantID,
			ActionType:    models.ActionTypeRollback,
			ActionPayload: string(payload),
			ActionOrder:   original.ActionOrder,
			Status:        models.ActionRunning,
			InitiatedBy:   initiatedBy,
		}
		if err := o.store.AppendAction(ctx, entry); err != nil {
			return err
		}

		if execErr := o.invokeInverse(ctx, inverse, original); execErr != nil {
			msg := execErr.Error()
			if err := o.store.UpdateActionStatus(ctx, tenantID, entry.ID, models.ActionFailed, &msg); err != nil {
				return err
			}
			metrics.RollbacksTotal.WithLabelValues("failed").Inc()
			o.logger.Error("rollback step failed, continuing with remaining actions",
				"tenant_id", tenantID, "incident_id", incidentID,
				"action_type", original.ActionType, "err", execErr)
			continue
		}

		if err := o.store.UpdateActionStatus(ctx, tenantID, entry.ID, models.ActionSuccess, nil); err != nil {
			return err
		}
		// The one legal mutation of a finished forward entry.
		if err := o.store.UpdateActionStatus(ctx, tenantID, original.ID, models.ActionRolledBack, nil); err != nil {
			return err
		}
		metrics.RollbacksTotal.WithLabelValues("success").Inc()
	}

	if reversed == 0 {
		return fmt.Errorf("incident %s: %w", incidentID, ErrNothingToRollback)
	}
	o.logger.Info("rollback completed", "tenant_id", tenantID, "incident_id", incidentID, "actions", reversed)
	o.publish(models.EventRollbackCompleted, inc, fmt.Sprintf("%d actions processed", reversed))
	return nil
}

func (o *Orchestrator) invokeInverse(ctx context.Context, inverse Executor, original *models.ActionLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, o.actionTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- inverse.Execute(ctx, json.RawMessage(nonEmptyJSON(original.ActionPayload))) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("rollback of %s timed out after %s", original.ActionType, o.actionTimeout)
	}
}

// nonEmptyJSON maps an empty stored payload to JSON null so RawMessage
// fields stay valid JSON.
func nonEmptyJSON(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
