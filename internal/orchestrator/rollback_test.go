package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedyloop/remedyd/internal/models"
)

func seedSuccessEntry(t *testing.T, store *fakeStore, incidentID, actionType string, order int) *models.ActionLogEntry {
	t.Helper()
	entry := &models.ActionLogEntry{
		IncidentID:    incidentID,
		TenantID:      testTenant,
		ActionType:    actionType,
		ActionPayload: `{"target":"t1"}`,
		ActionOrder:   order,
		Status:        models.ActionSuccess,
		InitiatedBy:   models.InitiatorOrchestrator,
	}
	require.NoError(t, store.AppendAction(context.Background(), entry))
	return entry
}

func TestRollbackReversesNewestFirstAndSkipsMissingInverses(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry()
	var reversed []string
	reg.Register("notify", &recordingExecutor{})
	reg.Register("scale_down", &recordingExecutor{})
	reg.RegisterInverse("scale_down", ExecutorFunc(func(ctx context.Context, payload json.RawMessage) error {
		reversed = append(reversed, "scale_up")
		return nil
	}))
	pub := &recordingPublisher{}
	orch := New(store, reg, pub, nil, time.Second)

	inc := seedIncident(t, store, models.SeverityHigh, models.StatusRemediating)
	notifyEntry := seedSuccessEntry(t, store, inc.ID, "notify", 1)
	scaleEntry := seedSuccessEntry(t, store, inc.ID, "scale_down", 2)

	require.NoError(t, orch.Rollback(context.Background(), testTenant, inc.ID, "oncall"))

	assert.Equal(t, []string{"scale_up"}, reversed)

	entries, err := store.ListActions(context.Background(), testTenant, inc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4, "two originals plus two rollback entries")

	// Newest success entry is walked first: scale_down reversed, then notify
	// skipped for lack of an inverse.
	scaleRollback := entries[2]
	assert.Equal(t, models.ActionTypeRollback, scaleRollback.ActionType)
	assert.Equal(t, models.ActionSuccess, scaleRollback.Status)
	var p rollbackPayload
	require.NoError(t, json.Unmarshal([]byte(scaleRollback.ActionPayload), &p))
	assert.Equal(t, scaleEntry.ID, p.OriginalEntryID)
	assert.Equal(t, "scale_down", p.OriginalAction)

	notifyRollback := entries[3]
	assert.Equal(t, models.ActionTypeRollback, notifyRollback.ActionType)
	assert.Equal(t, models.ActionSkipped, notifyRollback.Status, "missing inverse is recorded, not silently omitted")

	// Only the reversed original flips to rolled_back.
	refreshed, err := store.ListActions(context.Background(), testTenant, inc.ID)
	require.NoError(t, err)
	for _, e := range refreshed {
		switch e.ID {
		case scaleEntry.ID:
			assert.Equal(t, models.ActionRolledBack, e.Status)
		case notifyEntry.ID:
			assert.Equal(t, models.ActionSuccess, e.Status)
		}
	}
	assert.Contains(t, pub.eventTypes(), models.EventRollbackCompleted)
}

func TestRollbackNothingToReverse(t *testing.T) {
	store := newFakeStore()
	orch := New(store, NewRegistry(), nil, nil, time.Second)

	inc := seedIncident(t, store, models.SeverityHigh, models.StatusRemediating)
	err := orch.Rollback(context.Background(), testTenant, inc.ID, "oncall")
	assert.ErrorIs(t, err, ErrNothingToRollback)
}

func TestRollbackFailureDoesNotHaltReversal(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry()
	reg.Register("block_segment", &recordingExecutor{})
	reg.Register("scale_down", &recordingExecutor{})
	// Newest entry's inverse fails; the older one must still be attempted.
	reg.RegisterInverse("scale_down", ExecutorFunc(func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("autoscaler rejected request")
	}))
	unblocked := &recordingExecutor{}
	reg.RegisterInverse("block_segment", unblocked)
	orch := New(store, reg, nil, nil, time.Second)

	inc := seedIncident(t, store, models.SeverityHigh, models.StatusRemediating)
	blockEntry := seedSuccessEntry(t, store, inc.ID, "block_segment", 1)
	scaleEntry := seedSuccessEntry(t, store, inc.ID, "scale_down", 2)

	require.NoError(t, orch.Rollback(context.Background(), testTenant, inc.ID, "oncall"))

	assert.Equal(t, 1, unblocked.callCount(), "reversal continues past a failed step")

	entries, err := store.ListActions(context.Background(), testTenant, inc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	failedRollback := entries[2]
	assert.Equal(t, models.ActionFailed, failedRollback.Status)
	require.NotNil(t, failedRollback.ErrorMessage)
	assert.Contains(t, *failedRollback.ErrorMessage, "autoscaler rejected request")

	okRollback := entries[3]
	assert.Equal(t, models.ActionSuccess, okRollback.Status)

	for _, e := range entries {
		switch e.ID {
		case scaleEntry.ID:
			assert.Equal(t, models.ActionSuccess, e.Status, "failed reversal leaves the original untouched")
		case blockEntry.ID:
			assert.Equal(t, models.ActionRolledBack, e.Status)
		}
	}
}

func TestRollbackIgnoresEscalateEntries(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry()
	reg.Register("notify", &recordingExecutor{})
	orch := New(store, reg, nil, nil, time.Second)

	inc := seedIncident(t, store, models.SeverityHigh, models.StatusRemediating)
	require.NoError(t, store.AppendAction(context.Background(), &models.ActionLogEntry{
		IncidentID:  inc.ID,
		TenantID:    testTenant,
		ActionType:  models.ActionTypeEscalate,
		ActionOrder: 1,
		Status:      models.ActionSuccess,
		InitiatedBy: models.InitiatorOrchestrator,
	}))

	err := orch.Rollback(context.Background(), testTenant, inc.ID, "oncall")
	assert.ErrorIs(t, err, ErrNothingToRollback, "escalation markers are bookkeeping, not remediation steps")
}
