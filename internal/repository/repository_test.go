package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/remedyloop/remedyd/migrations"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	// A file-backed database: ":memory:" hands each pooled connection its own
	// empty database.
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	schema, err := migrations.Schema()
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(schema))
	return repo
}

func strPtr(s string) *string { return &s }

func newIncident(tenantID string, signalID *string) *models.Incident {
	return &models.Incident{
		TenantID:       tenantID,
		Source:         models.SourceForecast,
		LinkedSignalID: signalID,
		Severity:       models.SeverityHigh,
		Status:         models.StatusOpen,
		Title:          "Forecast anomaly: overspend",
		Summary:        "risk_score signal at 85.0 classified critical",
	}
}

func TestIncidentCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inc := newIncident("tenant-a", strPtr("forecast-1"))
	require.NoError(t, repo.CreateIncident(ctx, inc))
	require.NotEmpty(t, inc.ID)

	got, err := repo.GetIncident(ctx, "tenant-a", inc.ID)
	require.NoError(t, err)
	assert.Equal(t, inc.Title, got.Title)
	assert.Equal(t, models.StatusOpen, got.Status)
	require.NotNil(t, got.LinkedSignalID)
	assert.Equal(t, "forecast-1", *got.LinkedSignalID)
	assert.Nil(t, got.ResolvedAt)
}

func TestIncidentTenantIsolation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inc := newIncident("tenant-a", nil)
	require.NoError(t, repo.CreateIncident(ctx, inc))

	_, err := repo.GetIncident(ctx, "tenant-b", inc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.ListIncidents(ctx, "tenant-b", models.IncidentFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	ok, err := repo.CompareAndSetStatus(ctx, "tenant-b", inc.ID, models.StatusOpen, models.StatusRemediating, nil)
	require.NoError(t, err)
	assert.False(t, ok, "cross-tenant writes never land")
}

func TestIncidentDuplicateSignal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := newIncident("tenant-a", strPtr("forecast-7"))
	require.NoError(t, repo.CreateIncident(ctx, first))

	dup := newIncident("tenant-a", strPtr("forecast-7"))
	err := repo.CreateIncident(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateSignal)

	// Same signal id under a different tenant is a different incident.
	other := newIncident("tenant-b", strPtr("forecast-7"))
	require.NoError(t, repo.CreateIncident(ctx, other))

	// Incidents without a linked signal never collide.
	require.NoError(t, repo.CreateIncident(ctx, newIncident("tenant-a", nil)))
	require.NoError(t, repo.CreateIncident(ctx, newIncident("tenant-a", nil)))

	found, err := repo.FindIncidentBySignal(ctx, "tenant-a", "forecast-7")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestCompareAndSetStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inc := newIncident("tenant-a", nil)
	require.NoError(t, repo.CreateIncident(ctx, inc))

	ok, err := repo.CompareAndSetStatus(ctx, "tenant-a", inc.ID, models.StatusOpen, models.StatusRemediating, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// The guard fails once the stored status moved on.
	ok, err = repo.CompareAndSetStatus(ctx, "tenant-a", inc.ID, models.StatusOpen, models.StatusAwaitingApproval, nil)
	require.NoError(t, err)
	assert.False(t, ok, "lost race is a clean false, not an error")

	now := time.Now().UTC()
	ok, err = repo.CompareAndSetStatus(ctx, "tenant-a", inc.ID, models.StatusRemediating, models.StatusResolved, &now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetIncident(ctx, "tenant-a", inc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
}

func TestListIncidentsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	open := newIncident("tenant-a", nil)
	require.NoError(t, repo.CreateIncident(ctx, open))

	resolved := newIncident("tenant-a", nil)
	resolved.Status = models.StatusResolved
	resolved.Severity = models.SeverityLow
	resolved.Source = models.SourceManual
	require.NoError(t, repo.CreateIncident(ctx, resolved))

	status := models.StatusOpen
	list, err := repo.ListIncidents(ctx, "tenant-a", models.IncidentFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	sev := models.SeverityLow
	src := models.SourceManual
	list, err = repo.ListIncidents(ctx, "tenant-a", models.IncidentFilter{Severity: &sev, Source: &src})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, resolved.ID, list[0].ID)
}

func TestRunbookRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	src := models.SourceForecast
	minSev := models.SeverityHigh
	pattern := "overspend"
	rb := &models.Runbook{
		TenantID:      "tenant-a",
		Name:          "throttle spend",
		SeverityScope: models.ScopeAll,
		Trigger: models.TriggerConditions{
			Source:       &src,
			MinSeverity:  &minSev,
			TitlePattern: &pattern,
		},
		Actions: []models.RunbookAction{
			{Type: "notify", Order: 1},
			{Type: "scale_down", Order: 2, RequiresApproval: true},
		},
		Enabled: true,
	}
	require.NoError(t, repo.CreateRunbook(ctx, rb))

	got, err := repo.GetRunbook(ctx, "tenant-a", rb.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Trigger.Source)
	assert.Equal(t, src, *got.Trigger.Source)
	require.NotNil(t, got.Trigger.TitlePattern)
	assert.Equal(t, "overspend", *got.Trigger.TitlePattern)
	require.Len(t, got.Actions, 2)
	assert.True(t, got.Actions[1].RequiresApproval)
}

func TestListCandidateRunbooks(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mk := func(name string, scope models.SeverityScope, enabled bool, offset time.Duration) *models.Runbook {
		rb := &models.Runbook{
			TenantID:      "tenant-a",
			Name:          name,
			SeverityScope: scope,
			Actions:       []models.RunbookAction{{Type: "notify", Order: 1}},
			Enabled:       enabled,
			CreatedAt:     base.Add(offset),
		}
		require.NoError(t, repo.CreateRunbook(ctx, rb))
		return rb
	}

	newer := mk("scoped high, newer", models.SeverityScope(models.SeverityHigh), true, 2*time.Hour)
	older := mk("catch-all, older", models.ScopeAll, true, time.Hour)
	mk("disabled", models.ScopeAll, false, 0)
	mk("wrong scope", models.SeverityScope(models.SeverityCritical), true, 0)

	got, err := repo.ListCandidateRunbooks(ctx, "tenant-a", models.SeverityHigh)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older.ID, got[0].ID, "created_at ascending")
	assert.Equal(t, newer.ID, got[1].ID)
}

func TestSetRunbookEnabled(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rb := &models.Runbook{
		TenantID:      "tenant-a",
		Name:          "toggle me",
		SeverityScope: models.ScopeAll,
		Actions:       []models.RunbookAction{{Type: "notify", Order: 1}},
		Enabled:       true,
	}
	require.NoError(t, repo.CreateRunbook(ctx, rb))

	require.NoError(t, repo.SetRunbookEnabled(ctx, "tenant-a", rb.ID, false))
	got, err := repo.GetRunbook(ctx, "tenant-a", rb.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	err = repo.SetRunbookEnabled(ctx, "tenant-a", "no-such-runbook", true)
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.SetRunbookEnabled(ctx, "tenant-b", rb.ID, true)
	assert.ErrorIs(t, err, ErrNotFound, "cross-tenant toggle looks like a missing row")
}

func TestActionLogAppendAndUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inc := newIncident("tenant-a", nil)
	require.NoError(t, repo.CreateIncident(ctx, inc))

	entry := &models.ActionLogEntry{
		IncidentID:    inc.ID,
		TenantID:      "tenant-a",
		ActionType:    "scale_down",
		ActionPayload: `{"target":"workers"}`,
		ActionOrder:   1,
		Status:        models.ActionRunning,
	}
	require.NoError(t, repo.AppendAction(ctx, entry))
	require.NotEmpty(t, entry.ID)
	assert.Equal(t, models.InitiatorOrchestrator, entry.InitiatedBy, "defaulted on append")

	msg := "autoscaler rejected request"
	require.NoError(t, repo.UpdateActionStatus(ctx, "tenant-a", entry.ID, models.ActionFailed, &msg))

	entries, err := repo.ListActions(ctx, "tenant-a", inc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionFailed, entries[0].Status)
	require.NotNil(t, entries[0].ErrorMessage)
	assert.Equal(t, msg, *entries[0].ErrorMessage)
	assert.Equal(t, `{"target":"workers"}`, entries[0].ActionPayload, "payload is immutable")

	err = repo.UpdateActionStatus(ctx, "tenant-b", entry.ID, models.ActionSuccess, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListReversibleActionsNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inc := newIncident("tenant-a", nil)
	require.NoError(t, repo.CreateIncident(ctx, inc))

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	add := func(actionType string, order int, status models.ActionStatus, offset time.Duration) {
		require.NoError(t, repo.AppendAction(ctx, &models.ActionLogEntry{
			IncidentID:  inc.ID,
			TenantID:    "tenant-a",
			ActionType:  actionType,
			ActionOrder: order,
			Status:      status,
			CreatedAt:   base.Add(offset),
		}))
	}
	add("notify", 1, models.ActionSuccess, 0)
	add("scale_down", 2, models.ActionSuccess, time.Minute)
	add("disable_feature", 3, models.ActionFailed, 2*time.Minute)

	entries, err := repo.ListReversibleActions(ctx, "tenant-a", inc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2, "only success entries are reversible")
	assert.Equal(t, "scale_down", entries[0].ActionType)
	assert.Equal(t, "notify", entries[1].ActionType)
}

func TestQueryActionLogFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inc := newIncident("tenant-a", nil)
	require.NoError(t, repo.CreateIncident(ctx, inc))
	other := newIncident("tenant-a", nil)
	require.NoError(t, repo.CreateIncident(ctx, other))

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mk := func(incidentID, actionType string, status models.ActionStatus, offset time.Duration) {
		require.NoError(t, repo.AppendAction(ctx, &models.ActionLogEntry{
			IncidentID: incidentID,
			TenantID:   "tenant-a",
			ActionType: actionType,
			Status:     status,
			CreatedAt:  base.Add(offset),
		}))
	}
	mk(inc.ID, "notify", models.ActionSuccess, 0)
	mk(inc.ID, "scale_down", models.ActionFailed, time.Hour)
	mk(other.ID, "notify", models.ActionSuccess, 2*time.Hour)

	byIncident, err := repo.QueryActionLog(ctx, "tenant-a", models.ActionLogFilter{IncidentID: &inc.ID})
	require.NoError(t, err)
	assert.Len(t, byIncident, 2)

	failed := models.ActionFailed
	byStatus, err := repo.QueryActionLog(ctx, "tenant-a", models.ActionLogFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "scale_down", byStatus[0].ActionType)

	since := base.Add(90 * time.Minute)
	recent, err := repo.QueryActionLog(ctx, "tenant-a", models.ActionLogFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, other.ID, recent[0].IncidentID)
}

func TestDeleteIncidentCascadesToActionLog(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inc := newIncident("tenant-a", nil)
	require.NoError(t, repo.CreateIncident(ctx, inc))
	require.NoError(t, repo.AppendAction(ctx, &models.ActionLogEntry{
		IncidentID: inc.ID,
		TenantID:   "tenant-a",
		ActionType: "notify",
		Status:     models.ActionSuccess,
	}))

	require.NoError(t, repo.DeleteIncident(ctx, "tenant-a", inc.ID))

	entries, err := repo.ListActions(ctx, "tenant-a", inc.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNotificationChannelRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ch := &models.NotificationChannel{
		TenantID: "tenant-a",
		Type:     models.NotificationChannelSlack,
		URL:      "https://hooks.slack.example/T123",
		Events:   []string{models.EventIncidentCreated, models.EventRemediationFailed},
		Enabled:  true,
	}
	require.NoError(t, repo.CreateChannel(ctx, ch))

	channels, err := repo.ListChannels(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, models.NotificationChannelSlack, channels[0].Type)
	assert.Equal(t, []string{models.EventIncidentCreated, models.EventRemediationFailed}, channels[0].Events)

	none, err := repo.ListChannels(ctx, "tenant-b")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, repo.DeleteChannel(ctx, "tenant-a", ch.ID))
	channels, err = repo.ListChannels(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Empty(t, channels)
}
