// Package orchestrator implements the closed-loop incident response engine:
// it turns anomaly signals into incidents, matches them against the runbook
// catalog, drives ordered action execution with fail-fast semantics, pauses
// for human approval on gated paths, and reverses completed actions on
// demand. The orchestrator is invoked synchronously per request or event and
// owns no scheduler; concurrent invocations on the same incident are
// serialized by compare-and-set status transitions.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/remedyloop/remedyd/internal/pkg/metrics"
	"github.com/remedyloop/remedyd/internal/repository"
	"github.com/remedyloop/remedyd/internal/runbook"
	"github.com/remedyloop/remedyd/internal/severity"
)

const defaultActionTimeout = 30 * time.Second

// ErrNotAwaitingApproval is returned when Resume is called on an incident
// that is not paused for approval.
var ErrNotAwaitingApproval = errors.New("incident is not awaiting approval")

// EventPublisher receives incident lifecycle events. Implemented by the
// webhook notifier and the WebSocket hub.
type EventPublisher interface {
	Publish(ev models.NotifyEvent)
}

// PublisherList fans one event out to several publishers.
type PublisherList []EventPublisher

func (l PublisherList) Publish(ev models.NotifyEvent) {
	for _, p := range l {
		p.Publish(ev)
	}
}

// escalatePayload is the persisted payload of an escalate log entry. It
// records what the pending approval covers: the whole runbook or one action.
type escalatePayload struct {
	Scope       string `json:"scope"` // "runbook" or "action"
	RunbookID   string `json:"runbook_id"`
	ActionType  string `json:"action_type,omitempty"`
	ActionOrder int    `json:"action_order,omitempty"`
}

// Orchestrator is the core state machine over the incident store, the runbook
// catalog, and the action log. All dependencies are constructor-injected.
type Orchestrator struct {
	store         repository.Store
	registry      *Registry
	publisher     EventPublisher
	logger        *slog.Logger
	actionTimeout time.Duration
}

// New creates an Orchestrator. publisher may be nil; actionTimeout <= 0
// falls back to 30s.
func New(store repository.Store, registry *Registry, publisher EventPublisher, logger *slog.Logger, actionTimeout time.Duration) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if actionTimeout <= 0 {
		actionTimeout = defaultActionTimeout
	}
	return &Orchestrator{
		store:         store,
		registry:      registry,
		publisher:     publisher,
		logger:        logger,
		actionTimeout: actionTimeout,
	}
}

// Registry exposes the executor registry, used by the catalog API for
// write-time action type validation.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) publish(eventType string, inc *models.Incident, message string) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(models.NotifyEvent{
		EventType:  eventType,
		TenantID:   inc.TenantID,
		IncidentID: inc.ID,
		Severity:   inc.Severity,
		Status:     inc.Status,
		Message:    message,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateIncidentFromSignal classifies the signal and inserts a new open
// incident. Redelivered signals (same tenant and linked signal id) return the
// existing incident instead of creating a twin.
func (o *Orchestrator) CreateIncidentFromSignal(ctx context.Context, tenantID string, sig models.Signal) (*models.Incident, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	if !models.ValidSource(sig.Source) {
		return nil, fmt.Errorf("unknown signal source %q", sig.Source)
	}

	if sig.SourceID != nil && *sig.SourceID != "" {
		if existing, err := o.store.FindIncidentBySignal(ctx, tenantID, *sig.SourceID); err == nil {
			o.logger.Info("duplicate signal delivery, returning existing incident",
				"tenant_id", tenantID, "signal_id", *sig.SourceID, "incident_id", existing.ID)
			return existing, nil
		}
	}

	sev := severity.Classify(sig.Kind, sig.Value)
	title, summary, hypothesis := describeSignal(sig, sev)
	incident := &models.Incident{
		TenantID:            tenantID,
		Source:              sig.Source,
		LinkedSignalID:      sig.SourceID,
		Severity:            sev,
		Status:              models.StatusOpen,
		Title:               title,
		Summary:             summary,
		RootCauseHypothesis: hypothesis,
	}
	if err := o.store.CreateIncident(ctx, incident); err != nil {
		if errors.Is(err, repository.ErrDuplicateSignal) && sig.SourceID != nil {
			// Lost the insert race against a concurrent redelivery.
			return o.store.FindIncidentBySignal(ctx, tenantID, *sig.SourceID)
		}
		return nil, fmt.Errorf("create incident: %w", err)
	}

	metrics.IncidentsCreatedTotal.WithLabelValues(string(sev), string(sig.Source)).Inc()
	o.logger.Info("incident created",
		"tenant_id", tenantID, "incident_id", incident.ID,
		"severity", sev, "source", sig.Source)
	o.publish(models.EventIncidentCreated, incident, incident.Title)
	return incident, nil
}

// describeSignal derives the advisory title, summary, and root-cause
// hypothesis from the signal's feature payload.
func describeSignal(sig models.Signal, sev models.Severity) (title, summary, hypothesis string) {
	category := sig.Category
	if category == "" {
		category = "anomaly"
	}
	title = fmt.Sprintf("%s: %s", sourceLabel(sig.Source), category)
	summary = fmt.Sprintf("%s signal at %.1f classified %s", sig.Kind, sig.Value, sev)

	var features map[string]interface{}
	if len(sig.Payload) > 0 {
		_ = json.Unmarshal(sig.Payload, &features)
	}
	for _, key := range []string{"top_feature", "feature", "metric", "dimension"} {
		if v, ok := features[key].(string); ok && v != "" {
			hypothesis = fmt.Sprintf("elevated %s signal likely driven by %s", category, v)
			return title, summary, hypothesis
		}
	}
	hypothesis = fmt.Sprintf("elevated %s signal; no dominant feature identified", category)
	return title, summary, hypothesis
}

func sourceLabel(src models.IncidentSource) string {
	switch src {
	case models.SourceForecast:
		return "Forecast anomaly"
	case models.SourceSafetyEvent:
		return "Safety event"
	case models.SourceCognitiveFlag:
		return "Cognitive flag"
	case models.SourceManual:
		return "Manual report"
	default:
		return "System alert"
	}
}

// SelectAndRun matches a runbook for an open incident and drives execution.
// Idempotent: calling it on an already-remediating or terminal incident is a
// logged no-op, as is losing the open → remediating race to a duplicate
// delivery.
func (o *Orchestrator) SelectAndRun(ctx context.Context, tenantID, incidentID string) error {
	inc, err := o.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return err
	}
	if inc.Status != models.StatusOpen {
		o.logger.Info("select-and-run no-op: incident not open",
			"tenant_id", tenantID, "incident_id", incidentID, "status", inc.Status)
		return nil
	}

	candidates, err := o.store.ListCandidateRunbooks(ctx, tenantID, inc.Severity)
	if err != nil {
		return fmt.Errorf("list candidate runbooks: %w", err)
	}
	rb := runbook.Select(inc, candidates)
	if rb == nil {
		// Valid terminal state for automation: the incident stays open with
		// zero action log entries.
		o.logger.Info("no runbook matched, incident remains open",
			"tenant_id", tenantID, "incident_id", incidentID, "severity", inc.Severity)
		return nil
	}

	if rb.RequiresHSOEApproval {
		ok, err := transition(ctx, o.store, tenantID, incidentID, models.StatusOpen, models.StatusAwaitingApproval)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		inc.Status = models.StatusAwaitingApproval
		if err := o.appendEscalation(ctx, inc, escalatePayload{Scope: "runbook", RunbookID: rb.ID}); err != nil {
			return err
		}
		o.logger.Info("runbook requires approval, incident paused",
			"tenant_id", tenantID, "incident_id", incidentID, "runbook_id", rb.ID)
		o.publish(models.EventIncidentEscalated, inc, "runbook "+rb.Name+" requires approval")
		return nil
	}

	ok, err := transition(ctx, o.store, tenantID, incidentID, models.StatusOpen, models.StatusRemediating)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	inc.Status = models.StatusRemediating
	return o.runActions(ctx, inc, rb, nil, models.InitiatorOrchestrator)
}

// Resume re-enters the action loop of a paused incident after human approval.
// approvedBy is the human identifier recorded on subsequent log entries.
func (o *Orchestrator) Resume(ctx context.Context, tenantID, incidentID, approvedBy string) error {
	inc, err := o.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return err
	}
	if inc.Status != models.StatusAwaitingApproval {
		return fmt.Errorf("incident %s in status %s: %w", incidentID, inc.Status, ErrNotAwaitingApproval)
	}
	ok, err := transition(ctx, o.store, tenantID, incidentID, models.StatusAwaitingApproval, models.StatusRemediating)
	if err != nil {
		return err
	}
	if !ok {
		// A racing resume already won; this call is a benign no-op.
		return nil
	}
	inc.Status = models.StatusRemediating

	approved, err := o.grantPendingEscalation(ctx, inc)
	if err != nil {
		return err
	}

	candidates, err := o.store.ListCandidateRunbooks(ctx, tenantID, inc.Severity)
	if err != nil {
		return fmt.Errorf("list candidate runbooks: %w", err)
	}
	rb := runbook.Select(inc, candidates)
	if rb == nil {
		o.logger.Warn("resume: runbook no longer matches, execution halted",
			"tenant_id", tenantID, "incident_id", incidentID)
		return nil
	}
	if approvedBy == "" {
		approvedBy = models.InitiatorOrchestrator
	}
	return o.runActions(ctx, inc, rb, approved, approvedBy)
}

// grantPendingEscalation marks the pending escalate entry success (the
// approval it represented was granted) and returns the approved action order
// when the gate covered a single action.
func (o *Orchestrator) grantPendingEscalation(ctx context.Context, inc *models.Incident) (*int, error) {
	entries, err := o.store.ListActions(ctx, inc.TenantID, inc.ID)
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.ActionType != models.ActionTypeEscalate || e.Status != models.ActionPending {
			continue
		}
		if err := o.store.UpdateActionStatus(ctx, inc.TenantID, e.ID, models.ActionSuccess, nil); err != nil {
			return nil, err
		}
		var p escalatePayload
		if err := json.Unmarshal([]byte(e.ActionPayload), &p); err == nil && p.Scope == "action" {
			order := p.ActionOrder
			return &order, nil
		}
		return nil, nil
	}
	return nil, nil
}

func (o *Orchestrator) appendEscalation(ctx context.Context, inc *models.Incident, p escalatePayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return o.store.AppendAction(ctx, &models.ActionLogEntry{
		IncidentID:    inc.ID,
		TenantID:      inc.TenantID,
		ActionType:    models.ActionTypeEscalate,
		ActionPayload: string(payload),
		ActionOrder:   p.ActionOrder,
		Status:        models.ActionPending,
		InitiatedBy:   models.InitiatorOrchestrator,
	})
}

// runActions walks the runbook's actions in order. Steps that already have a
// success entry (a prior invocation before a pause) are skipped. A gated
// action pauses the incident unless its order was just approved. The first
// executor failure halts the pipeline: later actions never run after an
// earlier failure, even independent ones.
func (o *Orchestrator) runActions(ctx context.Context, inc *models.Incident, rb *models.Runbook, approved *int, initiatedBy string) error {
	ordered := make([]models.RunbookAction, len(rb.Actions))
	copy(ordered, rb.Actions)
	// Strict total order; insertion index breaks ties (stable sort).
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	done, err := o.completedOrders(ctx, inc)
	if err != nil {
		return err
	}

	for _, a := range ordered {
		if done[a.Order] {
			continue
		}
		if a.RequiresApproval && (approved == nil || *approved != a.Order) {
			ok, err := transition(ctx, o.store, inc.TenantID, inc.ID, models.StatusRemediating, models.StatusAwaitingApproval)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			inc.Status = models.StatusAwaitingApproval
			if err := o.appendEscalation(ctx, inc, escalatePayload{
				Scope:       "action",
				RunbookID:   rb.ID,
				ActionType:  a.Type,
				ActionOrder: a.Order,
			}); err != nil {
				return err
			}
			o.logger.Info("action requires approval, incident paused",
				"tenant_id", inc.TenantID, "incident_id", inc.ID,
				"action_type", a.Type, "action_order", a.Order)
			o.publish(models.EventIncidentEscalated, inc, "action "+a.Type+" requires approval")
			return nil
		}

		entry := &models.ActionLogEntry{
			IncidentID:    inc.ID,
			TenantID:      inc.TenantID,
			ActionType:    a.Type,
			ActionPayload: string(a.Payload),
			ActionOrder:   a.Order,
			Status:        models.ActionRunning,
			InitiatedBy:   initiatedBy,
		}
		if err := o.store.AppendAction(ctx, entry); err != nil {
			return err
		}

		start := time.Now()
		execErr := o.execute(ctx, a.Type, a.Payload)
		metrics.ActionDurationSeconds.WithLabelValues(a.Type).Observe(time.Since(start).Seconds())

		if execErr != nil {
			msg := execErr.Error()
			if err := o.store.UpdateActionStatus(ctx, inc.TenantID, entry.ID, models.ActionFailed, &msg); err != nil {
				return err
			}
			metrics.ActionsExecutedTotal.WithLabelValues(a.Type, string(models.ActionFailed)).Inc()
			// Fail-fast: the error is persisted on the entry, execution halts,
			// and the incident stays remediating until a human resumes,
			// rolls back, or closes it.
			o.logger.Error("action failed, remediation halted",
				"tenant_id", inc.TenantID, "incident_id", inc.ID,
				"action_type", a.Type, "action_order", a.Order, "err", execErr)
			o.publish(models.EventRemediationFailed, inc, a.Type+": "+msg)
			return nil
		}

		if err := o.store.UpdateActionStatus(ctx, inc.TenantID, entry.ID, models.ActionSuccess, nil); err != nil {
			return err
		}
		metrics.ActionsExecutedTotal.WithLabelValues(a.Type, string(models.ActionSuccess)).Inc()
		// Only the freshly approved action bypasses its gate; later gated
		// actions pause again.
		approved = nil
	}

	// Remediation success is not incident closure: resolution stays an
	// explicit external call.
	o.logger.Info("all runbook actions completed, awaiting external confirmation",
		"tenant_id", inc.TenantID, "incident_id", inc.ID, "runbook_id", rb.ID)
	return nil
}

// completedOrders returns the orders of actions already executed successfully
// for this incident, so a resumed run re-enters at the paused step.
func (o *Orchestrator) completedOrders(ctx context.Context, inc *models.Incident) (map[int]bool, error) {
	entries, err := o.store.ListActions(ctx, inc.TenantID, inc.ID)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool)
	for _, e := range entries {
		if e.ActionType == models.ActionTypeEscalate || e.ActionType == models.ActionTypeRollback {
			continue
		}
		if e.Status == models.ActionSuccess || e.Status == models.ActionRolledBack {
			done[e.ActionOrder] = true
		}
	}
	return done, nil
}

// execute invokes the registered executor with the orchestrator's action
// timeout. A timeout is treated exactly like a thrown error: recorded on the
// entry and halting the pipeline.
func (o *Orchestrator) execute(ctx context.Context, actionType string, payload json.RawMessage) error {
	ex := o.registry.Get(actionType)
	if ex == nil {
		// Catalog validation should make this unreachable; a registry edited
		// after runbooks were written can still get here.
		return fmt.Errorf("no executor registered for action type %q", actionType)
	}
	ctx, cancel := context.WithTimeout(ctx, o.actionTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- ex.Execute(ctx, payload) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("action %s timed out after %s", actionType, o.actionTimeout)
	}
}

// Resolve marks a non-terminal incident resolved. No-op when already
// terminal.
func (o *Orchestrator) Resolve(ctx context.Context, tenantID, incidentID string) error {
	return o.finish(ctx, tenantID, incidentID, models.StatusResolved, models.EventIncidentResolved)
}

// Close marks a non-terminal incident closed.
func (o *Orchestrator) Close(ctx context.Context, tenantID, incidentID string) error {
	return o.finish(ctx, tenantID, incidentID, models.StatusClosed, models.EventIncidentClosed)
}

// Cancel abandons a paused or running incident: straight to closed with no
// further action attempts.
func (o *Orchestrator) Cancel(ctx context.Context, tenantID, incidentID string) error {
	return o.finish(ctx, tenantID, incidentID, models.StatusClosed, models.EventIncidentClosed)
}

func (o *Orchestrator) finish(ctx context.Context, tenantID, incidentID string, to models.IncidentStatus, eventType string) error {
	inc, err := o.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return err
	}
	if inc.Status == to || inc.Status == models.StatusClosed {
		return nil
	}
	ok, err := transition(ctx, o.store, tenantID, incidentID, inc.Status, to)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	inc.Status = to
	o.logger.Info("incident finished", "tenant_id", tenantID, "incident_id", incidentID, "status", to)
	o.publish(eventType, inc, "")
	return nil
}
