// Package rest exposes the orchestrator and its stores over HTTP. All routes
// are tenant-scoped via the X-Tenant-ID header; the tenant middleware
// guarantees it is present by the time a handler runs.
package rest

import (
	"context"
	"log/slog"

	"github.com/gorilla/mux"

	"github.com/remedyloop/remedyd/internal/orchestrator"
	"github.com/remedyloop/remedyd/internal/pkg/logger"
	"github.com/remedyloop/remedyd/internal/repository"
)

// Handler holds dependencies for all REST endpoints.
type Handler struct {
	store  repository.Store
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

// NewHandler creates a REST handler.
func NewHandler(store repository.Store, orch *orchestrator.Orchestrator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, orch: orch, logger: log}
}

// SetupRoutes registers all API routes on the router.
func SetupRoutes(r *mux.Router, h *Handler) {
	// Signal ingestion: normalized anomaly tuples from upstream producers.
	r.HandleFunc("/signals", h.IngestSignal).Methods("POST")

	// Incident lifecycle
	r.HandleFunc("/incidents", h.ListIncidents).Methods("GET")
	r.HandleFunc("/incidents/{id}", h.GetIncident).Methods("GET")
	r.HandleFunc("/incidents/{id}/run", h.SelectAndRun).Methods("POST")
	r.HandleFunc("/incidents/{id}/resume", h.ResumeIncident).Methods("POST")
	r.HandleFunc("/incidents/{id}/rollback", h.RollbackIncident).Methods("POST")
	r.HandleFunc("/incidents/{id}/resolve", h.ResolveIncident).Methods("POST")
	r.HandleFunc("/incidents/{id}/close", h.CloseIncident).Methods("POST")
	r.HandleFunc("/incidents/{id}/cancel", h.CancelIncident).Methods("POST")
	r.HandleFunc("/incidents/{id}/actions", h.GetActionLog).Methods("GET")

	// Runbook catalog management
	r.HandleFunc("/runbooks", h.CreateRunbook).Methods("POST")
	r.HandleFunc("/runbooks", h.ListRunbooks).Methods("GET")
	r.HandleFunc("/runbooks/{id}", h.GetRunbook).Methods("GET")
	r.HandleFunc("/runbooks/{id}", h.UpdateRunbook).Methods("PUT")
	r.HandleFunc("/runbooks/{id}/enable", h.EnableRunbook).Methods("POST")
	r.HandleFunc("/runbooks/{id}/disable", h.DisableRunbook).Methods("POST")

	// Audit queries
	r.HandleFunc("/action-log", h.QueryActionLog).Methods("GET")

	// Notification channels
	r.HandleFunc("/channels", h.CreateChannel).Methods("POST")
	r.HandleFunc("/channels", h.ListChannels).Methods("GET")
	r.HandleFunc("/channels/{id}", h.DeleteChannel).Methods("DELETE")
}

// tenantAndRequest pulls the tenant and request IDs out of the request
// context for handlers.
func tenantAndRequest(ctx context.Context) (tenantID, requestID string) {
	return logger.TenantFromContext(ctx), logger.FromContext(ctx)
}
