package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/remedyloop/remedyd/internal/orchestrator"
	"github.com/remedyloop/remedyd/internal/repository"
)

// ListIncidents handles GET /api/v1/incidents.
// Query params: status, severity, source, limit (default 100).
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	q := r.URL.Query()

	var filter models.IncidentFilter
	if v := q.Get("status"); v != "" {
		s := models.IncidentStatus(v)
		filter.Status = &s
	}
	if v := q.Get("severity"); v != "" {
		s := models.Severity(v)
		if !models.ValidSeverity(s) {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown severity "+v, reqID)
			return
		}
		filter.Severity = &s
	}
	if v := q.Get("source"); v != "" {
		s := models.IncidentSource(v)
		if !models.ValidSource(s) {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown source "+v, reqID)
			return
		}
		filter.Source = &s
	}
	filter.Limit = 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 10000 {
			filter.Limit = n
		}
	}

	incidents, err := h.store.ListIncidents(r.Context(), tenantID, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	if incidents == nil {
		incidents = []*models.Incident{}
	}
	respondJSON(w, http.StatusOK, incidents)
}

// GetIncident handles GET /api/v1/incidents/{id}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	incident, err := h.store.GetIncident(r.Context(), tenantID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), reqID)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	respondJSON(w, http.StatusOK, incident)
}

// SelectAndRun handles POST /api/v1/incidents/{id}/run. Idempotent: running
// an already-remediating or terminal incident is a no-op.
func (h *Handler) SelectAndRun(w http.ResponseWriter, r *http.Request) {
	h.driveIncident(w, r, func(tenantID, id string) error {
		return h.orch.SelectAndRun(r.Context(), tenantID, id)
	})
}

type resumeRequest struct {
	ApprovedBy string `json:"approved_by"`
}

// ResumeIncident handles POST /api/v1/incidents/{id}/resume: the approval
// collaborator lifts the pending gate and execution re-enters the loop.
func (h *Handler) ResumeIncident(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	id := mux.Vars(r)["id"]

	var req resumeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	err := h.orch.Resume(r.Context(), tenantID, id, req.ApprovedBy)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNotAwaitingApproval) {
			respondError(w, http.StatusConflict, ErrCodeConflict, err.Error(), reqID)
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), reqID)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	h.respondIncident(w, r, tenantID, id, reqID)
}

type rollbackRequest struct {
	InitiatedBy string `json:"initiated_by"`
}

// RollbackIncident handles POST /api/v1/incidents/{id}/rollback.
func (h *Handler) RollbackIncident(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	id := mux.Vars(r)["id"]

	var req rollbackRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	err := h.orch.Rollback(r.Context(), tenantID, id, req.InitiatedBy)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNothingToRollback) {
			respondError(w, http.StatusConflict, ErrCodeConflict, err.Error(), reqID)
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), reqID)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	h.respondIncident(w, r, tenantID, id, reqID)
}

// ResolveIncident handles POST /api/v1/incidents/{id}/resolve.
func (h *Handler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	h.driveIncident(w, r, func(tenantID, id string) error {
		return h.orch.Resolve(r.Context(), tenantID, id)
	})
}

// CloseIncident handles POST /api/v1/incidents/{id}/close.
func (h *Handler) CloseIncident(w http.ResponseWriter, r *http.Request) {
	h.driveIncident(w, r, func(tenantID, id string) error {
		return h.orch.Close(r.Context(), tenantID, id)
	})
}

// CancelIncident handles POST /api/v1/incidents/{id}/cancel: abandons a
// paused incident without further action attempts.
func (h *Handler) CancelIncident(w http.ResponseWriter, r *http.Request) {
	h.driveIncident(w, r, func(tenantID, id string) error {
		return h.orch.Cancel(r.Context(), tenantID, id)
	})
}

func (h *Handler) driveIncident(w http.ResponseWriter, r *http.Request, op func(tenantID, id string) error) {
	tenantID, reqID := tenantAndRequest(r.Context())
	id := mux.Vars(r)["id"]
	if err := op(tenantID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), reqID)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	h.respondIncident(w, r, tenantID, id, reqID)
}

func (h *Handler) respondIncident(w http.ResponseWriter, r *http.Request, tenantID, id, reqID string) {
	incident, err := h.store.GetIncident(r.Context(), tenantID, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	respondJSON(w, http.StatusOK, incident)
}

// GetActionLog handles GET /api/v1/incidents/{id}/actions: the incident's
// full audit trail in execution order.
func (h *Handler) GetActionLog(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	entries, err := h.store.ListActions(r.Context(), tenantID, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	if entries == nil {
		entries = []*models.ActionLogEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}
