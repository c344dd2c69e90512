package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/remedyloop/remedyd/internal/repository"
	"github.com/remedyloop/remedyd/internal/runbook"
)

// CreateRunbook handles POST /api/v1/runbooks. Malformed templates
// (duplicate order, unknown action type, invalid regex) are rejected here,
// never discovered mid-execution.
func (h *Handler) CreateRunbook(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())

	var rb models.Runbook
	if err := json.NewDecoder(r.Body).Decode(&rb); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid runbook payload: "+err.Error(), reqID)
		return
	}
	rb.TenantID = tenantID
	if rb.SeverityScope == "" {
		rb.SeverityScope = models.ScopeAll
	}

	if err := runbook.Validate(&rb, h.orch.Registry().Known); err != nil {
		respondError(w, http.StatusUnprocessableEntity, ErrCodeValidationFailed, err.Error(), reqID)
		return
	}
	if err := h.store.CreateRunbook(r.Context(), &rb); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	respondJSON(w, http.StatusCreated, rb)
}

// ListRunbooks handles GET /api/v1/runbooks.
func (h *Handler) ListRunbooks(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	runbooks, err := h.store.ListRunbooks(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	if runbooks == nil {
		runbooks = []*models.Runbook{}
	}
	respondJSON(w, http.StatusOK, runbooks)
}

// GetRunbook handles GET /api/v1/runbooks/{id}.
func (h *Handler) GetRunbook(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	rb, err := h.store.GetRunbook(r.Context(), tenantID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), reqID)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	respondJSON(w, http.StatusOK, rb)
}

// UpdateRunbook handles PUT /api/v1/runbooks/{id}. The same write-time
// validation applies as on create.
func (h *Handler) UpdateRunbook(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())

	var rb models.Runbook
	if err := json.NewDecoder(r.Body).Decode(&rb); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid runbook payload: "+err.Error(), reqID)
		return
	}
	rb.ID = mux.Vars(r)["id"]
	rb.TenantID = tenantID
	if rb.SeverityScope == "" {
		rb.SeverityScope = models.ScopeAll
	}

	if err := runbook.Validate(&rb, h.orch.Registry().Known); err != nil {
		respondError(w, http.StatusUnprocessableEntity, ErrCodeValidationFailed, err.Error(), reqID)
		return
	}
	if err := h.store.UpdateRunbook(r.Context(), &rb); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), reqID)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	respondJSON(w, http.StatusOK, rb)
}

// EnableRunbook handles POST /api/v1/runbooks/{id}/enable.
func (h *Handler) EnableRunbook(w http.ResponseWriter, r *http.Request) {
	h.setRunbookEnabled(w, r, true)
}

// DisableRunbook handles POST /api/v1/runbooks/{id}/disable. Disabled
// runbooks are never matched.
func (h *Handler) DisableRunbook(w http.ResponseWriter, r *http.Request) {
	h.setRunbookEnabled(w, r, false)
}

func (h *Handler) setRunbookEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	tenantID, reqID := tenantAndRequest(r.Context())
	id := mux.Vars(r)["id"]
	if err := h.store.SetRunbookEnabled(r.Context(), tenantID, id, enabled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), reqID)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "enabled": enabled})
}
