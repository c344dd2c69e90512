package rest

import (
	"encoding/json"
	"net/http"

	"github.com/remedyloop/remedyd/internal/models"
)

// IngestSignal handles POST /api/v1/signals: accepts a normalized anomaly
// tuple from an upstream producer, creates (or dedups) the incident, and
// synchronously drives runbook selection and execution. The response carries
// the incident in its post-run state.
func (h *Handler) IngestSignal(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())

	var sig models.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid signal payload: "+err.Error(), reqID)
		return
	}
	if sig.Kind != models.SignalConfidence && sig.Kind != models.SignalRiskScore {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "kind must be confidence or risk_score", reqID)
		return
	}

	incident, err := h.orch.CreateIncidentFromSignal(r.Context(), tenantID, sig)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(), reqID)
		return
	}

	if err := h.orch.SelectAndRun(r.Context(), tenantID, incident.ID); err != nil {
		h.logger.Error("select-and-run failed", "incident_id", incident.ID, "err", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}

	// Re-read: execution may have advanced the status.
	incident, err = h.store.GetIncident(r.Context(), tenantID, incident.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	respondJSON(w, http.StatusCreated, incident)
}
