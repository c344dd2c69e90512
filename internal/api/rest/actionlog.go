package rest

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/remedyloop/remedyd/internal/models"
)

// QueryActionLog handles GET /api/v1/action-log: a tenant-wide audit query
// across incidents. Filters: incident_id, action_type, status, since, until
// (RFC3339), limit. format=csv streams the result as a CSV export.
func (h *Handler) QueryActionLog(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	q := r.URL.Query()

	var filter models.ActionLogFilter
	if v := q.Get("incident_id"); v != "" {
		filter.IncidentID = &v
	}
	if v := q.Get("action_type"); v != "" {
		filter.ActionType = &v
	}
	if v := q.Get("status"); v != "" {
		s := models.ActionStatus(v)
		filter.Status = &s
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "since must be RFC3339", reqID)
			return
		}
		filter.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "until must be RFC3339", reqID)
			return
		}
		filter.Until = &t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 10000 {
			filter.Limit = n
		}
	}

	entries, err := h.store.QueryActionLog(r.Context(), tenantID, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	if entries == nil {
		entries = []*models.ActionLogEntry{}
	}

	if q.Get("format") == "csv" {
		h.writeActionLogCSV(w, entries)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) writeActionLogCSV(w http.ResponseWriter, entries []*models.ActionLogEntry) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="action-log.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "incident_id", "action_type", "action_order", "status", "error_message", "initiated_by", "created_at"})
	for _, e := range entries {
		errMsg := ""
		if e.ErrorMessage != nil {
			errMsg = *e.ErrorMessage
		}
		_ = cw.Write([]string{
			e.ID,
			e.IncidentID,
			e.ActionType,
			strconv.Itoa(e.ActionOrder),
			string(e.Status),
			errMsg,
			e.InitiatedBy,
			e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("csv export failed", "err", err)
	}
}
