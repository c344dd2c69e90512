package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/remedyloop/remedyd/internal/repository"
)

// CreateChannel handles POST /api/v1/channels: registers a webhook or Slack
// endpoint for incident lifecycle events.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())

	var ch models.NotificationChannel
	if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid channel payload: "+err.Error(), reqID)
		return
	}
	ch.TenantID = tenantID
	ch.Enabled = true

	if ch.Type != models.NotificationChannelWebhook && ch.Type != models.NotificationChannelSlack {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "type must be webhook or slack", reqID)
		return
	}
	u, err := url.Parse(ch.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "url must be a valid http(s) URL", reqID)
		return
	}

	if err := h.store.CreateChannel(r.Context(), &ch); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	respondJSON(w, http.StatusCreated, ch)
}

// ListChannels handles GET /api/v1/channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	channels, err := h.store.ListChannels(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	if channels == nil {
		channels = []*models.NotificationChannel{}
	}
	respondJSON(w, http.StatusOK, channels)
}

// DeleteChannel handles DELETE /api/v1/channels/{id}.
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	tenantID, reqID := tenantAndRequest(r.Context())
	id := mux.Vars(r)["id"]
	if err := h.store.DeleteChannel(r.Context(), tenantID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), reqID)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), reqID)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
