package models

import "time"

// NotificationChannelType selects the outbound payload format.
type NotificationChannelType string

const (
	NotificationChannelWebhook NotificationChannelType = "webhook"
	NotificationChannelSlack   NotificationChannelType = "slack"
)

// Incident lifecycle event types delivered to channels and the WebSocket hub.
const (
	EventIncidentCreated   = "incident_created"
	EventIncidentEscalated = "incident_escalated"
	EventRemediationFailed = "remediation_failed"
	EventIncidentResolved  = "incident_resolved"
	EventIncidentClosed    = "incident_closed"
	EventRollbackCompleted = "rollback_completed"
)

// NotificationChannel is a tenant-scoped outbound endpoint subscribed to a set
// of incident event types.
type NotificationChannel struct {
	ID        string                  `json:"id" db:"id"`
	TenantID  string                  `json:"tenant_id" db:"tenant_id"`
	Type      NotificationChannelType `json:"type" db:"type"`
	URL       string                  `json:"url" db:"url"`
	// EventsJSON is the persisted encoding of Events.
	EventsJSON string    `json:"-" db:"events_json"`
	Events     []string  `json:"events" db:"-"`
	Enabled    bool      `json:"enabled" db:"enabled"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NotifyEvent is the payload delivered to channels and broadcast to WebSocket
// subscribers when an incident changes state.
type NotifyEvent struct {
	EventType  string         `json:"event_type"`
	TenantID   string         `json:"tenant_id"`
	IncidentID string         `json:"incident_id"`
	Severity   Severity       `json:"severity"`
	Status     IncidentStatus `json:"status"`
	Message    string         `json:"message,omitempty"`
	OccurredAt string         `json:"occurred_at"`
}

// WebSocketMessage is the envelope broadcast to connected operator UIs.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
