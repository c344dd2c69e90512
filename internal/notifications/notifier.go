// Package notifications delivers incident lifecycle events to registered
// webhook and Slack endpoints. Deliveries are fire-and-forget in a goroutine
// so they never block the orchestrator.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/remedyloop/remedyd/internal/models"
)

// ChannelLoader returns the notification channels for a tenant, typically
// the repository ListChannels method.
type ChannelLoader func(ctx context.Context, tenantID string) ([]*models.NotificationChannel, error)

// Notifier delivers NotifyEvent payloads to all enabled channels of the
// event's tenant that subscribe to the event type.
type Notifier struct {
	channels ChannelLoader
	client   *http.Client
	logger   *slog.Logger
}

// NewNotifier creates a Notifier backed by the given channel loader.
func NewNotifier(channels ChannelLoader, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		channels: channels,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

// Publish dispatches the event asynchronously and returns immediately.
// Implements the orchestrator's EventPublisher.
func (n *Notifier) Publish(ev models.NotifyEvent) {
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	go n.deliver(ev)
}

func (n *Notifier) deliver(ev models.NotifyEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channels, err := n.channels(ctx, ev.TenantID)
	if err != nil {
		n.logger.Warn("notifications: failed to load channels", "tenant_id", ev.TenantID, "err", err)
		return
	}

	for _, ch := range channels {
		if !ch.Enabled {
			continue
		}
		if !subscribes(ch.Events, ev.EventType) {
			continue
		}
		if err := n.send(ctx, ch, ev); err != nil {
			n.logger.Warn("notifications: delivery failed",
				"channel_id", ch.ID,
				"channel_type", ch.Type,
				"event_type", ev.EventType,
				"err", err,
			)
		}
	}
}

// send posts the event to a single channel, adapting the payload format for
// Slack vs generic webhooks.
func (n *Notifier) send(ctx context.Context, ch *models.NotificationChannel, ev models.NotifyEvent) error {
	var payload interface{}

	switch ch.Type {
	case models.NotificationChannelSlack:
		// Slack expects {"text": "..."} with optional markdown.
		text := fmt.Sprintf("*[remedyd/%s]* incident `%s` (%s) is `%s`", ev.EventType, ev.IncidentID, ev.Severity, ev.Status)
		if ev.Message != "" {
			text += "\n> " + ev.Message
		}
		payload = map[string]string{"text": text}

	default: // "webhook" — send the full NotifyEvent JSON.
		payload = ev
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func subscribes(events []string, eventType string) bool {
	if len(events) == 0 {
		return true // no filter means all events
	}
	for _, e := range events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}
