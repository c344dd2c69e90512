package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remedyloop/remedyd/internal/models"
)

func (r *SQLRepository) CreateChannel(ctx context.Context, ch *models.NotificationChannel) error {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	events, err := json.Marshal(ch.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	ch.EventsJSON = string(events)

	query := r.rebind(`
		INSERT INTO notification_channels (id, tenant_id, type, url, events_json, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query, ch.ID, ch.TenantID, ch.Type, ch.URL, ch.EventsJSON, ch.Enabled, ch.CreatedAt)
	return err
}

func (r *SQLRepository) ListChannels(ctx context.Context, tenantID string) ([]*models.NotificationChannel, error) {
	var channels []*models.NotificationChannel
	query := r.rebind(`SELECT * FROM notification_channels WHERE tenant_id = ? ORDER BY created_at ASC`)
	if err := r.db.SelectContext(ctx, &channels, query, tenantID); err != nil {
		return nil, err
	}
	for _, ch := range channels {
		if err := json.Unmarshal([]byte(ch.EventsJSON), &ch.Events); err != nil {
			return nil, fmt.Errorf("decode events for channel %s: %w", ch.ID, err)
		}
	}
	return channels, nil
}

func (r *SQLRepository) DeleteChannel(ctx context.Context, tenantID, id string) error {
	query := r.rebind(`DELETE FROM notification_channels WHERE tenant_id = ? AND id = ?`)
	res, err := r.db.ExecContext(ctx, query, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification channel %s: %w", id, ErrNotFound)
	}
	return nil
}
