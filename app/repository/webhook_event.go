package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-bookings/app/entity"
)

// ErrEventAlreadyClaimed means the gateway event ID has been recorded by an
// earlier delivery. The caller acknowledges and stops.
var ErrEventAlreadyClaimed = errors.New("webhook event already claimed")

type WebhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Claim inserts the event record. The unique key on gateway_event_id makes
// this the mutual-exclusion step: of two concurrent deliveries of the same
// event, exactly one insert succeeds. Any failure other than a duplicate
// entry is propagated so the gateway retries the delivery.
func (r *WebhookEventRepository) Claim(ctx context.Context, event *entity.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			gateway_event_id, event_type, payload_json, received_at
		)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.GatewayEventID,
		event.EventType,
		event.PayloadJSON,
		event.ReceivedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrEventAlreadyClaimed
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

func (r *WebhookEventRepository) FindByGatewayEventID(ctx context.Context, gatewayEventID string) (*entity.WebhookEvent, error) {
	query := `
		SELECT id, gateway_event_id, event_type, payload_json, received_at
		FROM webhook_events
		WHERE gateway_event_id = ?
		LIMIT 1
	`

	event := &entity.WebhookEvent{}
	err := r.db.QueryRowContext(ctx, query, gatewayEventID).Scan(
		&event.ID,
		&event.GatewayEventID,
		&event.EventType,
		&event.PayloadJSON,
		&event.ReceivedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return event, nil
}
