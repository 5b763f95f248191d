package entity

import "time"

// WebhookEvent is the durable record of a gateway delivery. The unique key
// on GatewayEventID is the idempotency claim: the row is written before any
// booking mutation and is never updated or deleted.
type WebhookEvent struct {
	ID uint64

	GatewayEventID string
	EventType      string
	PayloadJSON    string

	ReceivedAt time.Time
}
