package entity

import "time"

// AuditLogEntry records an anomaly or noteworthy action for human review.
// Insert-only.
type AuditLogEntry struct {
	ID uint64

	Actor       string
	Action      string
	BookingID   uint64
	DetailsJSON string

	CreatedAt time.Time
}
