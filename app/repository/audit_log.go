package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-bookings/app/entity"
)

type AuditLogRepository struct {
	db DBTX
}

func NewAuditLogRepository(db DBTX) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (
			actor, action, booking_id, details_json, created_at
		)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.Actor,
		entry.Action,
		entry.BookingID,
		entry.DetailsJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = uint64(id)

	return nil
}

func (r *AuditLogRepository) ListByBookingID(ctx context.Context, bookingID uint64, limit int32) ([]*entity.AuditLogEntry, error) {
	query := `
		SELECT id, actor, action, booking_id, details_json, created_at
		FROM audit_log
		WHERE booking_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, bookingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*entity.AuditLogEntry, 0)
	for rows.Next() {
		item := &entity.AuditLogEntry{}
		if err := rows.Scan(&item.ID, &item.Actor, &item.Action, &item.BookingID, &item.DetailsJSON, &item.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
