package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-bookings/app/entity"
	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingAlreadyExists = errors.New("booking already exists")
)

type BookingFilter struct {
	TenantID  string
	HasStatus bool
	Status    string
	Limit     int32
	Offset    int32
}

const bookingColumns = `
	id, reference, tenant_id, service_name, customer_name, customer_phone, customer_email,
	amount_paise, currency, status, payment_status, gateway,
	gateway_order_id, gateway_payment_id, gateway_refund_id,
	payment_verified, scheduled_at, paid_at, refunded_at, payment_verified_at,
	notes_json,
	notify_delivery_status, notify_delivery_attempts, notify_delivery_next_at, notify_delivery_last_error,
	created_at, updated_at
`

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	notesJSON, err := serializeNotes(booking.Notes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bookings (
			reference, tenant_id, service_name, customer_name, customer_phone, customer_email,
			amount_paise, currency, status, payment_status, gateway,
			gateway_order_id, gateway_payment_id, gateway_refund_id,
			payment_verified, scheduled_at, paid_at, refunded_at, payment_verified_at,
			notes_json,
			notify_delivery_status, notify_delivery_attempts, notify_delivery_next_at, notify_delivery_last_error,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		booking.Reference,
		booking.TenantID,
		booking.ServiceName,
		booking.CustomerName,
		nullableStringValue(booking.CustomerPhone),
		nullableStringValue(booking.CustomerEmail),
		booking.AmountPaise,
		booking.Currency,
		string(booking.Status),
		string(booking.PaymentStatus),
		booking.Gateway,
		booking.GatewayOrderID,
		nullableStringValue(booking.GatewayPaymentID),
		nullableStringValue(booking.GatewayRefundID),
		booking.PaymentVerified,
		nullableTimeValue(booking.ScheduledAt),
		nullableTimeValue(booking.PaidAt),
		nullableTimeValue(booking.RefundedAt),
		nullableTimeValue(booking.PaymentVerifiedAt),
		notesJSON,
		booking.NotifyDeliveryStatus,
		booking.NotifyDeliveryAttempts,
		nullableTimeValue(booking.NotifyDeliveryNextAt),
		nullableStringValue(booking.NotifyDeliveryLastErr),
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrBookingAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	booking.ID = uint64(id)
	return nil
}

func (r *BookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	notesJSON, err := serializeNotes(booking.Notes)
	if err != nil {
		return err
	}

	query := `
		UPDATE bookings SET
			service_name = ?,
			customer_name = ?,
			customer_phone = ?,
			customer_email = ?,
			amount_paise = ?,
			currency = ?,
			status = ?,
			payment_status = ?,
			gateway_payment_id = ?,
			gateway_refund_id = ?,
			payment_verified = ?,
			scheduled_at = ?,
			paid_at = ?,
			refunded_at = ?,
			payment_verified_at = ?,
			notes_json = ?,
			notify_delivery_status = ?,
			notify_delivery_attempts = ?,
			notify_delivery_next_at = ?,
			notify_delivery_last_error = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		booking.ServiceName,
		booking.CustomerName,
		nullableStringValue(booking.CustomerPhone),
		nullableStringValue(booking.CustomerEmail),
		booking.AmountPaise,
		booking.Currency,
		string(booking.Status),
		string(booking.PaymentStatus),
		nullableStringValue(booking.GatewayPaymentID),
		nullableStringValue(booking.GatewayRefundID),
		booking.PaymentVerified,
		nullableTimeValue(booking.ScheduledAt),
		nullableTimeValue(booking.PaidAt),
		nullableTimeValue(booking.RefundedAt),
		nullableTimeValue(booking.PaymentVerifiedAt),
		notesJSON,
		booking.NotifyDeliveryStatus,
		booking.NotifyDeliveryAttempts,
		nullableTimeValue(booking.NotifyDeliveryNextAt),
		nullableStringValue(booking.NotifyDeliveryLastErr),
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookingNotFound
	}

	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id uint64) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

	booking := &entity.Booking{}
	if err := scanBooking(r.db.QueryRowContext(ctx, query, id), booking); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return booking, nil
}

func (r *BookingRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE gateway_order_id = ? LIMIT 1`

	booking := &entity.Booking{}
	if err := scanBooking(r.db.QueryRowContext(ctx, query, gatewayOrderID), booking); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return booking, nil
}

func (r *BookingRepository) List(ctx context.Context, filter BookingFilter) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if strings.TrimSpace(filter.TenantID) != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.HasStatus {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.queryBookings(ctx, query, args...)
}

func (r *BookingRepository) ListDueNotifyDispatch(ctx context.Context, now time.Time, limit int32) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE notify_delivery_status = ?
		  AND notify_delivery_next_at IS NOT NULL
		  AND notify_delivery_next_at <= ?
		ORDER BY notify_delivery_next_at ASC
		LIMIT ?
	`

	return r.queryBookings(ctx, query, entity.NotifyDeliveryPending, now, limit)
}

// ListStuckPending returns pending bookings with a gateway order that have
// not moved for a while. They are candidates for re-deriving state from the
// gateway, which also heals deliveries lost after the event claim.
func (r *BookingRepository) ListStuckPending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending'
		  AND gateway_order_id <> ''
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	return r.queryBookings(ctx, query, before, limit)
}

func (r *BookingRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending'
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	return r.queryBookings(ctx, query, cutoff, limit)
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*entity.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]*entity.Booking, 0)
	for rows.Next() {
		item := &entity.Booking{}
		if err := scanBooking(rows, item); err != nil {
			return nil, err
		}
		bookings = append(bookings, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(scan rowScanner, booking *entity.Booking) error {
	var customerPhone sql.NullString
	var customerEmail sql.NullString
	var status string
	var paymentStatus string
	var gatewayPaymentID sql.NullString
	var gatewayRefundID sql.NullString
	var scheduledAt sql.NullTime
	var paidAt sql.NullTime
	var refundedAt sql.NullTime
	var paymentVerifiedAt sql.NullTime
	var notesJSON string
	var notifyNextAt sql.NullTime
	var notifyLastErr sql.NullString

	err := scan.Scan(
		&booking.ID,
		&booking.Reference,
		&booking.TenantID,
		&booking.ServiceName,
		&booking.CustomerName,
		&customerPhone,
		&customerEmail,
		&booking.AmountPaise,
		&booking.Currency,
		&status,
		&paymentStatus,
		&booking.Gateway,
		&booking.GatewayOrderID,
		&gatewayPaymentID,
		&gatewayRefundID,
		&booking.PaymentVerified,
		&scheduledAt,
		&paidAt,
		&refundedAt,
		&paymentVerifiedAt,
		&notesJSON,
		&booking.NotifyDeliveryStatus,
		&booking.NotifyDeliveryAttempts,
		&notifyNextAt,
		&notifyLastErr,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return err
	}

	booking.CustomerPhone = stringPtrFromNull(customerPhone)
	booking.CustomerEmail = stringPtrFromNull(customerEmail)
	booking.Status = types.BookingStatus(status)
	booking.PaymentStatus = types.PaymentStatus(paymentStatus)
	booking.GatewayPaymentID = stringPtrFromNull(gatewayPaymentID)
	booking.GatewayRefundID = stringPtrFromNull(gatewayRefundID)
	booking.ScheduledAt = timePtrFromNull(scheduledAt)
	booking.PaidAt = timePtrFromNull(paidAt)
	booking.RefundedAt = timePtrFromNull(refundedAt)
	booking.PaymentVerifiedAt = timePtrFromNull(paymentVerifiedAt)
	booking.NotifyDeliveryNextAt = timePtrFromNull(notifyNextAt)
	booking.NotifyDeliveryLastErr = stringPtrFromNull(notifyLastErr)

	notes, err := parseNotes(notesJSON)
	if err != nil {
		return err
	}
	booking.Notes = notes

	return nil
}
