package types

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// WebhookAckResponse tells the gateway a delivery was taken; outcome says
// what the pipeline decided.
type WebhookAckResponse struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome"`
}

// Booking is the API representation of a booking record.
type Booking struct {
	ID                uint64            `json:"id"`
	Reference         string            `json:"reference"`
	TenantID          string            `json:"tenant_id"`
	ServiceName       string            `json:"service_name"`
	CustomerName      string            `json:"customer_name"`
	CustomerPhone     string            `json:"customer_phone"`
	CustomerEmail     string            `json:"customer_email"`
	AmountPaise       int64             `json:"amount_paise"`
	Currency          string            `json:"currency"`
	Status            BookingStatus     `json:"status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	GatewayOrderID    string            `json:"gateway_order_id"`
	GatewayPaymentID  string            `json:"gateway_payment_id,omitempty"`
	GatewayRefundID   string            `json:"gateway_refund_id,omitempty"`
	PaymentVerified   bool              `json:"payment_verified"`
	ScheduledAt       string            `json:"scheduled_at,omitempty"`
	PaidAt            string            `json:"paid_at,omitempty"`
	RefundedAt        string            `json:"refunded_at,omitempty"`
	PaymentVerifiedAt string            `json:"payment_verified_at,omitempty"`
	Notes             map[string]string `json:"notes"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         string            `json:"updated_at"`
}

type BookingEnvelopeResponse struct {
	Booking *Booking `json:"booking"`
}

type ListBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
}

// AuditEntry is the API representation of an audit_log row.
type AuditEntry struct {
	ID        uint64 `json:"id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	BookingID uint64 `json:"booking_id"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}

type ListAuditEntriesResponse struct {
	Entries []*AuditEntry `json:"entries"`
}

type CreateBookingRequest struct {
	TenantID      string            `json:"tenant_id"`
	ServiceName   string            `json:"service_name"`
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	CustomerEmail string            `json:"customer_email"`
	AmountPaise   int64             `json:"amount_paise"`
	Currency      string            `json:"currency"`
	ScheduledAt   string            `json:"scheduled_at"`
	Notes         map[string]string `json:"notes"`
}

func NewCreateBookingRequestFromContext(ctx echo.Context) (*CreateBookingRequest, error) {
	var body CreateBookingRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.TenantID = strings.TrimSpace(body.TenantID)
	body.ServiceName = strings.TrimSpace(body.ServiceName)
	body.CustomerName = strings.TrimSpace(body.CustomerName)
	body.CustomerPhone = strings.TrimSpace(body.CustomerPhone)
	body.CustomerEmail = strings.TrimSpace(body.CustomerEmail)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.ScheduledAt = strings.TrimSpace(body.ScheduledAt)

	return &body, nil
}

func (r *CreateBookingRequest) Validate() error {
	if r.TenantID == "" {
		return errors.New("tenant_id is required")
	}
	if r.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if r.CustomerName == "" {
		return errors.New("customer_name is required")
	}
	if r.CustomerPhone == "" && r.CustomerEmail == "" {
		return errors.New("customer_phone or customer_email is required")
	}
	if r.AmountPaise <= 0 {
		return errors.New("amount_paise must be > 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if r.ScheduledAt != "" {
		if _, err := time.Parse(time.RFC3339, r.ScheduledAt); err != nil {
			return errors.New("scheduled_at must be RFC3339")
		}
	}
	return nil
}

type GetBookingRequest struct {
	ID uint64
}

func NewGetBookingRequestFromContext(ctx echo.Context) (*GetBookingRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetBookingRequest{ID: id}, nil
}

func (r *GetBookingRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid booking id")
	}
	return nil
}

type ListBookingsRequest struct {
	TenantID  string
	HasStatus bool
	Status    BookingStatus
	Limit     int32
	Offset    int32
}

func NewListBookingsRequestFromContext(ctx echo.Context) (*ListBookingsRequest, error) {
	req := &ListBookingsRequest{
		TenantID: strings.TrimSpace(ctx.QueryParam("tenant_id")),
		Limit:    100,
		Offset:   0,
	}

	statusRaw := strings.ToLower(strings.TrimSpace(ctx.QueryParam("status")))
	if statusRaw != "" {
		req.HasStatus = true
		req.Status = BookingStatus(statusRaw)
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListBookingsRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	if r.HasStatus && !r.Status.Valid() {
		return errors.New("invalid status")
	}
	return nil
}

type CancelBookingRequest struct {
	ID     uint64 `json:"-"`
	Reason string `json:"reason"`
}

func NewCancelBookingRequestFromContext(ctx echo.Context) (*CancelBookingRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body CancelBookingRequest
	if err = ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.ID = id
	body.Reason = strings.TrimSpace(body.Reason)

	return &body, nil
}

func (r *CancelBookingRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid booking id")
	}
	return nil
}

// VerifyPaymentRequest is the optimistic client-side confirmation after
// checkout. It proves the client saw a successful checkout; the webhook
// remains the authority for confirming the booking.
type VerifyPaymentRequest struct {
	ID               uint64 `json:"-"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

func NewVerifyPaymentRequestFromContext(ctx echo.Context) (*VerifyPaymentRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body VerifyPaymentRequest
	if err = ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ID = id
	body.GatewayPaymentID = strings.TrimSpace(body.GatewayPaymentID)
	body.Signature = strings.TrimSpace(body.Signature)

	return &body, nil
}

func (r *VerifyPaymentRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid booking id")
	}
	if r.GatewayPaymentID == "" {
		return errors.New("gateway_payment_id is required")
	}
	if r.Signature == "" {
		return errors.New("signature is required")
	}
	return nil
}
