package entity

import (
	"time"

	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

const (
	NotifyDeliveryNone    int32 = 0
	NotifyDeliveryPending int32 = 1
	NotifyDeliverySuccess int32 = 10
	NotifyDeliveryFailed  int32 = 20
)

type Booking struct {
	ID        uint64
	Reference string
	TenantID  string

	ServiceName   string
	CustomerName  string
	CustomerPhone *string
	CustomerEmail *string

	AmountPaise int64
	Currency    string

	Status        types.BookingStatus
	PaymentStatus types.PaymentStatus
	Gateway       int32

	GatewayOrderID   string
	GatewayPaymentID *string
	GatewayRefundID  *string

	PaymentVerified   bool
	ScheduledAt       *time.Time
	PaidAt            *time.Time
	RefundedAt        *time.Time
	PaymentVerifiedAt *time.Time

	Notes map[string]string

	NotifyDeliveryStatus   int32
	NotifyDeliveryAttempts int32
	NotifyDeliveryNextAt   *time.Time
	NotifyDeliveryLastErr  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
