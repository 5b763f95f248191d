package types

// BookingStatus is the lifecycle status of a booking. Forward-only:
// pending -> confirmed|failed|cancelled, confirmed -> refunded.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusFailed    BookingStatus = "failed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusRefunded  BookingStatus = "refunded"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusFailed,
		BookingStatusCancelled, BookingStatusRefunded:
		return true
	default:
		return false
	}
}

// TerminalForPayment reports whether capture/failure events for the booking
// are no-ops. Refunds still apply to confirmed bookings.
func (s BookingStatus) TerminalForPayment() bool {
	return s == BookingStatusConfirmed || s == BookingStatusFailed
}

// PaymentStatus tracks the gateway-side outcome, distinct from the booking
// lifecycle status.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// EventType is the closed set of gateway webhook event types the pipeline
// dispatches on. Anything else parses to EventTypeUnrecognized and is
// acknowledged without a transition.
type EventType int32

const (
	EventTypeUnrecognized EventType = iota
	EventTypePaymentCaptured
	EventTypePaymentFailed
	EventTypeOrderPaid
	EventTypeRefundProcessed
)

func ParseEventType(raw string) EventType {
	switch raw {
	case "payment.captured":
		return EventTypePaymentCaptured
	case "payment.failed":
		return EventTypePaymentFailed
	case "order.paid":
		return EventTypeOrderPaid
	case "refund.processed":
		return EventTypeRefundProcessed
	default:
		return EventTypeUnrecognized
	}
}

func (t EventType) String() string {
	switch t {
	case EventTypePaymentCaptured:
		return "payment.captured"
	case EventTypePaymentFailed:
		return "payment.failed"
	case EventTypeOrderPaid:
		return "order.paid"
	case EventTypeRefundProcessed:
		return "refund.processed"
	default:
		return "unrecognized"
	}
}

// GatewayType identifies a payment gateway integration.
type GatewayType int32

const (
	GatewayTypeUnspecified GatewayType = 0
	GatewayTypeRazorpay    GatewayType = 1
)
