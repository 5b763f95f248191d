package gateway

import (
	"context"

	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

type OrderInput struct {
	Receipt     string
	AmountPaise int64
	Currency    string
	Notes       map[string]string
}

type Order struct {
	GatewayOrderID string
}

// OrderState is the gateway's view of an order, fetched when re-deriving
// booking state for stuck bookings.
type OrderState struct {
	Status          string
	AmountPaidPaise int64
}

const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

// WebhookEvent is a verified, parsed gateway delivery.
type WebhookEvent struct {
	GatewayEventID   string
	RawType          string
	Type             types.EventType
	GatewayOrderID   string
	GatewayPaymentID string
	GatewayRefundID  string
	AmountPaise      int64
}

type Gateway interface {
	Code() int32
	CreateOrder(ctx context.Context, input *OrderInput) (*Order, error)
	VerifyAndParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
	VerifyCheckoutSignature(orderID, paymentID, signature string) bool
	FetchOrder(ctx context.Context, gatewayOrderID string) (*OrderState, error)
}
