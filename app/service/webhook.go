package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-bookings/app/entity"
	"github.com/vibast-solutions/ms-go-bookings/app/gateway"
	"github.com/vibast-solutions/ms-go-bookings/app/repository"
	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

// WebhookDelivery is one inbound gateway delivery: the exact raw body, the
// signature header, and the event-id header some gateways send alongside
// the body.
type WebhookDelivery struct {
	Payload     []byte
	Signature   string
	EventIDHint string
}

type WebhookOutcome string

const (
	WebhookOutcomeProcessed      WebhookOutcome = "processed"
	WebhookOutcomeDuplicate      WebhookOutcome = "duplicate"
	WebhookOutcomeNoBooking      WebhookOutcome = "booking_not_found"
	WebhookOutcomeAlreadySettled WebhookOutcome = "already_settled"
	WebhookOutcomeIgnored        WebhookOutcome = "ignored"
)

type WebhookResult struct {
	Outcome WebhookOutcome
	Booking *entity.Booking
}

// HandleGatewayWebhook runs the reconciliation pipeline: verify signature,
// claim the event id, locate the booking, apply the state transition. The
// webhook is the sole authority for settling a booking; the claim insert
// happens before any booking mutation so concurrent redeliveries cannot
// both proceed. Storage errors propagate so the gateway retries; every
// business outcome (duplicate, no booking, no-op) returns a result, not an
// error.
func (s *BookingService) HandleGatewayWebhook(ctx context.Context, delivery *WebhookDelivery) (*WebhookResult, error) {
	gatewayClient, err := s.gatewayReg.Get(int32(types.GatewayTypeRazorpay))
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}

	event, err := gatewayClient.VerifyAndParseWebhook(delivery.Payload, delivery.Signature)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			return nil, ErrSignatureInvalid
		}
		return nil, ErrPayloadInvalid
	}

	eventID := strings.TrimSpace(event.GatewayEventID)
	if eventID == "" {
		eventID = strings.TrimSpace(delivery.EventIDHint)
	}
	if eventID == "" {
		return nil, ErrPayloadInvalid
	}

	claim := &entity.WebhookEvent{
		GatewayEventID: eventID,
		EventType:      event.RawType,
		PayloadJSON:    string(delivery.Payload),
		ReceivedAt:     time.Now().UTC(),
	}
	if err := s.eventRepo.Claim(ctx, claim); err != nil {
		if errors.Is(err, repository.ErrEventAlreadyClaimed) {
			s.logger.WithField("gateway_event_id", eventID).Info("Duplicate webhook delivery")
			return &WebhookResult{Outcome: WebhookOutcomeDuplicate}, nil
		}
		return nil, err
	}

	if event.Type == types.EventTypeUnrecognized {
		s.logger.WithField("gateway_event_id", eventID).
			WithField("event_type", event.RawType).
			Info("Unrecognized webhook event type")
		return &WebhookResult{Outcome: WebhookOutcomeIgnored}, nil
	}

	if strings.TrimSpace(event.GatewayOrderID) == "" {
		s.logger.WithField("gateway_event_id", eventID).
			WithField("event_type", event.RawType).
			Warn("Webhook event carries no order id")
		return &WebhookResult{Outcome: WebhookOutcomeIgnored}, nil
	}

	booking, err := s.bookingRepo.FindByGatewayOrderID(ctx, event.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		// Test events and data not yet committed land here; the gateway
		// must not retry a correlation miss.
		s.logger.WithField("gateway_event_id", eventID).
			WithField("gateway_order_id", event.GatewayOrderID).
			Info("No booking for webhook order id")
		return &WebhookResult{Outcome: WebhookOutcomeNoBooking}, nil
	}

	return s.applyTransition(ctx, booking, event)
}

func (s *BookingService) applyTransition(ctx context.Context, booking *entity.Booking, event *gateway.WebhookEvent) (*WebhookResult, error) {
	now := time.Now().UTC()

	switch event.Type {
	case types.EventTypePaymentCaptured:
		if booking.Status.TerminalForPayment() {
			return &WebhookResult{Outcome: WebhookOutcomeAlreadySettled, Booking: booking}, nil
		}
		// Captured funds are real even when the amount disagrees: flag the
		// discrepancy for review, then confirm anyway.
		if event.AmountPaise > 0 && event.AmountPaise != booking.AmountPaise {
			s.audit(ctx, booking.ID, "payment_amount_mismatch", map[string]interface{}{
				"expected_paise":   booking.AmountPaise,
				"received_paise":   event.AmountPaise,
				"gateway_order_id": event.GatewayOrderID,
			})
		}
		s.confirmBooking(booking, event.GatewayPaymentID, now)

	case types.EventTypeOrderPaid:
		// Alternate confirmation signal with less payment detail, so no
		// amount check.
		if booking.Status.TerminalForPayment() {
			return &WebhookResult{Outcome: WebhookOutcomeAlreadySettled, Booking: booking}, nil
		}
		s.confirmBooking(booking, event.GatewayPaymentID, now)

	case types.EventTypePaymentFailed:
		if booking.Status.TerminalForPayment() {
			return &WebhookResult{Outcome: WebhookOutcomeAlreadySettled, Booking: booking}, nil
		}
		booking.Status = types.BookingStatusFailed
		booking.PaymentStatus = types.PaymentStatusFailed
		s.markForNotifyDelivery(booking, now)

	case types.EventTypeRefundProcessed:
		booking.Status = types.BookingStatusRefunded
		booking.PaymentStatus = types.PaymentStatusRefunded
		if event.GatewayRefundID != "" {
			refundID := event.GatewayRefundID
			booking.GatewayRefundID = &refundID
		}
		booking.RefundedAt = &now
		s.markForNotifyDelivery(booking, now)

	default:
		return &WebhookResult{Outcome: WebhookOutcomeIgnored, Booking: booking}, nil
	}

	booking.UpdatedAt = now
	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return nil, err
	}

	return &WebhookResult{Outcome: WebhookOutcomeProcessed, Booking: booking}, nil
}

func (s *BookingService) confirmBooking(booking *entity.Booking, gatewayPaymentID string, now time.Time) {
	booking.Status = types.BookingStatusConfirmed
	booking.PaymentStatus = types.PaymentStatusPaid
	if gatewayPaymentID != "" {
		paymentID := gatewayPaymentID
		booking.GatewayPaymentID = &paymentID
	}
	booking.PaymentVerified = true
	booking.PaidAt = &now
	booking.PaymentVerifiedAt = &now
	s.markForNotifyDelivery(booking, now)
}

// audit records an anomaly without blocking the transition; failures are
// logged, not propagated.
func (s *BookingService) audit(ctx context.Context, bookingID uint64, action string, details map[string]interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		s.logger.WithError(err).WithField("action", action).Error("Audit details marshal failed")
		return
	}

	entry := &entity.AuditLogEntry{
		Actor:       "system",
		Action:      action,
		BookingID:   bookingID,
		DetailsJSON: string(detailsJSON),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.WithError(err).
			WithField("action", action).
			WithField("booking_id", bookingID).
			Error("Audit log write failed")
	}
}
