package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vibast-solutions/ms-go-bookings/app/entity"
	"github.com/vibast-solutions/ms-go-bookings/app/gateway"
	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

func capturedEvent(eventID, orderID, paymentID string, amountPaise int64) *gateway.WebhookEvent {
	return &gateway.WebhookEvent{
		GatewayEventID:   eventID,
		RawType:          "payment.captured",
		Type:             types.EventTypePaymentCaptured,
		GatewayOrderID:   orderID,
		GatewayPaymentID: paymentID,
		AmountPaise:      amountPaise,
	}
}

func TestHandleWebhookInvalidSignatureNeverTouchesState(t *testing.T) {
	repo := newServiceBookingRepo()
	repo.bookings[1] = pendingBooking(1, "order_abc", 50000)
	eventRepo := newServiceEventRepo()
	svc := newBookingServiceForTest(repo, eventRepo, &serviceAuditRepo{}, &serviceGateway{
		webhookErr: gateway.ErrInvalidSignature,
	})

	_, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{
		Payload:   []byte(`{"event":"payment.captured"}`),
		Signature: "forged",
	})
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
	if len(eventRepo.events) != 0 {
		t.Fatal("rejected delivery must not claim an event id")
	}
	if repo.bookings[1].Status != types.BookingStatusPending {
		t.Fatal("rejected delivery must not mutate the booking")
	}
}

func TestHandleWebhookMalformedPayloadIsInvalid(t *testing.T) {
	repo := newServiceBookingRepo()
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), &serviceAuditRepo{}, &serviceGateway{
		webhookErr: errors.New("unexpected end of JSON input"),
	})

	_, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{
		Payload:   []byte(`{"truncated`),
		Signature: "valid",
	})
	if !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected ErrPayloadInvalid, got %v", err)
	}
}

func TestHandleWebhookConfirmsPendingBooking(t *testing.T) {
	repo := newServiceBookingRepo()
	repo.bookings[1] = pendingBooking(1, "order_abc", 199900)
	eventRepo := newServiceEventRepo()
	svc := newBookingServiceForTest(repo, eventRepo, &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: capturedEvent("evt_1", "order_abc", "pay_xyz", 199900),
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{
		Payload:   []byte(`{"event":"payment.captured"}`),
		Signature: "valid",
	})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", result.Outcome)
	}

	stored := repo.bookings[1]
	if stored.Status != types.BookingStatusConfirmed {
		t.Fatalf("expected confirmed status, got %s", stored.Status)
	}
	if stored.PaymentStatus != types.PaymentStatusPaid {
		t.Fatalf("expected paid payment status, got %s", stored.PaymentStatus)
	}
	if stored.GatewayPaymentID == nil || *stored.GatewayPaymentID != "pay_xyz" {
		t.Fatal("expected gateway payment id to be stored")
	}
	if stored.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}
	if stored.NotifyDeliveryStatus != entity.NotifyDeliveryPending {
		t.Fatal("expected notification dispatch to be scheduled")
	}
	if _, ok := eventRepo.events["evt_1"]; !ok {
		t.Fatal("expected event id to be claimed")
	}
}

func TestHandleWebhookDuplicateEventIsAcknowledgedNoOp(t *testing.T) {
	repo := newServiceBookingRepo()
	repo.bookings[1] = pendingBooking(1, "order_abc", 199900)
	eventRepo := newServiceEventRepo()
	svc := newBookingServiceForTest(repo, eventRepo, &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: capturedEvent("evt_1", "order_abc", "pay_xyz", 199900),
	})

	first, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if first.Outcome != WebhookOutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", first.Outcome)
	}
	confirmedAt := repo.bookings[1].UpdatedAt

	second, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if second.Outcome != WebhookOutcomeDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", second.Outcome)
	}
	if !repo.bookings[1].UpdatedAt.Equal(confirmedAt) {
		t.Fatal("redelivery must not touch the booking again")
	}
}

func TestHandleWebhookAmountMismatchAuditsAndStillConfirms(t *testing.T) {
	repo := newServiceBookingRepo()
	repo.bookings[1] = pendingBooking(1, "order_abc", 50000)
	auditRepo := &serviceAuditRepo{}
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), auditRepo, &serviceGateway{
		webhookEvt: capturedEvent("evt_1", "order_abc", "pay_xyz", 40000),
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", result.Outcome)
	}
	if repo.bookings[1].Status != types.BookingStatusConfirmed {
		t.Fatalf("mismatched amount must still confirm, got %s", repo.bookings[1].Status)
	}

	entry := auditRepo.findByAction("payment_amount_mismatch")
	if entry == nil {
		t.Fatal("expected payment_amount_mismatch audit entry")
	}
	if entry.BookingID != 1 {
		t.Fatalf("expected audit entry for booking 1, got %d", entry.BookingID)
	}
}

func TestHandleWebhookCapturedAfterFailedIsNoOp(t *testing.T) {
	repo := newServiceBookingRepo()
	booking := pendingBooking(1, "order_abc", 50000)
	booking.Status = types.BookingStatusFailed
	booking.PaymentStatus = types.PaymentStatusFailed
	repo.bookings[1] = booking
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: capturedEvent("evt_2", "order_abc", "pay_xyz", 50000),
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeAlreadySettled {
		t.Fatalf("expected already_settled outcome, got %s", result.Outcome)
	}
	if repo.bookings[1].Status != types.BookingStatusFailed {
		t.Fatalf("settled booking must keep its status, got %s", repo.bookings[1].Status)
	}
}

func TestHandleWebhookFailedAfterConfirmedIsNoOp(t *testing.T) {
	repo := newServiceBookingRepo()
	booking := pendingBooking(1, "order_abc", 50000)
	booking.Status = types.BookingStatusConfirmed
	booking.PaymentStatus = types.PaymentStatusPaid
	repo.bookings[1] = booking
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: &gateway.WebhookEvent{
			GatewayEventID: "evt_3",
			RawType:        "payment.failed",
			Type:           types.EventTypePaymentFailed,
			GatewayOrderID: "order_abc",
		},
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeAlreadySettled {
		t.Fatalf("expected already_settled outcome, got %s", result.Outcome)
	}
	if repo.bookings[1].Status != types.BookingStatusConfirmed {
		t.Fatalf("late failure must not override confirmation, got %s", repo.bookings[1].Status)
	}
}

func TestHandleWebhookFailedMarksPendingBookingFailed(t *testing.T) {
	repo := newServiceBookingRepo()
	repo.bookings[1] = pendingBooking(1, "order_abc", 50000)
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: &gateway.WebhookEvent{
			GatewayEventID: "evt_4",
			RawType:        "payment.failed",
			Type:           types.EventTypePaymentFailed,
			GatewayOrderID: "order_abc",
		},
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", result.Outcome)
	}
	stored := repo.bookings[1]
	if stored.Status != types.BookingStatusFailed {
		t.Fatalf("expected failed status, got %s", stored.Status)
	}
	if stored.PaymentStatus != types.PaymentStatusFailed {
		t.Fatalf("expected failed payment status, got %s", stored.PaymentStatus)
	}
}

func TestHandleWebhookRefundAfterConfirmed(t *testing.T) {
	repo := newServiceBookingRepo()
	booking := pendingBooking(1, "order_abc", 50000)
	booking.Status = types.BookingStatusConfirmed
	booking.PaymentStatus = types.PaymentStatusPaid
	repo.bookings[1] = booking
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: &gateway.WebhookEvent{
			GatewayEventID:  "evt_5",
			RawType:         "refund.processed",
			Type:            types.EventTypeRefundProcessed,
			GatewayOrderID:  "order_abc",
			GatewayRefundID: "rfnd_1",
		},
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", result.Outcome)
	}
	stored := repo.bookings[1]
	if stored.Status != types.BookingStatusRefunded {
		t.Fatalf("expected refunded status, got %s", stored.Status)
	}
	if stored.GatewayRefundID == nil || *stored.GatewayRefundID != "rfnd_1" {
		t.Fatal("expected gateway refund id to be stored")
	}
	if stored.RefundedAt == nil {
		t.Fatal("expected refunded_at to be set")
	}
}

func TestHandleWebhookUnrecognizedEventIsClaimedAndIgnored(t *testing.T) {
	repo := newServiceBookingRepo()
	repo.bookings[1] = pendingBooking(1, "order_abc", 50000)
	eventRepo := newServiceEventRepo()
	svc := newBookingServiceForTest(repo, eventRepo, &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: &gateway.WebhookEvent{
			GatewayEventID: "evt_6",
			RawType:        "charge.dispute.created",
			Type:           types.EventTypeUnrecognized,
			GatewayOrderID: "order_abc",
		},
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeIgnored {
		t.Fatalf("expected ignored outcome, got %s", result.Outcome)
	}
	if _, ok := eventRepo.events["evt_6"]; !ok {
		t.Fatal("ignored event must still be claimed for dedup")
	}
	if repo.bookings[1].Status != types.BookingStatusPending {
		t.Fatal("ignored event must not mutate the booking")
	}
}

func TestHandleWebhookNoBookingForOrderAcknowledged(t *testing.T) {
	repo := newServiceBookingRepo()
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: capturedEvent("evt_7", "order_missing", "pay_xyz", 50000),
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeNoBooking {
		t.Fatalf("expected booking_not_found outcome, got %s", result.Outcome)
	}
}

func TestHandleWebhookEventIDFallsBackToHeaderHint(t *testing.T) {
	repo := newServiceBookingRepo()
	repo.bookings[1] = pendingBooking(1, "order_abc", 50000)
	eventRepo := newServiceEventRepo()
	svc := newBookingServiceForTest(repo, eventRepo, &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: capturedEvent("", "order_abc", "pay_xyz", 50000),
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{
		Payload:     []byte(`{}`),
		Signature:   "valid",
		EventIDHint: "evt_hint_1",
	})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", result.Outcome)
	}
	if _, ok := eventRepo.events["evt_hint_1"]; !ok {
		t.Fatal("expected hint event id to be claimed")
	}
}

func TestHandleWebhookMissingEventIDIsInvalid(t *testing.T) {
	repo := newServiceBookingRepo()
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: capturedEvent("", "order_abc", "pay_xyz", 50000),
	})

	_, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected ErrPayloadInvalid, got %v", err)
	}
}

func TestHandleWebhookOrderPaidConfirmsWithoutAmountCheck(t *testing.T) {
	repo := newServiceBookingRepo()
	repo.bookings[1] = pendingBooking(1, "order_abc", 50000)
	auditRepo := &serviceAuditRepo{}
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), auditRepo, &serviceGateway{
		webhookEvt: &gateway.WebhookEvent{
			GatewayEventID: "evt_8",
			RawType:        "order.paid",
			Type:           types.EventTypeOrderPaid,
			GatewayOrderID: "order_abc",
			AmountPaise:    10,
		},
	})

	result, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	if result.Outcome != WebhookOutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", result.Outcome)
	}
	if repo.bookings[1].Status != types.BookingStatusConfirmed {
		t.Fatalf("expected confirmed status, got %s", repo.bookings[1].Status)
	}
	if auditRepo.findByAction("payment_amount_mismatch") != nil {
		t.Fatal("order.paid must not run the amount check")
	}
}

func TestHandleWebhookStorageFailurePropagates(t *testing.T) {
	repo := newServiceBookingRepo()
	repo.bookings[1] = pendingBooking(1, "order_abc", 50000)
	svc := newBookingServiceForTest(repo, newServiceEventRepo(), &serviceAuditRepo{}, &serviceGateway{
		webhookEvt: capturedEvent("evt_9", "order_abc", "pay_xyz", 50000),
	})
	svc.bookingRepo = &failingUpdateRepo{serviceBookingRepo: repo}

	_, err := svc.HandleGatewayWebhook(context.Background(), &WebhookDelivery{Payload: []byte(`{}`), Signature: "valid"})
	if err == nil {
		t.Fatal("expected storage failure to propagate for gateway retry")
	}
}

type failingUpdateRepo struct {
	*serviceBookingRepo
}

func (r *failingUpdateRepo) Update(context.Context, *entity.Booking) error {
	return errors.New("storage unavailable")
}
