package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-bookings/app/entity"
	"github.com/vibast-solutions/ms-go-bookings/app/gateway"
	"github.com/vibast-solutions/ms-go-bookings/app/repository"
	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

func newWebhookControllerForTest(repo *controllerBookingRepo, eventRepo *controllerEventRepo, gw gateway.Gateway) *WebhookController {
	return NewWebhookController(newServiceForTest(repo, eventRepo, gw), "verify-token-1")
}

func postWebhook(ctrl *WebhookController, body, signature string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(razorpaySignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	_ = ctrl.HandleWebhook(ctx)
	return rec
}

func TestHandleWebhookInvalidSignatureReturns401(t *testing.T) {
	ctrl := newWebhookControllerForTest(&controllerBookingRepo{}, &controllerEventRepo{}, &controllerGateway{
		webhookErr: gateway.ErrInvalidSignature,
	})

	rec := postWebhook(ctrl, `{"event":"payment.captured"}`, "forged")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleWebhookMissingSignatureReturns401(t *testing.T) {
	ctrl := newWebhookControllerForTest(&controllerBookingRepo{}, &controllerEventRepo{}, &controllerGateway{
		webhookErr: gateway.ErrInvalidSignature,
	})

	rec := postWebhook(ctrl, `{"event":"payment.captured"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleWebhookProcessedReturns200(t *testing.T) {
	now := time.Now().UTC()
	updated := false
	repo := &controllerBookingRepo{
		findByGatewayOrderIDFn: func(context.Context, string) (*entity.Booking, error) {
			return &entity.Booking{
				ID:             1,
				Status:         types.BookingStatusPending,
				PaymentStatus:  types.PaymentStatusPending,
				Gateway:        int32(types.GatewayTypeRazorpay),
				GatewayOrderID: "order_abc",
				AmountPaise:    199900,
				Notes:          map[string]string{},
				CreatedAt:      now,
				UpdatedAt:      now,
			}, nil
		},
		updateFn: func(_ context.Context, booking *entity.Booking) error {
			updated = true
			if booking.Status != types.BookingStatusConfirmed {
				t.Errorf("expected confirmed status, got %s", booking.Status)
			}
			return nil
		},
	}
	ctrl := newWebhookControllerForTest(repo, &controllerEventRepo{}, &controllerGateway{
		webhookEvt: &gateway.WebhookEvent{
			GatewayEventID:   "evt_1",
			RawType:          "payment.captured",
			Type:             types.EventTypePaymentCaptured,
			GatewayOrderID:   "order_abc",
			GatewayPaymentID: "pay_xyz",
			AmountPaise:      199900,
		},
	})

	rec := postWebhook(ctrl, `{"event":"payment.captured"}`, "valid")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !updated {
		t.Fatal("expected booking update")
	}

	var payload types.WebhookAckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Outcome != "processed" {
		t.Fatalf("expected processed outcome, got %q", payload.Outcome)
	}
}

func TestHandleWebhookDuplicateReturns200(t *testing.T) {
	eventRepo := &controllerEventRepo{claimFn: func(context.Context, *entity.WebhookEvent) error {
		return repository.ErrEventAlreadyClaimed
	}}
	ctrl := newWebhookControllerForTest(&controllerBookingRepo{}, eventRepo, &controllerGateway{
		webhookEvt: &gateway.WebhookEvent{
			GatewayEventID: "evt_1",
			RawType:        "payment.captured",
			Type:           types.EventTypePaymentCaptured,
			GatewayOrderID: "order_abc",
		},
	})

	rec := postWebhook(ctrl, `{"event":"payment.captured"}`, "valid")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.WebhookAckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Outcome != "duplicate" {
		t.Fatalf("expected duplicate outcome, got %q", payload.Outcome)
	}
}

func TestVerifySubscriptionEchoesChallenge(t *testing.T) {
	ctrl := newWebhookControllerForTest(&controllerBookingRepo{}, &controllerEventRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/webhooks/razorpay?hub.mode=subscribe&hub.verify_token=verify-token-1&hub.challenge=challenge-42", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.VerifySubscription(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "challenge-42" {
		t.Fatalf("expected challenge echo, got %q", rec.Body.String())
	}
}

func TestVerifySubscriptionWrongTokenReturns403(t *testing.T) {
	ctrl := newWebhookControllerForTest(&controllerBookingRepo{}, &controllerEventRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/webhooks/razorpay?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=challenge-42", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.VerifySubscription(ctx)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
