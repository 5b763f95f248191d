package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-bookings/app/entity"
	"github.com/vibast-solutions/ms-go-bookings/app/gateway"
	"github.com/vibast-solutions/ms-go-bookings/app/mapper"
	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

// RunSweepPendingBatch re-derives state for bookings stuck pending past the
// configured age by asking the gateway for the order status. This covers
// webhook deliveries lost after the event claim as well as deliveries that
// never arrived.
func (s *BookingService) RunSweepPendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.bookingsCfg.SweepStaleAfter)
	items, err := s.bookingRepo.ListStuckPending(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, booking := range items {
		if booking == nil || strings.TrimSpace(booking.GatewayOrderID) == "" {
			continue
		}

		gatewayClient, err := s.gatewayReg.Get(booking.Gateway)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		state, err := gatewayClient.FetchOrder(ctx, booking.GatewayOrderID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if state.Status != gateway.OrderStatusPaid {
			continue
		}

		s.confirmBooking(booking, "", now)
		booking.UpdatedAt = now

		if err := s.bookingRepo.Update(ctx, booking); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		s.audit(ctx, booking.ID, "sweep_reconciled", map[string]interface{}{
			"gateway_order_id":  booking.GatewayOrderID,
			"amount_paid_paise": state.AmountPaidPaise,
		})
	}

	return firstErr
}

func (s *BookingService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.bookingsCfg.PendingTimeout)
	items, err := s.bookingRepo.ListExpiredPending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, booking := range items {
		if booking == nil || booking.Status != types.BookingStatusPending {
			continue
		}

		booking.Status = types.BookingStatusCancelled
		s.markForNotifyDelivery(booking, now)
		booking.UpdatedAt = now

		if err := s.bookingRepo.Update(ctx, booking); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		s.audit(ctx, booking.ID, "booking_expired", map[string]interface{}{
			"pending_since": booking.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return firstErr
}

func (s *BookingService) RunDispatchNotificationsBatch(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := s.bookingRepo.ListDueNotifyDispatch(ctx, now, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, booking := range items {
		if booking == nil {
			continue
		}
		if err := s.dispatchNotification(ctx, booking, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *BookingService) dispatchNotification(ctx context.Context, booking *entity.Booking, now time.Time) error {
	notifyURL := strings.TrimSpace(s.bookingsCfg.NotifyURL)
	if notifyURL == "" {
		errMsg := "notify url is not configured"
		booking.NotifyDeliveryStatus = entity.NotifyDeliveryFailed
		booking.NotifyDeliveryNextAt = nil
		booking.NotifyDeliveryLastErr = &errMsg
		booking.UpdatedAt = now
		return s.bookingRepo.Update(ctx, booking)
	}

	payload := &types.BookingEnvelopeResponse{Booking: mapper.BookingToAPI(booking)}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notifyURL, bytes.NewReader(body))
	if err != nil {
		return s.recordNotifyFailure(ctx, booking, now, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Booking-Reference", booking.Reference)
	if s.appAPIKey != "" {
		req.Header.Set("X-API-Key", s.appAPIKey)
	}

	resp, err := s.notifyHTTP.Do(req)
	if err != nil {
		return s.recordNotifyFailure(ctx, booking, now, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.recordNotifyFailure(ctx, booking, now, fmt.Errorf("notify endpoint returned status=%d", resp.StatusCode))
	}

	booking.NotifyDeliveryStatus = entity.NotifyDeliverySuccess
	booking.NotifyDeliveryNextAt = nil
	booking.NotifyDeliveryLastErr = nil
	booking.UpdatedAt = now

	return s.bookingRepo.Update(ctx, booking)
}

func (s *BookingService) recordNotifyFailure(ctx context.Context, booking *entity.Booking, now time.Time, dispatchErr error) error {
	booking.NotifyDeliveryAttempts++
	trimmed := truncate(dispatchErr.Error(), 1024)
	booking.NotifyDeliveryLastErr = &trimmed

	maxAttempts := s.bookingsCfg.NotifyMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	if booking.NotifyDeliveryAttempts >= maxAttempts {
		booking.NotifyDeliveryStatus = entity.NotifyDeliveryFailed
		booking.NotifyDeliveryNextAt = nil
		s.audit(ctx, booking.ID, "notification_delivery_failed", map[string]interface{}{
			"attempts": booking.NotifyDeliveryAttempts,
			"error":    trimmed,
		})
	} else {
		retryInterval := s.bookingsCfg.NotifyRetryInterval
		if retryInterval <= 0 {
			retryInterval = 5 * time.Minute
		}
		next := now.Add(retryInterval)
		booking.NotifyDeliveryStatus = entity.NotifyDeliveryPending
		booking.NotifyDeliveryNextAt = &next
	}
	booking.UpdatedAt = now

	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return err
	}

	return dispatchErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
