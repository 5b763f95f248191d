package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bookings/app/entity"
	"github.com/vibast-solutions/ms-go-bookings/app/factory"
	"github.com/vibast-solutions/ms-go-bookings/app/gateway"
	"github.com/vibast-solutions/ms-go-bookings/app/repository"
	"github.com/vibast-solutions/ms-go-bookings/app/types"
	"github.com/vibast-solutions/ms-go-bookings/config"
)

const (
	defaultListLimit  = int32(100)
	defaultBatchSize  = int32(100)
	defaultAuditLimit = int32(100)
)

type bookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	Update(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uint64) (*entity.Booking, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.Booking, error)
	List(ctx context.Context, filter repository.BookingFilter) ([]*entity.Booking, error)
	ListDueNotifyDispatch(ctx context.Context, now time.Time, limit int32) ([]*entity.Booking, error)
	ListStuckPending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Booking, error)
}

type webhookEventRepository interface {
	Claim(ctx context.Context, event *entity.WebhookEvent) error
}

type auditLogRepository interface {
	Create(ctx context.Context, entry *entity.AuditLogEntry) error
	ListByBookingID(ctx context.Context, bookingID uint64, limit int32) ([]*entity.AuditLogEntry, error)
}

type BookingService struct {
	bookingRepo bookingRepository
	eventRepo   webhookEventRepository
	auditRepo   auditLogRepository
	gatewayReg  *gateway.Registry
	bookingsCfg config.BookingsConfig
	appAPIKey   string
	notifyHTTP  *http.Client
	logger      logrus.FieldLogger
}

func NewBookingService(
	bookingRepo bookingRepository,
	eventRepo webhookEventRepository,
	auditRepo auditLogRepository,
	gatewayReg *gateway.Registry,
	bookingsCfg config.BookingsConfig,
	appAPIKey string,
) *BookingService {
	timeout := bookingsCfg.NotifyHTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &BookingService{
		bookingRepo: bookingRepo,
		eventRepo:   eventRepo,
		auditRepo:   auditRepo,
		gatewayReg:  gatewayReg,
		bookingsCfg: bookingsCfg,
		appAPIKey:   strings.TrimSpace(appAPIKey),
		notifyHTTP:  &http.Client{Timeout: timeout},
		logger:      factory.NewModuleLogger("bookings-service"),
	}
}

func (s *BookingService) CreateBooking(ctx context.Context, req *types.CreateBookingRequest) (*entity.Booking, error) {
	gatewayClient, err := s.gatewayReg.Get(int32(types.GatewayTypeRazorpay))
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}

	reference := uuid.NewString()
	notes := cloneNotes(req.Notes)
	notes["tenant_id"] = req.TenantID
	notes["reference"] = reference

	order, err := gatewayClient.CreateOrder(ctx, &gateway.OrderInput{
		Receipt:     reference,
		AmountPaise: req.AmountPaise,
		Currency:    req.Currency,
		Notes:       notes,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	booking := &entity.Booking{
		Reference:            reference,
		TenantID:             req.TenantID,
		ServiceName:          req.ServiceName,
		CustomerName:         req.CustomerName,
		CustomerPhone:        normalizeOptionalString(req.CustomerPhone),
		CustomerEmail:        normalizeOptionalString(req.CustomerEmail),
		AmountPaise:          req.AmountPaise,
		Currency:             req.Currency,
		Status:               types.BookingStatusPending,
		PaymentStatus:        types.PaymentStatusPending,
		Gateway:              gatewayClient.Code(),
		GatewayOrderID:       order.GatewayOrderID,
		ScheduledAt:          parseOptionalTime(req.ScheduledAt),
		Notes:                cloneNotes(req.Notes),
		NotifyDeliveryStatus: entity.NotifyDeliveryNone,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrBookingAlreadyExists) {
			return nil, ErrBookingAlreadyExists
		}
		return nil, err
	}

	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id uint64) (*entity.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, req *types.ListBookingsRequest) ([]*entity.Booking, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	filter := repository.BookingFilter{
		TenantID:  strings.TrimSpace(req.TenantID),
		HasStatus: req.HasStatus,
		Status:    string(req.Status),
		Limit:     limit,
		Offset:    req.Offset,
	}

	return s.bookingRepo.List(ctx, filter)
}

func (s *BookingService) CancelBooking(ctx context.Context, req *types.CancelBookingRequest) (*entity.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	if booking.Status != types.BookingStatusPending {
		return nil, fmt.Errorf("%w: only pending bookings can be cancelled", ErrInvalidStatus)
	}

	now := time.Now().UTC()
	booking.Status = types.BookingStatusCancelled
	booking.UpdatedAt = now

	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	s.audit(ctx, booking.ID, "booking_cancelled", map[string]interface{}{
		"reason": req.Reason,
	})

	return booking, nil
}

// VerifyPayment handles the client-side checkout handshake. A valid
// signature marks the booking payment-verified, nothing more: confirmation
// only ever comes from the gateway webhook.
func (s *BookingService) VerifyPayment(ctx context.Context, req *types.VerifyPaymentRequest) (*entity.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if strings.TrimSpace(booking.GatewayOrderID) == "" {
		return nil, fmt.Errorf("%w: booking has no gateway order", ErrInvalidStatus)
	}

	gatewayClient, err := s.gatewayReg.Get(booking.Gateway)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}

	if !gatewayClient.VerifyCheckoutSignature(booking.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		return nil, ErrVerificationFailed
	}

	now := time.Now().UTC()
	booking.PaymentVerified = true
	booking.PaymentVerifiedAt = &now
	if booking.GatewayPaymentID == nil {
		paymentID := req.GatewayPaymentID
		booking.GatewayPaymentID = &paymentID
	}
	booking.UpdatedAt = now

	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return booking, nil
}

func (s *BookingService) ListBookingAudit(ctx context.Context, bookingID uint64) ([]*entity.AuditLogEntry, error) {
	booking, err := s.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	return s.auditRepo.ListByBookingID(ctx, bookingID, defaultAuditLimit)
}

func (s *BookingService) markForNotifyDelivery(booking *entity.Booking, now time.Time) {
	booking.NotifyDeliveryStatus = entity.NotifyDeliveryPending
	booking.NotifyDeliveryAttempts = 0
	booking.NotifyDeliveryNextAt = &now
	booking.NotifyDeliveryLastErr = nil
}

func (s *BookingService) batchSize() int32 {
	if s.bookingsCfg.JobBatchSize > 0 {
		return s.bookingsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseOptionalTime(v string) *time.Time {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func cloneNotes(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
