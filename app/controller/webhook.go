package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bookings/app/factory"
	"github.com/vibast-solutions/ms-go-bookings/app/service"
	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"
)

type WebhookController struct {
	bookingService *service.BookingService
	verifyToken    string
	logger         logrus.FieldLogger
}

func NewWebhookController(bookingService *service.BookingService, verifyToken string) *WebhookController {
	return &WebhookController{
		bookingService: bookingService,
		verifyToken:    verifyToken,
		logger:         factory.NewModuleLogger("webhooks-controller"),
	}
}

// HandleWebhook acknowledges every business outcome with 200 so the gateway
// stops redelivering; only storage failures return 500 and trigger a retry.
func (c *WebhookController) HandleWebhook(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "unable to read request body"})
	}

	delivery := &service.WebhookDelivery{
		Payload:     payload,
		Signature:   ctx.Request().Header.Get(razorpaySignatureHeader),
		EventIDHint: ctx.Request().Header.Get(razorpayEventIDHeader),
	}

	result, err := c.bookingService.HandleGatewayWebhook(ctx.Request().Context(), delivery)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid):
			factory.LoggerWithContext(c.logger, ctx).Warn("Webhook signature rejected")
			return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "invalid signature"})
		case errors.Is(err, service.ErrPayloadInvalid):
			return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "invalid payload"})
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Webhook processing failed")
			return ctx.JSON(http.StatusInternalServerError, &types.ErrorResponse{Error: "internal server error"})
		}
	}

	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Status: "ok", Outcome: string(result.Outcome)})
}

// VerifySubscription answers the gateway's GET handshake by echoing the
// challenge back when the verify token matches.
func (c *WebhookController) VerifySubscription(ctx echo.Context) error {
	mode := ctx.QueryParam("hub.mode")
	token := ctx.QueryParam("hub.verify_token")
	challenge := ctx.QueryParam("hub.challenge")

	if mode != "subscribe" || c.verifyToken == "" || token != c.verifyToken {
		factory.LoggerWithContext(c.logger, ctx).Warn("Webhook subscription handshake rejected")
		return ctx.JSON(http.StatusForbidden, &types.ErrorResponse{Error: "verification failed"})
	}

	return ctx.String(http.StatusOK, challenge)
}
