package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bookings/app/factory"
	"github.com/vibast-solutions/ms-go-bookings/app/mapper"
	"github.com/vibast-solutions/ms-go-bookings/app/service"
	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

type BookingController struct {
	bookingService *service.BookingService
	logger         logrus.FieldLogger
}

func NewBookingController(bookingService *service.BookingService) *BookingController {
	return &BookingController{
		bookingService: bookingService,
		logger:         factory.NewModuleLogger("bookings-controller"),
	}
}

func (c *BookingController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *BookingController) CreateBooking(ctx echo.Context) error {
	req, err := types.NewCreateBookingRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.bookingService.CreateBooking(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrGatewayUnsupported):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrBookingAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create booking failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.BookingEnvelopeResponse{Booking: mapper.BookingToAPI(item)})
}

func (c *BookingController) GetBooking(ctx echo.Context) error {
	req, err := types.NewGetBookingRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.bookingService.GetBooking(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get booking failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.BookingEnvelopeResponse{Booking: mapper.BookingToAPI(item)})
}

func (c *BookingController) ListBookings(ctx echo.Context) error {
	req, err := types.NewListBookingsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.bookingService.ListBookings(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List bookings failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListBookingsResponse{Bookings: mapper.BookingsToAPI(items)})
}

func (c *BookingController) CancelBooking(ctx echo.Context) error {
	req, err := types.NewCancelBookingRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.bookingService.CancelBooking(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		case errors.Is(err, service.ErrInvalidStatus):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Cancel booking failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.BookingEnvelopeResponse{Booking: mapper.BookingToAPI(item)})
}

func (c *BookingController) VerifyPayment(ctx echo.Context) error {
	req, err := types.NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.bookingService.VerifyPayment(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		case errors.Is(err, service.ErrVerificationFailed):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrGatewayUnsupported):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Verify payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.BookingEnvelopeResponse{Booking: mapper.BookingToAPI(item)})
}

func (c *BookingController) ListBookingAudit(ctx echo.Context) error {
	req, err := types.NewGetBookingRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.bookingService.ListBookingAudit(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List booking audit failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListAuditEntriesResponse{Entries: mapper.AuditEntriesToAPI(items)})
}

func (c *BookingController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
