package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-bookings/app/entity"
	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

func BookingToAPI(item *entity.Booking) *types.Booking {
	if item == nil {
		return nil
	}

	return &types.Booking{
		ID:                item.ID,
		Reference:         item.Reference,
		TenantID:          item.TenantID,
		ServiceName:       item.ServiceName,
		CustomerName:      item.CustomerName,
		CustomerPhone:     derefString(item.CustomerPhone),
		CustomerEmail:     derefString(item.CustomerEmail),
		AmountPaise:       item.AmountPaise,
		Currency:          item.Currency,
		Status:            item.Status,
		PaymentStatus:     item.PaymentStatus,
		GatewayOrderID:    item.GatewayOrderID,
		GatewayPaymentID:  derefString(item.GatewayPaymentID),
		GatewayRefundID:   derefString(item.GatewayRefundID),
		PaymentVerified:   item.PaymentVerified,
		ScheduledAt:       formatTimePtr(item.ScheduledAt),
		PaidAt:            formatTimePtr(item.PaidAt),
		RefundedAt:        formatTimePtr(item.RefundedAt),
		PaymentVerifiedAt: formatTimePtr(item.PaymentVerifiedAt),
		Notes:             cloneNotes(item.Notes),
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func BookingsToAPI(items []*entity.Booking) []*types.Booking {
	result := make([]*types.Booking, 0, len(items))
	for _, item := range items {
		result = append(result, BookingToAPI(item))
	}
	return result
}

func AuditEntryToAPI(item *entity.AuditLogEntry) *types.AuditEntry {
	if item == nil {
		return nil
	}

	return &types.AuditEntry{
		ID:        item.ID,
		Actor:     item.Actor,
		Action:    item.Action,
		BookingID: item.BookingID,
		Details:   item.DetailsJSON,
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func AuditEntriesToAPI(items []*entity.AuditLogEntry) []*types.AuditEntry {
	result := make([]*types.AuditEntry, 0, len(items))
	for _, item := range items {
		result = append(result, AuditEntryToAPI(item))
	}
	return result
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTimePtr(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
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
