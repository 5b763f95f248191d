package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-bookings/app/types"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

const razorpayBaseURL = "https://api.razorpay.com"

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	HTTPTimeout   time.Duration
}

type RazorpayGateway struct {
	cfg    RazorpayConfig
	client *http.Client
}

func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &RazorpayGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *RazorpayGateway) Code() int32 {
	return int32(types.GatewayTypeRazorpay)
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, input *OrderInput) (*Order, error) {
	if strings.TrimSpace(g.cfg.KeyID) == "" || strings.TrimSpace(g.cfg.KeySecret) == "" {
		return nil, errors.New("razorpay api keys are not configured")
	}

	payload := map[string]interface{}{
		"amount":   input.AmountPaise,
		"currency": strings.ToUpper(strings.TrimSpace(input.Currency)),
		"receipt":  strings.TrimSpace(input.Receipt),
	}
	if len(input.Notes) > 0 {
		payload["notes"] = input.Notes
	}

	body, err := g.postJSON(ctx, "/v1/orders", payload)
	if err != nil {
		return nil, err
	}

	var order struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, err
	}
	if strings.TrimSpace(order.ID) == "" {
		return nil, errors.New("razorpay order response missing id")
	}

	return &Order{GatewayOrderID: strings.TrimSpace(order.ID)}, nil
}

func (g *RazorpayGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (*OrderState, error) {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return nil, errors.New("gateway order id is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, razorpayBaseURL+"/v1/orders/"+url.PathEscape(gatewayOrderID), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("razorpay get order failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		Status     string `json:"status"`
		AmountPaid int64  `json:"amount_paid"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &OrderState{
		Status:          payload.Status,
		AmountPaidPaise: payload.AmountPaid,
	}, nil
}

// VerifyAndParseWebhook checks the signature over the exact raw body and
// decodes the event. The raw bytes must not have been re-serialized.
func (g *RazorpayGateway) VerifyAndParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if !verifyRazorpaySignature(payload, signature, g.cfg.WebhookSecret) {
		return nil, ErrInvalidSignature
	}

	var event struct {
		ID      string `json:"id"`
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
					Amount  int64  `json:"amount"`
				} `json:"entity"`
			} `json:"payment"`
			Refund struct {
				Entity struct {
					ID        string `json:"id"`
					PaymentID string `json:"payment_id"`
					Amount    int64  `json:"amount"`
				} `json:"entity"`
			} `json:"refund"`
			Order struct {
				Entity struct {
					ID         string `json:"id"`
					AmountPaid int64  `json:"amount_paid"`
				} `json:"entity"`
			} `json:"order"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	result := &WebhookEvent{
		GatewayEventID:   strings.TrimSpace(event.ID),
		RawType:          strings.TrimSpace(event.Event),
		Type:             types.ParseEventType(strings.TrimSpace(event.Event)),
		GatewayPaymentID: strings.TrimSpace(event.Payload.Payment.Entity.ID),
		GatewayRefundID:  strings.TrimSpace(event.Payload.Refund.Entity.ID),
		AmountPaise:      event.Payload.Payment.Entity.Amount,
	}

	result.GatewayOrderID = strings.TrimSpace(event.Payload.Payment.Entity.OrderID)
	if result.GatewayOrderID == "" {
		result.GatewayOrderID = strings.TrimSpace(event.Payload.Order.Entity.ID)
	}
	if result.Type == types.EventTypeOrderPaid && result.AmountPaise == 0 {
		result.AmountPaise = event.Payload.Order.Entity.AmountPaid
	}

	return result, nil
}

// VerifyCheckoutSignature validates the client-side checkout handshake,
// signed as "<order_id>|<payment_id>" with the key secret.
func (g *RazorpayGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" || paymentID == "" || strings.TrimSpace(g.cfg.KeySecret) == "" {
		return false
	}
	return hmacMatchesHex([]byte(orderID+"|"+paymentID), signature, g.cfg.KeySecret)
}

func (g *RazorpayGateway) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, razorpayBaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("razorpay request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

// verifyRazorpaySignature computes HMAC-SHA256 over the raw payload and
// compares in constant time. Razorpay sends a bare hex digest; an optional
// "sha256=" prefix is tolerated for parity with Meta-style webhooks. A
// missing secret fails closed.
func verifyRazorpaySignature(payload []byte, signatureHeader string, webhookSecret string) bool {
	if strings.TrimSpace(webhookSecret) == "" {
		return false
	}
	return hmacMatchesHex(payload, signatureHeader, webhookSecret)
}

func hmacMatchesHex(message []byte, signature string, secret string) bool {
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return false
	}

	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hmac.Equal(candidate, mac.Sum(nil))
}
