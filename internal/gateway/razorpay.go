package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"
)

type Config struct {
	// BaseURL is the API host, with or without the /v1 suffix. Empty means production.
	BaseURL       string
	KeyID         string
	KeySecret     []byte
	WebhookSecret []byte
	Timeout       time.Duration
}

// Client wraps the Razorpay SDK. The SDK has no context support, so every call runs in
// its own goroutine and is abandoned when ctx ends; the http client timeout bounds it.
type Client struct {
	rzp           *razorpay.Client
	keyID         string
	keySecret     []byte
	webhookSecret []byte
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rzp := razorpay.NewClient(cfg.KeyID, string(cfg.KeySecret))
	rzp.Request.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	if base := apiHost(cfg.BaseURL); base != "" {
		rzp.Request.BaseURL = base
	}

	return &Client{
		rzp:           rzp,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}
}

// SDK paths already start with /v1.
func apiHost(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	return strings.TrimSuffix(base, "/v1")
}

func (c *Client) KeyID() string { return c.keyID }

func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	body := map[string]any{
		"amount":          req.AmountMinor,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
		"notes":           req.Notes,
	}
	var out Intent
	err := c.call(ctx, "create order", &out, func() (map[string]any, error) {
		return c.rzp.Order.Create(body, nil)
	})
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("gateway: create order: empty id in response")
	}
	return &out, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	var out PaymentDetails
	err := c.call(ctx, "fetch payment", &out, func() (map[string]any, error) {
		return c.rzp.Payment.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("gateway: fetch payment: empty id in response")
	}
	return &out, nil
}

func (c *Client) Refund(ctx context.Context, paymentID string, req RefundRequest) (*Refund, error) {
	data := map[string]any{
		"speed": "normal",
		"notes": map[string]string{"reason": req.Reason},
	}
	var out Refund
	err := c.call(ctx, "refund", &out, func() (map[string]any, error) {
		return c.rzp.Payment.Refund(paymentID, int(req.AmountMinor), data, nil)
	})
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("gateway: refund: empty id in response")
	}
	return &out, nil
}

func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	return Verify(c.keySecret, PaymentPayload(orderID, paymentID), signature)
}

func (c *Client) VerifyWebhookSignature(body []byte, signature string) error {
	return Verify(c.webhookSecret, body, signature)
}

type sdkResult struct {
	body map[string]any
	err  error
}

func (c *Client) call(ctx context.Context, op string, out any, fn func() (map[string]any, error)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("gateway: %s: %w", op, err)
	}

	done := make(chan sdkResult, 1)
	go func() {
		body, err := fn()
		done <- sdkResult{body: body, err: err}
	}()

	var res sdkResult
	select {
	case <-ctx.Done():
		return fmt.Errorf("gateway: %s: %w", op, ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return fmt.Errorf("gateway: %s: %w", op, translateError(res.err))
	}

	// The SDK hands back loosely typed maps.
	raw, err := json.Marshal(res.body)
	if err != nil {
		return fmt.Errorf("gateway: %s: encode response: %w", op, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway: %s: decode response: %w", op, err)
	}
	return nil
}

func translateError(err error) error {
	var (
		badReq   *rzperrors.BadRequestError
		server   *rzperrors.ServerError
		upstream *rzperrors.GatewayError
	)
	switch {
	case errors.As(err, &badReq):
		return &APIError{StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST_ERROR", Description: badReq.Message}
	case errors.As(err, &upstream):
		return &APIError{StatusCode: http.StatusBadGateway, Code: "GATEWAY_ERROR", Description: upstream.Message}
	case errors.As(err, &server):
		return &APIError{StatusCode: http.StatusInternalServerError, Code: "SERVER_ERROR", Description: server.Message}
	}
	return err
}
