// Package gatewaytest provides an in-process Gateway for service and handler tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Skotchmaster/marketplace/internal/gateway"
)

const (
	KeyID         = "rzp_test_fake"
	KeySecret     = "fake-key-secret"
	WebhookSecret = "fake-webhook-secret"
)

// Fake signs with the package constants and records every remote call. Setting Block
// makes remote calls wait for ctx to end, which is how tests exercise timeouts.
type Fake struct {
	Block bool

	CreateIntentFn func(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error)
	FetchPaymentFn func(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error)
	RefundFn       func(ctx context.Context, paymentID string, req gateway.RefundRequest) (*gateway.Refund, error)

	CreateCalls atomic.Int64
	FetchCalls  atomic.Int64
	RefundCalls atomic.Int64

	mu      sync.Mutex
	seq     int
	intents []gateway.IntentRequest
	refunds []gateway.RefundRequest
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake { return &Fake{} }

func (f *Fake) KeyID() string { return KeyID }

func (f *Fake) CreateIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error) {
	f.CreateCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.seq++
	id := fmt.Sprintf("order_fake%04d", f.seq)
	f.intents = append(f.intents, req)
	f.mu.Unlock()

	if f.CreateIntentFn != nil {
		return f.CreateIntentFn(ctx, req)
	}
	return &gateway.Intent{ID: id, Amount: req.AmountMinor, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (f *Fake) FetchPayment(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	f.FetchCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.FetchPaymentFn != nil {
		return f.FetchPaymentFn(ctx, paymentID)
	}
	return &gateway.PaymentDetails{ID: paymentID, Status: "captured", Captured: true, Currency: "INR"}, nil
}

func (f *Fake) Refund(ctx context.Context, paymentID string, req gateway.RefundRequest) (*gateway.Refund, error) {
	f.RefundCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.refunds = append(f.refunds, req)
	n := len(f.refunds)
	f.mu.Unlock()

	if f.RefundFn != nil {
		return f.RefundFn(ctx, paymentID, req)
	}
	return &gateway.Refund{ID: fmt.Sprintf("rfnd_fake%04d", n), PaymentID: paymentID, Amount: req.AmountMinor, Status: "processed"}, nil
}

func (f *Fake) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	return gateway.Verify([]byte(KeySecret), gateway.PaymentPayload(orderID, paymentID), signature)
}

func (f *Fake) VerifyWebhookSignature(body []byte, signature string) error {
	return gateway.Verify([]byte(WebhookSecret), body, signature)
}

func (f *Fake) Intents() []gateway.IntentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.IntentRequest(nil), f.intents...)
}

func (f *Fake) Refunds() []gateway.RefundRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.RefundRequest(nil), f.refunds...)
}

// PaymentSignature is what a checkout client would send back for a successful payment.
func PaymentSignature(gatewayOrderID, paymentID string) string {
	return gateway.Sign([]byte(KeySecret), gateway.PaymentPayload(gatewayOrderID, paymentID))
}

func WebhookSignature(body []byte) string {
	return gateway.Sign([]byte(WebhookSecret), body)
}

func (f *Fake) wait(ctx context.Context) error {
	if !f.Block {
		return ctx.Err()
	}
	<-ctx.Done()
	return ctx.Err()
}
