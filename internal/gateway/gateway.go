// Package gateway is the payment processor boundary: creating remote orders, fetching
// and refunding payments, and checking the signatures the processor attaches to
// client callbacks and webhooks.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

type Gateway interface {
	// KeyID is the public key handed to checkout clients.
	KeyID() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	FetchPayment(ctx context.Context, paymentID string) (*PaymentDetails, error)
	Refund(ctx context.Context, paymentID string, req RefundRequest) (*Refund, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) error
	VerifyWebhookSignature(body []byte, signature string) error
}

type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type PaymentDetails struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
	Email     string `json:"email,omitempty"`
	Contact   string `json:"contact,omitempty"`
	Captured  bool   `json:"captured"`
	CreatedAt int64  `json:"created_at"`
	Notes     Notes  `json:"notes,omitempty"`
}

// Notes are the free-form key/values attached to a remote record. The processor sends
// an empty array instead of an empty object when there are none.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = nil
		return nil
	case len(b) > 0 && b[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		if len(items) > 0 {
			return fmt.Errorf("gateway: notes: expected object, got array of %d", len(items))
		}
		*n = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for k, v := range raw {
		var str string
		if json.Unmarshal(v, &str) == nil {
			out[k] = str
			continue
		}
		out[k] = string(v)
	}
	*n = out
	return nil
}

type RefundRequest struct {
	AmountMinor int64
	Reason      string
}

type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// APIError is a non-2xx answer from the processor.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("gateway: status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("gateway: status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}
