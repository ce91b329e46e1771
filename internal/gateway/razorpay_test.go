package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:       srv.URL + "/v1/",
		KeyID:         "rzp_test_key",
		KeySecret:     []byte("key-secret"),
		WebhookSecret: []byte("webhook-secret"),
		Timeout:       timeout,
	})
}

func TestClient_CreateIntent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "key-secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 2500, body["amount"])
		assert.Equal(t, "INR", body["currency"])
		assert.EqualValues(t, 1, body["payment_capture"])
		assert.Equal(t, "order-1", body["receipt"])

		_ = json.NewEncoder(w).Encode(map[string]any{"id": "order_ABC", "amount": 2500, "currency": "INR", "status": "created"})
	}, time.Second)

	intent, err := c.CreateIntent(context.Background(), IntentRequest{
		AmountMinor: 2500,
		Currency:    "INR",
		Receipt:     "order-1",
		Notes:       map[string]string{"order_id": "order-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_ABC", intent.ID)
	assert.Equal(t, "created", intent.Status)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be at least INR 1.00"}}`))
	}, time.Second)

	_, err := c.Refund(context.Background(), "pay_1", RefundRequest{AmountMinor: 10, Reason: "test"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
	assert.Contains(t, err.Error(), "at least INR 1.00")
}

func TestClient_TimeoutIsAnError(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	start := time.Now()
	_, err := c.FetchPayment(context.Background(), "pay_1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_RefundAndFetchPaths(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/payments/pay_9/refund":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "normal", body["speed"])
			assert.Equal(t, map[string]any{"reason": "Customer request"}, body["notes"])
			_ = json.NewEncoder(w).Encode(Refund{ID: "rfnd_1", PaymentID: "pay_9", Amount: 500, Status: "processed"})
		case "/v1/payments/pay_9":
			_ = json.NewEncoder(w).Encode(PaymentDetails{ID: "pay_9", OrderID: "order_1", Status: "captured", Amount: 500})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, time.Second)

	ref, err := c.Refund(context.Background(), "pay_9", RefundRequest{AmountMinor: 500, Reason: "Customer request"})
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", ref.ID)

	det, err := c.FetchPayment(context.Background(), "pay_9")
	require.NoError(t, err)
	assert.Equal(t, "captured", det.Status)
}

func TestClient_FetchPaymentEmptyNotes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"pay_1","order_id":"order_1","status":"captured","amount":1500,"currency":"INR","method":"upi","captured":true,"notes":[]}`))
	}, time.Second)

	det, err := c.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", det.ID)
	assert.EqualValues(t, 1500, det.Amount)
	assert.Empty(t, det.Notes)
}

func TestNotes_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    Notes
		wantErr bool
	}{
		{name: "object", in: `{"order_id":"o-1","attempt":2}`, want: Notes{"order_id": "o-1", "attempt": "2"}},
		{name: "empty array", in: `[]`, want: nil},
		{name: "null", in: `null`, want: nil},
		{name: "non-empty array", in: `["x"]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Notes Notes `json:"notes"`
			}
			err := json.Unmarshal([]byte(`{"notes":`+tt.in+`}`), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Notes)
		})
	}
}

func TestClient_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 5*time.Second)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.CreateIntent(ctx, IntentRequest{AmountMinor: 100, Currency: "INR", Receipt: "r"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_EmptyResponseIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, time.Second)

	_, err := c.Refund(context.Background(), "pay_1", RefundRequest{AmountMinor: 100, Reason: "r"})
	require.Error(t, err)
	_, err = c.FetchPayment(context.Background(), "pay_1")
	require.Error(t, err)
}

func TestClient_Signatures(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{KeySecret: []byte("key-secret"), WebhookSecret: []byte("webhook-secret")})

	sig := Sign([]byte("key-secret"), PaymentPayload("order_1", "pay_1"))
	require.NoError(t, c.VerifyPaymentSignature("order_1", "pay_1", sig))
	assert.ErrorIs(t, c.VerifyPaymentSignature("order_1", "pay_2", sig), ErrSignatureMismatch)
	assert.ErrorIs(t, c.VerifyPaymentSignature("order_1", "pay_1", "zz-not-hex"), ErrSignatureMismatch)

	body := []byte(`{"event":"payment.captured"}`)
	require.NoError(t, c.VerifyWebhookSignature(body, Sign([]byte("webhook-secret"), body)))
	assert.ErrorIs(t, c.VerifyWebhookSignature(body, Sign([]byte("key-secret"), body)), ErrSignatureMismatch)
	assert.ErrorIs(t, c.VerifyWebhookSignature(body, ""), ErrSignatureMismatch)
}

func TestVerify_EmptySecretNeverMatches(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, Verify(nil, []byte("x"), Sign(nil, []byte("x"))), ErrSignatureMismatch)
}
