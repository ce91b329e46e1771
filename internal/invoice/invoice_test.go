package invoice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketplace/internal/models"
)

func sampleOrder() *models.Order {
	return &models.Order{
		ID:              uuid.New(),
		CustomerID:      uuid.New(),
		Status:          models.OrderStatusPending,
		TotalAmount:     decimal.RequireFromString("25.00"),
		ShippingAddress: "221B Baker Street",
		Phone:           "+44 20 7946 0000",
		CreatedAt:       time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{ProductName: "Widget", Quantity: 2, Price: decimal.RequireFromString("10")},
			{ProductName: "Gadget", Quantity: 1, Price: decimal.RequireFromString("5")},
		},
	}
}

func TestTextRenderer(t *testing.T) {
	t.Parallel()

	o := sampleOrder()
	out, err := TextRenderer{StoreName: "Test Store"}.Render(context.Background(), Document{Order: o, CustomerName: "Ada"})
	require.NoError(t, err)

	body := string(out.Body)
	assert.Contains(t, body, "INVOICE #"+o.ID.String())
	assert.Contains(t, body, "2025-03-01 12:30")
	assert.Contains(t, body, "Widget")
	assert.Contains(t, body, "20.00")
	assert.Contains(t, body, "25.00")
	assert.Contains(t, body, "Customer:         Ada")
	assert.Equal(t, "invoice_"+o.ID.String()+".txt", out.Filename)
}

func TestTextRenderer_NilOrder(t *testing.T) {
	t.Parallel()
	_, err := TextRenderer{}.Render(context.Background(), Document{})
	require.Error(t, err)
}

func TestHTTPRenderer(t *testing.T) {
	o := sampleOrder()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/render/invoice", r.URL.Path)
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, o.ID.String(), req.OrderID)
		assert.Equal(t, "25.00", req.Total)
		require.Len(t, req.Lines, 2)
		assert.Equal(t, "20.00", req.Lines[0].Subtotal)

		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	out, err := NewHTTPRenderer(srv.URL+"/", "Test Store").Render(context.Background(), Document{Order: o})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.Equal(t, "%PDF-1.4 fake", string(out.Body))
	assert.Equal(t, "invoice_"+o.ID.String()+".pdf", out.Filename)
}

func TestHTTPRenderer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "template missing", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPRenderer(srv.URL, "").Render(context.Background(), Document{Order: sampleOrder()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template missing")
}
