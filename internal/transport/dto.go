package transport

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type CreateOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	Phone           string `json:"phone"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type InitiatePaymentRequest struct {
	OrderID       uuid.UUID `json:"order_id"`
	PaymentMethod string    `json:"payment_method"`
}

// VerifyPaymentRequest carries what the checkout widget hands back after a successful payment.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type RefundPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
}

type PatchProductRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int64           `json:"stock,omitempty"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type CartResponse struct {
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// PaymentIntentResponse is enough for a client to open checkout. Gateway fields are empty
// for cash on delivery.
type PaymentIntentResponse struct {
	PaymentID      uuid.UUID            `json:"payment_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	Method         models.PaymentMethod `json:"payment_method"`
	Status         models.PaymentStatus `json:"status"`
	TransactionID  string               `json:"transaction_id"`
	Amount         decimal.Decimal      `json:"amount"`
	GatewayOrderID string               `json:"razorpay_order_id,omitempty"`
	KeyID          string               `json:"razorpay_key_id,omitempty"`
	AmountMinor    int64                `json:"amount_minor,omitempty"`
	Currency       string               `json:"currency,omitempty"`
	Name           string               `json:"name,omitempty"`
	Description    string               `json:"description,omitempty"`
	Prefill        *Prefill             `json:"prefill,omitempty"`
}

type VerifyPaymentResponse struct {
	PaymentID   uuid.UUID            `json:"payment_id"`
	OrderID     uuid.UUID            `json:"order_id"`
	Status      models.PaymentStatus `json:"status"`
	OrderStatus models.OrderStatus   `json:"order_status"`
}

type WebhookAck struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// PaymentDetailsResponse is the remote record for gateway payments and a local summary
// for cash on delivery.
type PaymentDetailsResponse struct {
	Source        string               `json:"source"`
	PaymentID     uuid.UUID            `json:"payment_id"`
	TransactionID string               `json:"transaction_id"`
	Method        models.PaymentMethod `json:"payment_method"`
	Status        string               `json:"status"`
	Amount        decimal.Decimal      `json:"amount"`
	Remote        any                  `json:"remote,omitempty"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}
