package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Name      string    `gorm:"uniqueIndex;not null"  json:"name"`
	CreatedAt time.Time `                             json:"created_at"`
}

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"             json:"id"`
	SellerID    uuid.UUID       `gorm:"type:uuid;index;not null"         json:"seller_id"`
	CategoryID  *uuid.UUID      `gorm:"type:uuid;index"                  json:"category_id,omitempty"`
	Name        string          `gorm:"not null"                         json:"name"`
	Description string          `gorm:"not null;default:''"              json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"      json:"price"`
	Stock       int64           `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	IsActive    bool            `gorm:"not null;default:true"            json:"is_active"`
	CreatedAt   time.Time       `                                        json:"created_at"`
	UpdatedAt   time.Time       `                                        json:"updated_at"`
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                              json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_product;not null"   json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_product;not null"   json:"product_id"`
	Quantity  int64     `gorm:"not null;default:1;check:quantity > 0"             json:"quantity"`
	Product   *Product  `gorm:"foreignKey:ProductID"                              json:"product,omitempty"`
	CreatedAt time.Time `                                                         json:"created_at"`
}

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"          json:"id"`
	CustomerID      uuid.UUID       `gorm:"type:uuid;index;not null"      json:"customer_id"`
	Status          OrderStatus     `gorm:"type:varchar(20);index;not null" json:"status"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"total_amount"`
	ShippingAddress string          `gorm:"not null"                      json:"shipping_address"`
	Phone           string          `gorm:"not null"                      json:"phone"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE"   json:"items,omitempty"`
	CreatedAt       time.Time       `                                     json:"created_at"`
	UpdatedAt       time.Time       `                                     json:"updated_at"`
}

// OrderItem is frozen at order creation; later catalog edits never touch it.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null"    json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index;not null"    json:"product_id"`
	SellerID    uuid.UUID       `gorm:"type:uuid;index;not null"    json:"seller_id"`
	ProductName string          `gorm:"not null"                    json:"product_name"`
	Quantity    int64           `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

type PaymentTransaction struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"              json:"id"`
	OrderID          uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"    json:"order_id"`
	UserID           uuid.UUID       `gorm:"type:uuid;index;not null"          json:"user_id"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null"       json:"amount"`
	Method           PaymentMethod   `gorm:"type:varchar(20);not null"         json:"method"`
	Status           PaymentStatus   `gorm:"type:varchar(20);index;not null"   json:"status"`
	TransactionID    string          `gorm:"uniqueIndex;not null"              json:"transaction_id"`
	GatewayOrderID   string          `gorm:"index"                             json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `gorm:"index"                             json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `                                         json:"-"`
	RefundID         string          `                                         json:"refund_id,omitempty"`
	GatewayNotes     datatypes.JSONMap `                                       json:"gateway_notes,omitempty"`
	CreatedAt        time.Time       `                                         json:"created_at"`
	UpdatedAt        time.Time       `                                         json:"updated_at"`
}

// WebhookEvent records a processed gateway delivery. EventID is unique, so a redelivery
// that races past the cache still cannot be applied twice.
type WebhookEvent struct {
	EventID        string         `gorm:"primaryKey"   json:"event_id"`
	EventType      string         `gorm:"index"        json:"event_type"`
	GatewayOrderID string         `gorm:"index"        json:"gateway_order_id"`
	Payload        datatypes.JSON `                    json:"payload"`
	ProcessedAt    time.Time      `                    json:"processed_at"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (p *PaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string { return "cart_items" }

func (PaymentTransaction) TableName() string { return "payment_transactions" }

// All lists every table the shop owns, in migration order.
func All() []any {
	return []any{
		&Category{},
		&Product{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&PaymentTransaction{},
		&WebhookEvent{},
	}
}
