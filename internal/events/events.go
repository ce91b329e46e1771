// Package events carries order and payment lifecycle notifications out of the service
// after the owning transaction has committed.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TopicOrders   = "order_events"
	TopicPayments = "payment_events"
)

const (
	OrderCreated       = "order_created"
	OrderStatusChanged = "order_status_changed"
	OrderCancelled     = "order_cancelled"

	PaymentInitiated = "payment_initiated"
	PaymentCompleted = "payment_completed"
	PaymentFailed    = "payment_failed"
	PaymentRefunded  = "payment_refunded"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    uuid.UUID       `json:"order_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	ActorID    uuid.UUID       `json:"actor_id"`
	From       string          `json:"from,omitempty"`
	To         string          `json:"to"`
	Total      decimal.Decimal `json:"total"`
	At         time.Time       `json:"at"`
}

type PaymentEvent struct {
	Type           string          `json:"type"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Method         string          `json:"method"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	GatewayOrderID string          `json:"gateway_order_id,omitempty"`
	Source         string          `json:"source,omitempty"`
	At             time.Time       `json:"at"`
}

// Nop drops everything.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }

// Fanout delivers to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, topic, key string, event any) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, topic, key, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
