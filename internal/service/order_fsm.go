package service

import (
	"fmt"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type OrderTrigger string

const (
	TriggerPay     OrderTrigger = "pay"
	TriggerShip    OrderTrigger = "ship"
	TriggerDeliver OrderTrigger = "deliver"
	TriggerCancel  OrderTrigger = "cancel"
)

type orderEdge struct {
	from models.OrderStatus
	on   OrderTrigger
}

// orderTransitions is the whole order lifecycle. Pairs not listed are rejected.
var orderTransitions = map[orderEdge]models.OrderStatus{
	{models.OrderStatusPending, TriggerPay}:       models.OrderStatusProcessing,
	{models.OrderStatusProcessing, TriggerShip}:   models.OrderStatusShipped,
	{models.OrderStatusShipped, TriggerDeliver}:   models.OrderStatusDelivered,
	{models.OrderStatusPending, TriggerCancel}:    models.OrderStatusCancelled,
	{models.OrderStatusProcessing, TriggerCancel}: models.OrderStatusCancelled,
}

func NextOrderStatus(from models.OrderStatus, on OrderTrigger) (models.OrderStatus, error) {
	next, ok := orderTransitions[orderEdge{from, on}]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s an order that is %s", ErrInvalidTransition, on, from)
	}
	return next, nil
}

// triggerFor maps an operator's target status to the event that reaches it. Cancellation
// is not reachable this way.
func triggerFor(target models.OrderStatus) (OrderTrigger, bool) {
	switch target {
	case models.OrderStatusProcessing:
		return TriggerPay, true
	case models.OrderStatusShipped:
		return TriggerShip, true
	case models.OrderStatusDelivered:
		return TriggerDeliver, true
	}
	return "", false
}
