package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/marketplace/internal/audit"
	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/invoice"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/identity"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

type HistoryReader interface {
	History(ctx context.Context, orderID uuid.UUID, size int) ([]audit.Entry, error)
}

type OrderService struct {
	Repo     *repo.GormRepo
	Events   events.Publisher
	Invoices invoice.Renderer
	// History is nil when no audit store is configured.
	History HistoryReader
}

// CreateOrder converts the caller's cart into a pending order. Stock is taken and the cart
// emptied in the same transaction.
func (s *OrderService) CreateOrder(ctx context.Context, actor identity.Principal, req transport.CreateOrderRequest) (*models.Order, error) {
	addr := strings.TrimSpace(req.ShippingAddress)
	phone := strings.TrimSpace(req.Phone)
	if addr == "" {
		return nil, fmt.Errorf("%w: shipping_address required", ErrValidation)
	}
	if phone == "" {
		return nil, fmt.Errorf("%w: phone required", ErrValidation)
	}

	order, err := s.Repo.CreateOrderFromCart(ctx, repo.NewOrder{
		CustomerID:      actor.UserID,
		ShippingAddress: addr,
		Phone:           phone,
	})
	if err != nil {
		return nil, fromRepo(err, "product")
	}

	s.publish(ctx, events.OrderEvent{
		Type:       events.OrderCreated,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ActorID:    actor.UserID,
		To:         string(order.Status),
		Total:      order.TotalAmount,
		At:         order.CreatedAt,
	})
	return order, nil
}

// UpdateStatus moves an order forward along the lifecycle. Admins may move any order;
// sellers only orders that contain at least one of their items.
func (s *OrderService) UpdateStatus(ctx context.Context, actor identity.Principal, orderID uuid.UUID, req transport.UpdateOrderStatusRequest) (*models.Order, error) {
	target, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
	}

	switch actor.Role {
	case identity.RoleAdmin, identity.RoleSeller:
	case identity.RoleCustomer:
		return nil, fmt.Errorf("%w: customers cannot change order status", ErrPermissionDenied)
	default:
		return nil, fmt.Errorf("%w: unknown role", ErrPermissionDenied)
	}

	trigger, ok := triggerFor(target)
	if !ok {
		return nil, fmt.Errorf("%w: orders are cancelled through cancel", ErrInvalidTransition)
	}

	order, prev, err := s.Repo.TransitionOrder(ctx, orderID, func(o *models.Order) (models.OrderStatus, error) {
		if !actor.IsAdmin() && !sellsIn(o, actor.UserID) {
			return "", fmt.Errorf("%w: order has none of your items", ErrPermissionDenied)
		}
		return NextOrderStatus(o.Status, trigger)
	})
	if err != nil {
		if errors.Is(err, repo.ErrStaleState) {
			return nil, fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		return nil, fromRepo(err, "order")
	}

	s.publish(ctx, events.OrderEvent{
		Type:       events.OrderStatusChanged,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ActorID:    actor.UserID,
		From:       string(prev),
		To:         string(order.Status),
		Total:      order.TotalAmount,
		At:         time.Now().UTC(),
	})
	return order, nil
}

// CancelOrder is reserved to the customer who placed the order and restores every line's
// stock together with the status change.
func (s *OrderService) CancelOrder(ctx context.Context, actor identity.Principal, orderID uuid.UUID) (*models.Order, error) {
	order, prev, err := s.Repo.CancelOrder(ctx, orderID, func(o *models.Order) error {
		if o.CustomerID != actor.UserID {
			return fmt.Errorf("%w: only the customer can cancel an order", ErrPermissionDenied)
		}
		_, err := NextOrderStatus(o.Status, TriggerCancel)
		return err
	})
	if err != nil {
		if errors.Is(err, repo.ErrStaleState) {
			return nil, fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		return nil, fromRepo(err, "order")
	}

	s.publish(ctx, events.OrderEvent{
		Type:       events.OrderCancelled,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ActorID:    actor.UserID,
		From:       string(prev),
		To:         string(order.Status),
		Total:      order.TotalAmount,
		At:         time.Now().UTC(),
	})
	return order, nil
}

// GetOrder hides orders the caller may not see behind ErrNotFound.
func (s *OrderService) GetOrder(ctx context.Context, actor identity.Principal, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fromRepo(err, "order")
	}
	if !canView(actor, order) {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, actor identity.Principal, page repo.Page) ([]models.Order, int64, error) {
	var f repo.OrderFilter
	switch actor.Role {
	case identity.RoleAdmin:
	case identity.RoleSeller:
		f.SellerID = &actor.UserID
	case identity.RoleCustomer:
		f.CustomerID = &actor.UserID
	default:
		return nil, 0, fmt.Errorf("%w: unknown role", ErrPermissionDenied)
	}
	return s.Repo.ListOrders(ctx, f, page)
}

func (s *OrderService) Invoice(ctx context.Context, actor identity.Principal, orderID uuid.UUID) (*invoice.Rendered, error) {
	order, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	doc := invoice.Document{Order: order}
	if order.CustomerID == actor.UserID {
		doc.CustomerName = actor.Name
		doc.CustomerEmail = actor.Email
	}
	out, err := s.Invoices.Render(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out, nil
}

// OrderHistory returns the audit trail of an order to its customer and to admins.
func (s *OrderService) OrderHistory(ctx context.Context, actor identity.Principal, orderID uuid.UUID) ([]audit.Entry, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fromRepo(err, "order")
	}
	if !actor.IsAdmin() && order.CustomerID != actor.UserID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	if s.History == nil {
		return nil, fmt.Errorf("%w: audit store not configured", ErrUnavailable)
	}
	entries, err := s.History.History(ctx, orderID, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return entries, nil
}

func (s *OrderService) publish(ctx context.Context, evt events.OrderEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, events.TopicOrders, evt.OrderID.String(), evt); err != nil {
		logging.FromContext(ctx).Warn("order_event_publish_failed", "type", evt.Type, "order_id", evt.OrderID, "error", err)
	}
}

func canView(actor identity.Principal, o *models.Order) bool {
	switch actor.Role {
	case identity.RoleAdmin:
		return true
	case identity.RoleSeller:
		return o.CustomerID == actor.UserID || sellsIn(o, actor.UserID)
	case identity.RoleCustomer:
		return o.CustomerID == actor.UserID
	}
	return false
}

func sellsIn(o *models.Order, sellerID uuid.UUID) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}
