package repo

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type NewOrder struct {
	CustomerID      uuid.UUID
	ShippingAddress string
	Phone           string
}

// CreateOrderFromCart turns the customer's cart into an order in one transaction: lock the
// cart lines and products, check every line, write the order with frozen items, take the
// stock and remove the ordered lines. Nothing is written unless every line fits.
func (r *GormRepo) CreateOrderFromCart(ctx context.Context, in NewOrder) (*models.Order, error) {
	var order models.Order

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lines []models.CartItem
		if err := lockForUpdate(tx).Where("user_id = ?", in.CustomerID).Order("product_id ASC").Find(&lines).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		ids := make([]uuid.UUID, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}

		var products []models.Product
		if err := lockForUpdate(tx).Where("id IN ?", ids).Order("id ASC").Find(&products).Error; err != nil {
			return err
		}
		byID := make(map[uuid.UUID]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			p, ok := byID[l.ProductID]
			if !ok || !p.IsActive {
				return &StockError{ProductID: l.ProductID, Requested: l.Quantity, Available: 0}
			}
			if p.Stock < l.Quantity {
				return &StockError{ProductID: p.ID, Requested: l.Quantity, Available: p.Stock}
			}
			item := models.OrderItem{
				ProductID:   p.ID,
				SellerID:    p.SellerID,
				ProductName: p.Name,
				Quantity:    l.Quantity,
				Price:       p.Price,
			}
			total = total.Add(item.Subtotal())
			items = append(items, item)
		}

		order = models.Order{
			CustomerID:      in.CustomerID,
			Status:          models.OrderStatusPending,
			TotalAmount:     total,
			ShippingAddress: in.ShippingAddress,
			Phone:           in.Phone,
			Items:           items,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, it := range items {
			if err := decrementStockTx(tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		// Only the lines that were ordered; anything added since stays in the cart.
		return tx.Delete(&lines).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

type OrderFilter struct {
	CustomerID *uuid.UUID
	SellerID   *uuid.UUID
}

func (r *GormRepo) ListOrders(ctx context.Context, f OrderFilter, page Page) ([]models.Order, int64, error) {
	scoped := func() *gorm.DB {
		q := r.DB.WithContext(ctx).Model(&models.Order{})
		if f.CustomerID != nil {
			q = q.Where("customer_id = ?", *f.CustomerID)
		}
		if f.SellerID != nil {
			q = q.Where("id IN (?)", r.DB.Model(&models.OrderItem{}).Select("order_id").Where("seller_id = ?", *f.SellerID))
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := scoped().Preload("Items").Order("created_at DESC").Limit(page.Limit).Offset(page.Offset).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// TransitionOrder locks the order and asks decide for the next status. decide sees the
// order with its items and may refuse by returning an error.
func (r *GormRepo) TransitionOrder(ctx context.Context, id uuid.UUID, decide func(o *models.Order) (models.OrderStatus, error)) (*models.Order, models.OrderStatus, error) {
	var (
		order models.Order
		prev  models.OrderStatus
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", id).First(&order).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
			return err
		}

		next, err := decide(&order)
		if err != nil {
			return err
		}

		prev = order.Status
		if err := setOrderStatusTx(tx, order.ID, prev, next); err != nil {
			return err
		}
		order.Status = next
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &order, prev, nil
}

// CancelOrder is TransitionOrder plus returning every line's quantity to stock.
func (r *GormRepo) CancelOrder(ctx context.Context, id uuid.UUID, guard func(o *models.Order) error) (*models.Order, models.OrderStatus, error) {
	var (
		order models.Order
		prev  models.OrderStatus
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", id).First(&order).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
			return err
		}
		if err := guard(&order); err != nil {
			return err
		}

		items := append([]models.OrderItem(nil), order.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID.String() < items[j].ProductID.String() })
		for _, it := range items {
			if err := incrementStockTx(tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		prev = order.Status
		if err := setOrderStatusTx(tx, order.ID, prev, models.OrderStatusCancelled); err != nil {
			return err
		}
		order.Status = models.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &order, prev, nil
}

func setOrderStatusTx(tx *gorm.DB, id uuid.UUID, from, to models.OrderStatus) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}
