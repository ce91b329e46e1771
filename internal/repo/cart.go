package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddToCart adds qty of a product to the user's cart. The resulting line quantity may not
// exceed the product's current stock.
func (r *GormRepo) AddToCart(ctx context.Context, userID, productID uuid.UUID, qty int64) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prod models.Product
		if err := tx.Where("id = ? AND is_active = ?", productID, true).First(&prod).Error; err != nil {
			return err
		}

		err := lockForUpdate(tx).Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if qty > prod.Stock {
				return &StockError{ProductID: productID, Requested: qty, Available: prod.Stock}
			}
			item = models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if item.Quantity+qty > prod.Stock {
				return &StockError{ProductID: productID, Requested: item.Quantity + qty, Available: prod.Stock}
			}
			if err := tx.Model(&item).Update("quantity", gorm.Expr("quantity + ?", qty)).Error; err != nil {
				return err
			}
			item.Quantity += qty
		}
		item.Product = &prod
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) UpdateCartItem(ctx context.Context, userID, itemID uuid.UUID, qty int64) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
			return err
		}
		var prod models.Product
		if err := tx.Where("id = ?", item.ProductID).First(&prod).Error; err != nil {
			return err
		}
		if qty > prod.Stock {
			return &StockError{ProductID: prod.ID, Requested: qty, Available: prod.Stock}
		}
		if err := tx.Model(&item).Update("quantity", qty).Error; err != nil {
			return err
		}
		item.Quantity = qty
		item.Product = &prod
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) RemoveCartItem(ctx context.Context, userID, itemID uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
