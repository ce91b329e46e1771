package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return r.DB.WithContext(ctx).Create(prod).Error
}

// UpdateProduct loads the product, lets apply mutate it and saves it in one transaction.
func (r *GormRepo) UpdateProduct(ctx context.Context, id uuid.UUID, apply func(p *models.Product) error) (*models.Product, error) {
	var prod models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", id).First(&prod).Error; err != nil {
			return err
		}
		if err := apply(&prod); err != nil {
			return err
		}
		return tx.Save(&prod).Error
	})
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

func (r *GormRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int64) error {
	return decrementStockTx(r.DB.WithContext(ctx), id, qty)
}

func (r *GormRepo) IncrementStock(ctx context.Context, id uuid.UUID, qty int64) error {
	return incrementStockTx(r.DB.WithContext(ctx), id, qty)
}

func decrementStockTx(tx *gorm.DB, id uuid.UUID, qty int64) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var p models.Product
		if err := tx.Select("stock").Where("id = ?", id).First(&p).Error; err != nil {
			return err
		}
		return &StockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	return nil
}

func incrementStockTx(tx *gorm.DB, id uuid.UUID, qty int64) error {
	res := tx.Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) CreateCategory(ctx context.Context, cat *models.Category) error {
	if err := r.DB.WithContext(ctx).Create(cat).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *GormRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := r.DB.WithContext(ctx).Order("name ASC").Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

func (r *GormRepo) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
