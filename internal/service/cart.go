package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
)

type CartService struct {
	Repo *repo.GormRepo
}

// GetCart returns the lines with a total computed from current prices.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*transport.CartResponse, error) {
	items, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &transport.CartResponse{Items: items, Total: cartTotal(items)}, nil
}

func (s *CartService) AddToCart(ctx context.Context, userID uuid.UUID, req transport.AddToCartRequest) (*models.CartItem, error) {
	if req.ProductID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	item, err := s.Repo.AddToCart(ctx, userID, req.ProductID, req.Quantity)
	return item, fromRepo(err, "product")
}

func (s *CartService) UpdateCartItem(ctx context.Context, userID, itemID uuid.UUID, req transport.UpdateCartItemRequest) (*models.CartItem, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	item, err := s.Repo.UpdateCartItem(ctx, userID, itemID, req.Quantity)
	return item, fromRepo(err, "cart item")
}

func (s *CartService) RemoveCartItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return fromRepo(s.Repo.RemoveCartItem(ctx, userID, itemID), "cart item")
}

func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return s.Repo.ClearCart(ctx, userID)
}

func cartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.Product == nil {
			continue
		}
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}
	return total
}
