package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/identity"
)

type CatalogService struct {
	Repo *repo.GormRepo
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	return p, fromRepo(err, "product")
}

// DecrementStock and IncrementStock are the stock contract other components rely on.
func (s *CatalogService) DecrementStock(ctx context.Context, id uuid.UUID, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	return fromRepo(s.Repo.DecrementStock(ctx, id, qty), "product")
}

func (s *CatalogService) IncrementStock(ctx context.Context, id uuid.UUID, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	return fromRepo(s.Repo.IncrementStock(ctx, id, qty), "product")
}

func (s *CatalogService) CreateProduct(ctx context.Context, actor identity.Principal, req transport.CreateProductRequest) (*models.Product, error) {
	if actor.Role != identity.RoleSeller && actor.Role != identity.RoleAdmin {
		return nil, fmt.Errorf("%w: only sellers can list products", ErrPermissionDenied)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must be >= 0", ErrValidation)
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	prod := &models.Product{
		SellerID:    actor.UserID,
		CategoryID:  req.CategoryID,
		Name:        name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
		IsActive:    true,
	}
	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		return nil, err
	}
	return prod, nil
}

// PatchProduct is allowed to the owning seller and to admins. Existing order lines keep
// the price they were bought at.
func (s *CatalogService) PatchProduct(ctx context.Context, actor identity.Principal, id uuid.UUID, req transport.PatchProductRequest) (*models.Product, error) {
	if req.Price != nil && req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
	}
	if req.Stock != nil && *req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must be >= 0", ErrValidation)
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	prod, err := s.Repo.UpdateProduct(ctx, id, func(p *models.Product) error {
		if !actor.IsAdmin() && p.SellerID != actor.UserID {
			return fmt.Errorf("%w: product belongs to another seller", ErrPermissionDenied)
		}
		if req.Name != nil {
			p.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Price != nil {
			p.Price = req.Price.Round(2)
		}
		if req.Stock != nil {
			p.Stock = *req.Stock
		}
		if req.CategoryID != nil {
			p.CategoryID = req.CategoryID
		}
		if req.IsActive != nil {
			p.IsActive = *req.IsActive
		}
		return nil
	})
	if err != nil {
		return nil, fromRepo(err, "product")
	}
	return prod, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, actor identity.Principal, req transport.CreateCategoryRequest) (*models.Category, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", ErrPermissionDenied)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}
	cat := &models.Category{Name: name}
	if err := s.Repo.CreateCategory(ctx, cat); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("%w: category %q exists", ErrConflict, name)
		}
		return nil, err
	}
	return cat, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.Repo.ListCategories(ctx)
}

func (s *CatalogService) checkCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	ok, err := s.Repo.CategoryExists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unknown category", ErrValidation)
	}
	return nil
}
