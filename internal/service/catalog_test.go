package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/identity"
)

func TestCatalog_CreateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := newPrincipal(identity.RoleSeller)

	tests := []struct {
		name    string
		actor   identity.Principal
		req     transport.CreateProductRequest
		wantErr error
	}{
		{"customer", newPrincipal(identity.RoleCustomer), transport.CreateProductRequest{Name: "x", Price: decimal.NewFromInt(1)}, ErrPermissionDenied},
		{"no name", seller, transport.CreateProductRequest{Price: decimal.NewFromInt(1)}, ErrValidation},
		{"negative price", seller, transport.CreateProductRequest{Name: "x", Price: decimal.NewFromInt(-1)}, ErrValidation},
		{"negative stock", seller, transport.CreateProductRequest{Name: "x", Price: decimal.NewFromInt(1), Stock: -1}, ErrValidation},
		{"unknown category", seller, transport.CreateProductRequest{Name: "x", Price: decimal.NewFromInt(1), CategoryID: ptr(uuid.New())}, ErrValidation},
		{"ok", seller, transport.CreateProductRequest{Name: "Lamp", Price: decimal.RequireFromString("19.99"), Stock: 4}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.catalog.CreateProduct(ctx, tt.actor, tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, seller.UserID, p.SellerID)
			assert.True(t, p.IsActive)
		})
	}
}

func TestCatalog_PatchProductOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := newPrincipal(identity.RoleSeller)
	p := f.product(t, owner, "5.00", 2)

	stock := int64(9)
	_, err := f.catalog.PatchProduct(ctx, newPrincipal(identity.RoleSeller), p.ID, transport.PatchProductRequest{Stock: &stock})
	require.ErrorIs(t, err, ErrPermissionDenied)

	neg := int64(-1)
	_, err = f.catalog.PatchProduct(ctx, owner, p.ID, transport.PatchProductRequest{Stock: &neg})
	require.ErrorIs(t, err, ErrValidation)

	got, err := f.catalog.PatchProduct(ctx, newPrincipal(identity.RoleAdmin), p.ID, transport.PatchProductRequest{Stock: &stock})
	require.NoError(t, err)
	assert.EqualValues(t, 9, got.Stock)

	_, err = f.catalog.PatchProduct(ctx, owner, uuid.New(), transport.PatchProductRequest{Stock: &stock})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_StockContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, newPrincipal(identity.RoleSeller), "1.00", 3)

	require.NoError(t, f.catalog.DecrementStock(ctx, p.ID, 3))
	err := f.catalog.DecrementStock(ctx, p.ID, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.EqualValues(t, 0, f.stock(t, p.ID))

	require.NoError(t, f.catalog.IncrementStock(ctx, p.ID, 2))
	assert.EqualValues(t, 2, f.stock(t, p.ID))

	require.ErrorIs(t, f.catalog.IncrementStock(ctx, uuid.New(), 1), ErrNotFound)
	require.ErrorIs(t, f.catalog.DecrementStock(ctx, p.ID, 0), ErrValidation)

	_, err = f.catalog.GetProduct(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_Categories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := newPrincipal(identity.RoleAdmin)

	_, err := f.catalog.CreateCategory(ctx, newPrincipal(identity.RoleSeller), transport.CreateCategoryRequest{Name: "Books"})
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.catalog.CreateCategory(ctx, admin, transport.CreateCategoryRequest{Name: "Books"})
	require.NoError(t, err)
	_, err = f.catalog.CreateCategory(ctx, admin, transport.CreateCategoryRequest{Name: "Books"})
	require.ErrorIs(t, err, ErrConflict)
	_, err = f.catalog.CreateCategory(ctx, admin, transport.CreateCategoryRequest{Name: "Audio"})
	require.NoError(t, err)

	cats, err := f.catalog.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Audio", cats[0].Name)
}

func ptr[T any](v T) *T { return &v }
