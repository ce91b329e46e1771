package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/gateway/gatewaytest"
	"github.com/Skotchmaster/marketplace/internal/idempotency"
	"github.com/Skotchmaster/marketplace/internal/invoice"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/testutil"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/identity"
)

type fixture struct {
	db       *gorm.DB
	repo     *repo.GormRepo
	events   *events.Recorder
	gw       *gatewaytest.Fake
	dedup    *idempotency.MemoryStore
	catalog  *CatalogService
	cart     *CartService
	orders   *OrderService
	payments *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	r := &repo.GormRepo{DB: db}
	rec := &events.Recorder{}
	gw := gatewaytest.New()
	dedup := idempotency.NewMemoryStore(0)

	return &fixture{
		db:      db,
		repo:    r,
		events:  rec,
		gw:      gw,
		dedup:   dedup,
		catalog: &CatalogService{Repo: r},
		cart:    &CartService{Repo: r},
		orders:  &OrderService{Repo: r, Events: rec, Invoices: invoice.TextRenderer{StoreName: "Test Store"}},
		payments: &PaymentService{
			Repo:      r,
			Gateway:   gw,
			Dedup:     dedup,
			Events:    rec,
			Currency:  "INR",
			StoreName: "Test Store",
		},
	}
}

func newPrincipal(role identity.Role) identity.Principal {
	return identity.Principal{UserID: uuid.New(), Role: role, Name: "Ada Lovelace", Email: "ada@example.com"}
}

func (f *fixture) product(t *testing.T, seller identity.Principal, price string, stock int64) *models.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), seller, transport.CreateProductRequest{
		Name:  "product-" + uuid.NewString()[:8],
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) addToCart(t *testing.T, user identity.Principal, p *models.Product, qty int64) {
	t.Helper()
	_, err := f.cart.AddToCart(context.Background(), user.UserID, transport.AddToCartRequest{ProductID: p.ID, Quantity: qty})
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	p, err := f.repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// placeOrder seeds one product and an order of qty units for a fresh customer.
func (f *fixture) placeOrder(t *testing.T, price string, stock, qty int64) (identity.Principal, identity.Principal, *models.Order) {
	t.Helper()
	seller := newPrincipal(identity.RoleSeller)
	customer := newPrincipal(identity.RoleCustomer)
	p := f.product(t, seller, price, stock)
	f.addToCart(t, customer, p, qty)

	order, err := f.orders.CreateOrder(context.Background(), customer, transport.CreateOrderRequest{
		ShippingAddress: "1 Main St",
		Phone:           "+10000000000",
	})
	require.NoError(t, err)
	return seller, customer, order
}

func (f *fixture) orderStatus(t *testing.T, id uuid.UUID) models.OrderStatus {
	t.Helper()
	o, err := f.repo.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}
