package repo

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/testutil"
	pkgdb "github.com/Skotchmaster/marketplace/pkg/db"
)

func seedProduct(t *testing.T, r *GormRepo, price string, stock int64) *models.Product {
	t.Helper()
	p := &models.Product{
		SellerID: uuid.New(),
		Name:     "widget",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func newOrder(customer uuid.UUID) NewOrder {
	return NewOrder{CustomerID: customer, ShippingAddress: "9 Dock St", Phone: "+15550003333"}
}

func TestCreateOrderFromCart_FreezesPricesAndEmptiesCart(t *testing.T) {
	r := &GormRepo{DB: testutil.NewDB(t)}
	ctx := context.Background()
	customer := uuid.New()
	p := seedProduct(t, r, "7.50", 4)

	_, err := r.AddToCart(ctx, customer, p.ID, 3)
	require.NoError(t, err)

	order, err := r.CreateOrderFromCart(ctx, newOrder(customer))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, decimal.RequireFromString("22.50").Equal(order.TotalAmount))
	require.Len(t, order.Items, 1)
	assert.Equal(t, p.SellerID, order.Items[0].SellerID)

	fresh, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.Stock)

	cart, err := r.GetCart(ctx, customer)
	require.NoError(t, err)
	assert.Empty(t, cart)

	_, err = r.CreateOrderFromCart(ctx, newOrder(customer))
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrderFromCart_KeepsLinesAddedDuringCheckout(t *testing.T) {
	db := testutil.NewDB(t)
	r := &GormRepo{DB: db}
	ctx := context.Background()
	customer := uuid.New()
	a := seedProduct(t, r, "3.00", 5)
	b := seedProduct(t, r, "4.00", 5)

	_, err := r.AddToCart(ctx, customer, a.ID, 1)
	require.NoError(t, err)

	// A second tab adds a line right after checkout has read the cart.
	var added bool
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:late_cart_line", func(tx *gorm.DB) {
		if added || tx.Statement.Table != "cart_items" {
			return
		}
		added = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"INSERT INTO cart_items (id, user_id, product_id, quantity, created_at) VALUES (?, ?, ?, ?, ?)",
			uuid.New(), customer, b.ID, 2, time.Now().UTC())
		require.NoError(t, err)
	}))

	order, err := r.CreateOrderFromCart(ctx, newOrder(customer))
	require.NoError(t, err)
	require.True(t, added)
	require.Len(t, order.Items, 1)
	assert.Equal(t, a.ID, order.Items[0].ProductID)

	cart, err := r.GetCart(ctx, customer)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, b.ID, cart[0].ProductID)
	assert.Equal(t, int64(2), cart[0].Quantity)
}

func TestCreateOrderFromCart_StockErrorWritesNothing(t *testing.T) {
	r := &GormRepo{DB: testutil.NewDB(t)}
	ctx := context.Background()
	customer := uuid.New()
	a := seedProduct(t, r, "1.00", 10)
	b := seedProduct(t, r, "1.00", 2)

	_, err := r.AddToCart(ctx, customer, a.ID, 2)
	require.NoError(t, err)
	_, err = r.AddToCart(ctx, customer, b.ID, 2)
	require.NoError(t, err)
	require.NoError(t, r.DecrementStock(ctx, b.ID, 1))

	_, err = r.CreateOrderFromCart(ctx, newOrder(customer))
	var se *StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, b.ID, se.ProductID)
	assert.Equal(t, int64(1), se.Available)

	fresh, err := r.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), fresh.Stock)

	var orders int64
	require.NoError(t, r.DB.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestDecrementStock_NeverNegative(t *testing.T) {
	r := &GormRepo{DB: testutil.NewDB(t)}
	ctx := context.Background()
	p := seedProduct(t, r, "1.00", 2)

	require.NoError(t, r.DecrementStock(ctx, p.ID, 2))
	err := r.DecrementStock(ctx, p.ID, 1)
	var se *StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(0), se.Available)

	_, err = r.GetProduct(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestApplyWebhook_DuplicateDelivery(t *testing.T) {
	r := &GormRepo{DB: testutil.NewDB(t)}
	ctx := context.Background()
	customer := uuid.New()
	p := seedProduct(t, r, "5.00", 5)
	_, err := r.AddToCart(ctx, customer, p.ID, 1)
	require.NoError(t, err)
	order, err := r.CreateOrderFromCart(ctx, newOrder(customer))
	require.NoError(t, err)

	pay := &models.PaymentTransaction{
		OrderID:        order.ID,
		UserID:         customer,
		Amount:         order.TotalAmount,
		Method:         models.PaymentMethodGateway,
		Status:         models.PaymentStatusPending,
		TransactionID:  "order_repo1",
		GatewayOrderID: "order_repo1",
	}
	require.NoError(t, r.CreatePayment(ctx, pay))
	assert.ErrorIs(t, r.CreatePayment(ctx, &models.PaymentTransaction{
		OrderID: order.ID, UserID: customer, Amount: order.TotalAmount,
		Method: models.PaymentMethodCOD, Status: models.PaymentStatusPending, TransactionID: "cod-dup",
	}), ErrDuplicate)

	evt := func() *models.WebhookEvent {
		return &models.WebhookEvent{EventID: "evt_repo", EventType: "payment.captured", GatewayOrderID: "order_repo1", ProcessedAt: time.Now().UTC()}
	}
	upd, err := r.ApplyWebhook(ctx, evt(), models.PaymentStatusCompleted, "pay_repo")
	require.NoError(t, err)
	assert.True(t, upd.Changed)
	assert.True(t, upd.OrderAdvanced)
	assert.Equal(t, "pay_repo", upd.Payment.GatewayPaymentID)

	_, err = r.ApplyWebhook(ctx, evt(), models.PaymentStatusCompleted, "pay_repo")
	assert.ErrorIs(t, err, ErrDuplicate)

	// The checkout callback lands after the webhook: nothing moves, but its signature is kept.
	again, err := r.CompletePayment(ctx, pay.ID, "pay_repo", "sig")
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.False(t, again.OrderAdvanced)
	assert.Equal(t, "sig", again.Payment.GatewaySignature)

	again, err = r.CompletePayment(ctx, pay.ID, "pay_other", "sig2")
	require.NoError(t, err)
	assert.Equal(t, "pay_repo", again.Payment.GatewayPaymentID)
	assert.Equal(t, "sig", again.Payment.GatewaySignature)

	refunded, err := r.MarkRefunded(ctx, pay.ID, "rfnd_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)
	_, err = r.MarkRefunded(ctx, pay.ID, "rfnd_2")
	assert.ErrorIs(t, err, ErrStaleState)
}

// Row locks only exist on postgres. Set SHOP_TEST_DATABASE_URL to run this against a
// disposable database.
func TestCreateOrderFromCart_ConcurrentPostgres(t *testing.T) {
	dsn := os.Getenv("SHOP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SHOP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := pkgdb.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })
	require.NoError(t, pkgdb.Migrate(ctx, db, models.All()...))

	r := &GormRepo{DB: db}
	p := seedProduct(t, r, "2.00", 10)

	const buyers = 8
	customers := make([]uuid.UUID, buyers)
	for i := range customers {
		customers[i] = uuid.New()
		_, err := r.AddToCart(ctx, customers[i], p.ID, 3)
		require.NoError(t, err)
	}

	var ok, short atomic.Int64
	var g errgroup.Group
	for _, c := range customers {
		g.Go(func() error {
			_, err := r.CreateOrderFromCart(ctx, newOrder(c))
			var se *StockError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &se):
				short.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(3), ok.Load())
	assert.Equal(t, int64(buyers-3), short.Load())

	fresh, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.Stock)
}
