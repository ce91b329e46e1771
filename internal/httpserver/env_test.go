package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/gateway/gatewaytest"
	"github.com/Skotchmaster/marketplace/internal/idempotency"
	"github.com/Skotchmaster/marketplace/internal/invoice"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/testutil"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/identity"
	middleware "github.com/Skotchmaster/marketplace/pkg/middleware/auth"
)

var testJWTSecret = []byte("handler-test-secret")

type testEnv struct {
	T       *testing.T
	E       *echo.Echo
	Repo    *repo.GormRepo
	GW      *gatewaytest.Fake
	Events  *events.Recorder
	Order   *OrderHTTP
	Payment *PaymentHTTP
	Cart    *CartHTTP
	Catalog *CatalogHTTP
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	r := &repo.GormRepo{DB: testutil.NewDB(t)}
	rec := &events.Recorder{}
	gw := gatewaytest.New()

	env := &testEnv{
		T:      t,
		E:      echo.New(),
		Repo:   r,
		GW:     gw,
		Events: rec,
	}
	env.Order = &OrderHTTP{Svc: &service.OrderService{Repo: r, Events: rec, Invoices: invoice.TextRenderer{StoreName: "Test Store"}}}
	env.Payment = &PaymentHTTP{Svc: &service.PaymentService{
		Repo:      r,
		Gateway:   gw,
		Dedup:     idempotency.NewMemoryStore(0),
		Events:    rec,
		Currency:  "INR",
		StoreName: "Test Store",
	}}
	env.Cart = &CartHTTP{Svc: &service.CartService{Repo: r}}
	env.Catalog = &CatalogHTTP{Svc: &service.CatalogService{Repo: r}}
	return env
}

// doJSONRequest builds an echo context for body and, unless p is zero, authenticates it as p.
func (env *testEnv) doJSONRequest(method, path string, body any, p identity.Principal) (*httptest.ResponseRecorder, echo.Context) {
	env.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if p.Valid() {
		middleware.SetPrincipal(c, p)
	}
	return rec, c
}

func withID(c echo.Context, id uuid.UUID) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id.String())
	return c
}

func newPrincipal(role identity.Role) identity.Principal {
	return identity.Principal{UserID: uuid.New(), Role: role, Name: "Grace Hopper", Email: "grace@example.com"}
}

func (env *testEnv) seedProduct(seller identity.Principal, price string, stock int64) *models.Product {
	env.T.Helper()
	p, err := env.Catalog.Svc.CreateProduct(context.Background(), seller, transport.CreateProductRequest{
		Name:  "item-" + uuid.NewString()[:8],
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	require.NoError(env.T, err)
	return p
}

func (env *testEnv) seedOrder(price string, stock, qty int64) (identity.Principal, *models.Order) {
	env.T.Helper()
	seller := newPrincipal(identity.RoleSeller)
	customer := newPrincipal(identity.RoleCustomer)
	p := env.seedProduct(seller, price, stock)

	_, err := env.Cart.Svc.AddToCart(context.Background(), customer.UserID, transport.AddToCartRequest{ProductID: p.ID, Quantity: qty})
	require.NoError(env.T, err)
	o, err := env.Order.Svc.CreateOrder(context.Background(), customer, transport.CreateOrderRequest{
		ShippingAddress: "42 Harbour Rd",
		Phone:           "+10000000001",
	})
	require.NoError(env.T, err)
	return customer, o
}

func requireHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected *echo.HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
	return he
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
