package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/pkg/authclient"
	"github.com/Skotchmaster/marketplace/pkg/identity"
	middleware "github.com/Skotchmaster/marketplace/pkg/middleware/auth"
)

type Deps struct {
	OrderHandler   *OrderHTTP
	PaymentHandler *PaymentHTTP
	CartHandler    *CartHTTP
	CatalogHandler *CatalogHTTP
	JWTSecret      []byte
	AuthClient     *authclient.Client
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)
	api := e.Group("/api/v1")

	// Gateway callbacks carry no session; the handler checks the signature.
	api.POST("/payments/webhook", d.PaymentHandler.Webhook)

	catalog := api.Group("/catalog")
	catalog.GET("/products/:id", d.CatalogHandler.GetProduct)
	catalog.GET("/categories", d.CatalogHandler.ListCategories)
	catalog.POST("/products", d.CatalogHandler.CreateProduct, authMW.RequireRole(identity.RoleSeller, identity.RoleAdmin))
	catalog.PATCH("/products/:id", d.CatalogHandler.PatchProduct, authMW.RequireRole(identity.RoleSeller, identity.RoleAdmin))
	catalog.POST("/categories", d.CatalogHandler.CreateCategory, authMW.RequireAdmin)

	cart := api.Group("/cart", authMW.RequireAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("/items", d.CartHandler.AddToCart)
	cart.PATCH("/items/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)
	cart.DELETE("", d.CartHandler.ClearCart)

	orders := api.Group("/orders", authMW.RequireAuth)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)
	orders.GET("/:id/invoice", d.OrderHandler.Invoice)
	orders.GET("/:id/history", d.OrderHandler.History)
	orders.PATCH("/:id/status", d.OrderHandler.UpdateStatus, authMW.RequireRole(identity.RoleSeller, identity.RoleAdmin))

	payments := api.Group("/payments", authMW.RequireAuth)
	payments.POST("", d.PaymentHandler.Initiate)
	payments.POST("/verify", d.PaymentHandler.Verify)
	payments.GET("", d.PaymentHandler.ListPayments)
	payments.GET("/:id", d.PaymentHandler.GetPayment)
	payments.GET("/:id/details", d.PaymentHandler.Details)
	payments.POST("/:id/refund", d.PaymentHandler.Refund, authMW.RequireAdmin)
}
