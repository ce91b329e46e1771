package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/pkg/identity"
	middleware "github.com/Skotchmaster/marketplace/pkg/middleware/auth"
)

var statusBySentinel = []struct {
	err    error
	status int
	reason string
}{
	{service.ErrValidation, http.StatusBadRequest, "invalid request"},
	{service.ErrEmptyCart, http.StatusBadRequest, "cart is empty"},
	{service.ErrInvalidSignature, http.StatusBadRequest, "signature verification failed"},
	{service.ErrPermissionDenied, http.StatusForbidden, "permission denied"},
	{service.ErrNotFound, http.StatusNotFound, "not found"},
	{service.ErrInsufficientStock, http.StatusConflict, "insufficient stock"},
	{service.ErrInvalidTransition, http.StatusConflict, "invalid status transition"},
	{service.ErrPaymentAlreadyExists, http.StatusConflict, "payment already exists for this order"},
	{service.ErrInvalidState, http.StatusConflict, "invalid payment state"},
	{service.ErrConflict, http.StatusConflict, "conflict"},
	{service.ErrUnsupportedMethod, http.StatusUnprocessableEntity, "unsupported payment method"},
	{service.ErrGateway, http.StatusBadGateway, "payment gateway error"},
	{service.ErrUnavailable, http.StatusServiceUnavailable, "temporarily unavailable"},
}

// fail logs err under event and turns it into the matching HTTP error. Business errors
// keep their message; anything unrecognised is a 500 with a generic body.
func fail(l *slog.Logger, event string, err error) error {
	for _, m := range statusBySentinel {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.status >= 500 {
			l.Error(event, "status", m.status, "reason", m.reason, "error", err)
		} else {
			l.Warn(event, "status", m.status, "reason", m.reason, "error", err)
		}

		var se *service.InsufficientStockError
		if errors.As(err, &se) {
			return echo.NewHTTPError(m.status, map[string]any{
				"error":      m.reason,
				"product_id": se.ProductID,
				"requested":  se.Requested,
				"available":  se.Available,
			})
		}
		if m.status >= 500 {
			return echo.NewHTTPError(m.status, m.reason)
		}
		return echo.NewHTTPError(m.status, err.Error())
	}

	l.Error(event, "status", 500, "reason", "internal error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func principal(c echo.Context) (identity.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return identity.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return p, nil
}
