package httpserver

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

const (
	headerWebhookSignature = "X-Razorpay-Signature"
	headerWebhookEventID   = "X-Razorpay-Event-Id"
	maxWebhookBody         = 1 << 20
)

type PaymentHTTP struct {
	Svc *service.PaymentService
}

func (h *PaymentHTTP) Initiate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.initiate")

	actor, err := principal(c)
	if err != nil {
		return err
	}

	var req transport.InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("initiate_payment_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	intent, err := h.Svc.InitiatePayment(ctx, actor, req)
	if err != nil {
		return fail(l, "initiate_payment_error", err)
	}

	l.Info("initiate_payment_success", "payment_id", intent.PaymentID, "method", intent.Method)
	return c.JSON(http.StatusCreated, intent)
}

func (h *PaymentHTTP) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.verify")

	actor, err := principal(c)
	if err != nil {
		return err
	}

	var req transport.VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("verify_payment_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.VerifyPayment(ctx, actor, req)
	if err != nil {
		return fail(l, "verify_payment_error", err)
	}

	l.Info("verify_payment_success", "payment_id", res.PaymentID)
	return c.JSON(http.StatusOK, res)
}

// Webhook is called by the gateway, not by a user. It carries no session and is trusted
// only through its signature header.
func (h *PaymentHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.webhook")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		l.Warn("webhook_error", "status", 400, "reason", "unreadable body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	ack, err := h.Svc.HandleWebhook(ctx, body,
		c.Request().Header.Get(headerWebhookSignature),
		c.Request().Header.Get(headerWebhookEventID),
	)
	if err != nil {
		return fail(l, "webhook_error", err)
	}

	l.Info("webhook_processed", "status", ack.Status, "duplicate", ack.Duplicate)
	return c.JSON(http.StatusOK, ack)
}

func (h *PaymentHTTP) Refund(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.refund")

	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("refund_payment_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	var req transport.RefundPaymentRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refund_payment_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	p, err := h.Svc.RefundPayment(ctx, actor, id, req)
	if err != nil {
		return fail(l, "refund_payment_error", err)
	}

	l.Info("refund_payment_success", "payment_id", p.ID, "refund_id", p.RefundID)
	return c.JSON(http.StatusOK, p)
}

func (h *PaymentHTTP) Details(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.details")

	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("payment_details_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	d, err := h.Svc.FetchDetails(ctx, actor, id)
	if err != nil {
		return fail(l, "payment_details_error", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *PaymentHTTP) GetPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.get")

	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("get_payment_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	p, err := h.Svc.GetPayment(ctx, actor, id)
	if err != nil {
		return fail(l, "get_payment_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PaymentHTTP) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.list")

	actor, err := principal(c)
	if err != nil {
		return err
	}

	page, p := pageFromQuery(c)
	payments, total, err := h.Svc.ListPayments(ctx, actor, p)
	if err != nil {
		return fail(l, "list_payments_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": payments,
		"meta": pageMeta(page, p, total),
	})
}
