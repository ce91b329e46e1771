package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/gateway"
	"github.com/Skotchmaster/marketplace/internal/idempotency"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/identity"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	defaultRefundReason   = "Customer request"

	webhookPaymentCaptured = "payment.captured"
	webhookPaymentFailed   = "payment.failed"
)

var hundred = decimal.NewFromInt(100)

type PaymentService struct {
	Repo    *repo.GormRepo
	Gateway gateway.Gateway
	// Dedup short-circuits webhook redeliveries. The webhook_events table stays authoritative.
	Dedup  idempotency.Store
	Events events.Publisher

	Currency       string
	StoreName      string
	GatewayTimeout time.Duration
}

// MinorUnits converts an amount to the gateway's integer unit, truncating.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).IntPart()
}

// CODTransactionID is the local transaction id of a cash on delivery payment.
func CODTransactionID(orderID, userID uuid.UUID) string {
	return fmt.Sprintf("COD_%s_%s", orderID, userID)
}

// InitiatePayment creates the single payment record of an order. For gateway payments the
// remote order is created first and nothing is stored if that fails.
func (s *PaymentService) InitiatePayment(ctx context.Context, actor identity.Principal, req transport.InitiatePaymentRequest) (*transport.PaymentIntentResponse, error) {
	if req.OrderID == uuid.Nil {
		return nil, fmt.Errorf("%w: order_id required", ErrValidation)
	}
	method, ok := models.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if !ok {
		return nil, fmt.Errorf("%w: payment_method %q", ErrUnsupportedMethod, req.PaymentMethod)
	}

	order, err := s.Repo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, fromRepo(err, "order")
	}
	if order.CustomerID != actor.UserID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order is cancelled", ErrInvalidState)
	}

	exists, err := s.Repo.PaymentExistsForOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrPaymentAlreadyExists
	}

	switch method {
	case models.PaymentMethodCOD:
		return s.initiateCOD(ctx, actor, order)
	case models.PaymentMethodGateway:
		return s.initiateGateway(ctx, actor, order)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

func (s *PaymentService) initiateCOD(ctx context.Context, actor identity.Principal, order *models.Order) (*transport.PaymentIntentResponse, error) {
	p := &models.PaymentTransaction{
		OrderID:       order.ID,
		UserID:        actor.UserID,
		Amount:        order.TotalAmount,
		Method:        models.PaymentMethodCOD,
		Status:        models.PaymentStatusPending,
		TransactionID: CODTransactionID(order.ID, actor.UserID),
	}
	if err := s.Repo.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrPaymentAlreadyExists
		}
		return nil, err
	}

	s.publish(ctx, paymentEvent(events.PaymentInitiated, p, "user"))
	return &transport.PaymentIntentResponse{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		Method:        p.Method,
		Status:        p.Status,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
	}, nil
}

func (s *PaymentService) initiateGateway(ctx context.Context, actor identity.Principal, order *models.Order) (*transport.PaymentIntentResponse, error) {
	l := logging.FromContext(ctx)
	amountMinor := MinorUnits(order.TotalAmount)
	currency := s.currency()

	gctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	intent, err := s.Gateway.CreateIntent(gctx, gateway.IntentRequest{
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     order.ID.String(),
		Notes: map[string]string{
			"order_id": order.ID.String(),
			"customer": customerLabel(actor),
		},
	})
	if err != nil {
		l.Warn("gateway_create_order_failed", "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	p := &models.PaymentTransaction{
		OrderID:        order.ID,
		UserID:         actor.UserID,
		Amount:         order.TotalAmount,
		Method:         models.PaymentMethodGateway,
		Status:         models.PaymentStatusPending,
		TransactionID:  intent.ID,
		GatewayOrderID: intent.ID,
		GatewayNotes: datatypes.JSONMap{
			"receipt":      order.ID.String(),
			"currency":     currency,
			"amount_minor": amountMinor,
		},
	}
	if err := s.Repo.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			l.Warn("payment_initiate_race", "order_id", order.ID, "gateway_order_id", intent.ID)
			return nil, ErrPaymentAlreadyExists
		}
		return nil, err
	}

	s.publish(ctx, paymentEvent(events.PaymentInitiated, p, "user"))
	return &transport.PaymentIntentResponse{
		PaymentID:      p.ID,
		OrderID:        p.OrderID,
		Method:         p.Method,
		Status:         p.Status,
		TransactionID:  p.TransactionID,
		Amount:         p.Amount,
		GatewayOrderID: intent.ID,
		KeyID:          s.Gateway.KeyID(),
		AmountMinor:    amountMinor,
		Currency:       currency,
		Name:           s.StoreName,
		Description:    fmt.Sprintf("Order #%s", order.ID),
		Prefill: &transport.Prefill{
			Name:    actor.Name,
			Email:   actor.Email,
			Contact: order.Phone,
		},
	}, nil
}

// VerifyPayment checks the checkout callback signature. A valid signature completes the
// payment and advances a pending order; repeating it changes nothing. A forged one fails a
// pending payment and leaves the order alone.
func (s *PaymentService) VerifyPayment(ctx context.Context, actor identity.Principal, req transport.VerifyPaymentRequest) (*transport.VerifyPaymentResponse, error) {
	l := logging.FromContext(ctx)
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" {
		return nil, fmt.Errorf("%w: razorpay_order_id and razorpay_payment_id required", ErrValidation)
	}

	p, err := s.Repo.GetPaymentByGatewayOrder(ctx, req.RazorpayOrderID)
	if err != nil {
		return nil, fromRepo(err, "payment")
	}
	if p.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: payment", ErrNotFound)
	}

	if err := s.Gateway.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature); err != nil {
		if p.Status == models.PaymentStatusPending {
			upd, fErr := s.Repo.FailPayment(ctx, p.ID)
			if fErr != nil {
				return nil, fErr
			}
			if upd.Changed {
				s.publish(ctx, paymentEvent(events.PaymentFailed, upd.Payment, "verify"))
			}
		}
		l.Warn("payment_signature_mismatch", "payment_id", p.ID, "gateway_order_id", req.RazorpayOrderID)
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	if p.Status == models.PaymentStatusRefunded {
		return nil, fmt.Errorf("%w: payment already refunded", ErrInvalidState)
	}

	upd, err := s.Repo.CompletePayment(ctx, p.ID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		return nil, fromRepo(err, "payment")
	}
	s.afterCompletion(ctx, upd, actor.UserID, "verify")

	order, err := s.Repo.GetOrder(ctx, upd.Payment.OrderID)
	if err != nil {
		return nil, fromRepo(err, "order")
	}
	return &transport.VerifyPaymentResponse{
		PaymentID:   upd.Payment.ID,
		OrderID:     order.ID,
		Status:      upd.Payment.Status,
		OrderStatus: order.Status,
	}, nil
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook processes a gateway notification. It trusts nothing but the signature over
// the raw body. eventID is the delivery id header; when empty the body hash identifies
// the delivery.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (*transport.WebhookAck, error) {
	l := logging.FromContext(ctx)

	if err := s.Gateway.VerifyWebhookSignature(body, signature); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload", ErrValidation)
	}

	var outcome models.PaymentStatus
	switch env.Event {
	case webhookPaymentCaptured:
		outcome = models.PaymentStatusCompleted
	case webhookPaymentFailed:
		outcome = models.PaymentStatusFailed
	default:
		l.Info("webhook_ignored", "event", env.Event)
		return &transport.WebhookAck{Status: "ignored"}, nil
	}

	key := strings.TrimSpace(eventID)
	if key == "" {
		sum := sha256.Sum256(body)
		key = hex.EncodeToString(sum[:])
	}

	if s.Dedup != nil {
		seen, err := s.Dedup.Seen(ctx, key)
		if err != nil {
			l.Warn("webhook_dedup_lookup_failed", "event_id", key, "error", err)
		} else if seen {
			return &transport.WebhookAck{Status: "ok", Duplicate: true}, nil
		}
	}

	entity := env.Payload.Payment.Entity
	upd, err := s.Repo.ApplyWebhook(ctx, &models.WebhookEvent{
		EventID:        key,
		EventType:      env.Event,
		GatewayOrderID: entity.OrderID,
		Payload:        datatypes.JSON(body),
		ProcessedAt:    time.Now().UTC(),
	}, outcome, entity.ID)
	if errors.Is(err, repo.ErrDuplicate) {
		s.markSeen(ctx, key)
		return &transport.WebhookAck{Status: "ok", Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}
	s.markSeen(ctx, key)

	if upd.Payment == nil {
		l.Info("webhook_unknown_order", "event", env.Event, "gateway_order_id", entity.OrderID)
		return &transport.WebhookAck{Status: "ok"}, nil
	}

	switch outcome {
	case models.PaymentStatusCompleted:
		s.afterCompletion(ctx, upd, uuid.Nil, "webhook")
	case models.PaymentStatusFailed:
		if upd.Changed {
			s.publish(ctx, paymentEvent(events.PaymentFailed, upd.Payment, "webhook"))
		}
	}
	return &transport.WebhookAck{Status: "ok"}, nil
}

// RefundPayment reverses a completed gateway payment. Local state changes only after the
// gateway confirms the refund.
func (s *PaymentService) RefundPayment(ctx context.Context, actor identity.Principal, paymentID uuid.UUID, req transport.RefundPaymentRequest) (*models.PaymentTransaction, error) {
	l := logging.FromContext(ctx)
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", ErrPermissionDenied)
	}

	p, err := s.Repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fromRepo(err, "payment")
	}
	if p.Status != models.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidState, p.Status)
	}
	if p.Method == models.PaymentMethodCOD {
		return nil, fmt.Errorf("%w: cash on delivery cannot be refunded online", ErrUnsupportedMethod)
	}
	if p.GatewayPaymentID == "" {
		return nil, fmt.Errorf("%w: no gateway payment on record", ErrInvalidState)
	}

	amount := p.Amount
	if req.Amount != nil {
		amount = *req.Amount
	}
	minor := MinorUnits(amount)
	if minor <= 0 || amount.GreaterThan(p.Amount) {
		return nil, fmt.Errorf("%w: refund amount must be at least 0.01 and <= %s", ErrValidation, p.Amount.StringFixed(2))
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultRefundReason
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	refund, err := s.Gateway.Refund(gctx, p.GatewayPaymentID, gateway.RefundRequest{
		AmountMinor: minor,
		Reason:      reason,
	})
	if err != nil {
		l.Warn("gateway_refund_failed", "payment_id", p.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	updated, err := s.Repo.MarkRefunded(ctx, p.ID, refund.ID)
	if err != nil {
		if errors.Is(err, repo.ErrStaleState) {
			l.Error("refund_state_lost", "payment_id", p.ID, "refund_id", refund.ID)
			return nil, fmt.Errorf("%w: payment changed during refund", ErrInvalidState)
		}
		return nil, err
	}

	evt := paymentEvent(events.PaymentRefunded, updated, "admin")
	evt.Amount = amount
	s.publish(ctx, evt)
	return updated, nil
}

// FetchDetails returns the gateway's record of a payment, or a local summary for cash
// on delivery.
func (s *PaymentService) FetchDetails(ctx context.Context, actor identity.Principal, paymentID uuid.UUID) (*transport.PaymentDetailsResponse, error) {
	p, err := s.GetPayment(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}

	out := &transport.PaymentDetailsResponse{
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		Method:        p.Method,
		Status:        string(p.Status),
		Amount:        p.Amount,
	}
	if p.Method == models.PaymentMethodCOD {
		out.Source = "local"
		return out, nil
	}
	if p.GatewayPaymentID == "" {
		return nil, fmt.Errorf("%w: payment not captured yet", ErrInvalidState)
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	remote, err := s.Gateway.FetchPayment(gctx, p.GatewayPaymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	out.Source = "gateway"
	out.Status = remote.Status
	out.Remote = remote
	return out, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, actor identity.Principal, paymentID uuid.UUID) (*models.PaymentTransaction, error) {
	p, err := s.Repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fromRepo(err, "payment")
	}
	if !actor.IsAdmin() && p.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: payment", ErrNotFound)
	}
	return p, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, actor identity.Principal, page repo.Page) ([]models.PaymentTransaction, int64, error) {
	if actor.IsAdmin() {
		return s.Repo.ListPayments(ctx, nil, page)
	}
	return s.Repo.ListPayments(ctx, &actor.UserID, page)
}

func (s *PaymentService) afterCompletion(ctx context.Context, upd *repo.PaymentUpdate, actorID uuid.UUID, source string) {
	if !upd.Changed {
		return
	}
	p := upd.Payment
	s.publish(ctx, paymentEvent(events.PaymentCompleted, p, source))

	if !upd.OrderAdvanced {
		logging.FromContext(ctx).Warn("payment_completed_order_not_pending", "payment_id", p.ID, "order_id", p.OrderID)
		return
	}
	if s.Events == nil {
		return
	}
	evt := events.OrderEvent{
		Type:       events.OrderStatusChanged,
		OrderID:    p.OrderID,
		CustomerID: p.UserID,
		ActorID:    actorID,
		From:       string(models.OrderStatusPending),
		To:         string(models.OrderStatusProcessing),
		Total:      p.Amount,
		At:         time.Now().UTC(),
	}
	if err := s.Events.Publish(ctx, events.TopicOrders, p.OrderID.String(), evt); err != nil {
		logging.FromContext(ctx).Warn("order_event_publish_failed", "type", evt.Type, "order_id", p.OrderID, "error", err)
	}
}

func (s *PaymentService) publish(ctx context.Context, evt events.PaymentEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, events.TopicPayments, evt.OrderID.String(), evt); err != nil {
		logging.FromContext(ctx).Warn("payment_event_publish_failed", "type", evt.Type, "payment_id", evt.PaymentID, "error", err)
	}
}

func (s *PaymentService) markSeen(ctx context.Context, key string) {
	if s.Dedup == nil {
		return
	}
	if err := s.Dedup.Mark(ctx, key); err != nil {
		logging.FromContext(ctx).Warn("webhook_dedup_mark_failed", "event_id", key, "error", err)
	}
}

func (s *PaymentService) currency() string {
	if s.Currency == "" {
		return "INR"
	}
	return s.Currency
}

func (s *PaymentService) timeout() time.Duration {
	if s.GatewayTimeout <= 0 {
		return defaultGatewayTimeout
	}
	return s.GatewayTimeout
}

func paymentEvent(typ string, p *models.PaymentTransaction, source string) events.PaymentEvent {
	return events.PaymentEvent{
		Type:           typ,
		PaymentID:      p.ID,
		OrderID:        p.OrderID,
		UserID:         p.UserID,
		Method:         string(p.Method),
		Status:         string(p.Status),
		Amount:         p.Amount,
		GatewayOrderID: p.GatewayOrderID,
		Source:         source,
		At:             time.Now().UTC(),
	}
}

func customerLabel(p identity.Principal) string {
	if p.Name != "" {
		return p.Name
	}
	if p.Email != "" {
		return p.Email
	}
	return p.UserID.String()
}
