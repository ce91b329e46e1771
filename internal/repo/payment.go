package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

// PaymentUpdate describes what a reconciliation step actually changed. Redelivered or
// repeated confirmations come back with Changed == false.
type PaymentUpdate struct {
	Payment       *models.PaymentTransaction
	Changed       bool
	OrderAdvanced bool
}

func (r *GormRepo) CreatePayment(ctx context.Context, p *models.PaymentTransaction) error {
	if err := r.DB.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *GormRepo) PaymentExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.PaymentTransaction{}).Where("order_id = ?", orderID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRepo) GetPayment(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) GetPaymentByGatewayOrder(ctx context.Context, gatewayOrderID string) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	if err := r.DB.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) ListPayments(ctx context.Context, userID *uuid.UUID, page Page) ([]models.PaymentTransaction, int64, error) {
	scoped := func() *gorm.DB {
		q := r.DB.WithContext(ctx).Model(&models.PaymentTransaction{})
		if userID != nil {
			q = q.Where("user_id = ?", *userID)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.PaymentTransaction
	if err := scoped().Order("created_at DESC").Limit(page.Limit).Offset(page.Offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CompletePayment marks a pending or failed payment completed and moves its order from
// pending to processing. Both updates are conditional, so concurrent or repeated calls
// converge on the same state.
func (r *GormRepo) CompletePayment(ctx context.Context, id uuid.UUID, gatewayPaymentID, signature string) (*PaymentUpdate, error) {
	var upd *PaymentUpdate
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.PaymentTransaction
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			return err
		}
		var err error
		upd, err = completeTx(tx, &p, gatewayPaymentID, signature)
		return err
	})
	if err != nil {
		return nil, err
	}
	return upd, nil
}

// FailPayment only moves pending payments; completed or refunded ones are never regressed.
func (r *GormRepo) FailPayment(ctx context.Context, id uuid.UUID) (*PaymentUpdate, error) {
	var upd *PaymentUpdate
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.PaymentTransaction
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			return err
		}
		var err error
		upd, err = failTx(tx, &p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return upd, nil
}

func (r *GormRepo) MarkRefunded(ctx context.Context, id uuid.UUID, refundID string) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PaymentTransaction{}).
			Where("id = ? AND status = ?", id, models.PaymentStatusCompleted).
			Updates(map[string]any{"status": models.PaymentStatusRefunded, "refund_id": refundID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		return tx.Where("id = ?", id).First(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyWebhook records the delivery and applies its outcome in one transaction. A delivery
// already on record returns ErrDuplicate. An unknown gateway order is recorded and returns
// an update with a nil Payment.
func (r *GormRepo) ApplyWebhook(ctx context.Context, evt *models.WebhookEvent, outcome models.PaymentStatus, gatewayPaymentID string) (*PaymentUpdate, error) {
	upd := &PaymentUpdate{}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(evt).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		if evt.GatewayOrderID == "" {
			return nil
		}

		var p models.PaymentTransaction
		err := lockForUpdate(tx).Where("gateway_order_id = ?", evt.GatewayOrderID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		switch outcome {
		case models.PaymentStatusCompleted:
			upd, err = completeTx(tx, &p, gatewayPaymentID, "")
		case models.PaymentStatusFailed:
			upd, err = failTx(tx, &p)
		default:
			upd = &PaymentUpdate{Payment: &p}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return upd, nil
}

func completeTx(tx *gorm.DB, p *models.PaymentTransaction, gatewayPaymentID, signature string) (*PaymentUpdate, error) {
	fields := map[string]any{"status": models.PaymentStatusCompleted}
	if gatewayPaymentID != "" {
		fields["gateway_payment_id"] = gatewayPaymentID
	}
	if signature != "" {
		fields["gateway_signature"] = signature
	}

	res := tx.Model(&models.PaymentTransaction{}).
		Where("id = ? AND status IN ?", p.ID, []models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusFailed}).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}

	upd := &PaymentUpdate{Changed: res.RowsAffected > 0}
	if upd.Changed {
		ord := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", p.OrderID, models.OrderStatusPending).
			Update("status", models.OrderStatusProcessing)
		if ord.Error != nil {
			return nil, ord.Error
		}
		upd.OrderAdvanced = ord.RowsAffected > 0
	} else if err := backfillTx(tx, p.ID, gatewayPaymentID, signature); err != nil {
		return nil, err
	}

	var fresh models.PaymentTransaction
	if err := tx.Where("id = ?", p.ID).First(&fresh).Error; err != nil {
		return nil, err
	}
	upd.Payment = &fresh
	return upd, nil
}

// backfillTx stores proof of payment on a payment that was already completed by another
// path, e.g. the checkout callback arriving after the webhook. Values on record are kept.
func backfillTx(tx *gorm.DB, id uuid.UUID, gatewayPaymentID, signature string) error {
	fill := func(column, value string) error {
		if value == "" {
			return nil
		}
		return tx.Model(&models.PaymentTransaction{}).
			Where("id = ? AND status = ?", id, models.PaymentStatusCompleted).
			Where("("+column+" = '' OR "+column+" IS NULL)").
			Update(column, value).Error
	}
	if err := fill("gateway_payment_id", gatewayPaymentID); err != nil {
		return err
	}
	return fill("gateway_signature", signature)
}

func failTx(tx *gorm.DB, p *models.PaymentTransaction) (*PaymentUpdate, error) {
	res := tx.Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", p.ID, models.PaymentStatusPending).
		Update("status", models.PaymentStatusFailed)
	if res.Error != nil {
		return nil, res.Error
	}

	var fresh models.PaymentTransaction
	if err := tx.Where("id = ?", p.ID).First(&fresh).Error; err != nil {
		return nil, err
	}
	return &PaymentUpdate{Payment: &fresh, Changed: res.RowsAffected > 0}, nil
}
