package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/repo"
)

var (
	ErrValidation           = errors.New("validation")             // 400
	ErrNotFound             = errors.New("not found")              // 404
	ErrInsufficientStock    = errors.New("insufficient stock")     // 409
	ErrEmptyCart            = errors.New("cart is empty")          // 400
	ErrInvalidTransition    = errors.New("invalid transition")     // 409
	ErrPermissionDenied     = errors.New("permission denied")      // 403
	ErrPaymentAlreadyExists = errors.New("payment already exists") // 409
	ErrInvalidState         = errors.New("invalid state")          // 409
	ErrUnsupportedMethod    = errors.New("unsupported method")     // 422
	ErrGateway              = errors.New("gateway error")          // 502
	ErrInvalidSignature     = errors.New("invalid signature")      // 400
	ErrConflict             = errors.New("conflict")               // 409
	ErrUnavailable          = errors.New("unavailable")            // 503
)

// InsufficientStockError names the product that could not be fulfilled.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// fromRepo maps persistence errors onto the service taxonomy. what names the missing
// entity for NotFound.
func fromRepo(err error, what string) error {
	if err == nil {
		return nil
	}
	var se *repo.StockError
	switch {
	case errors.As(err, &se):
		return &InsufficientStockError{ProductID: se.ProductID, Requested: se.Requested, Available: se.Available}
	case errors.Is(err, repo.ErrEmptyCart):
		return ErrEmptyCart
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repo.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	}
	return err
}
