package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	ErrDuplicate = errors.New("duplicate")
	// ErrStaleState means a conditional update found the row in another state.
	ErrStaleState = errors.New("stale state")
)

type GormRepo struct {
	DB *gorm.DB
}

// StockError reports the first cart line that cannot be fulfilled.
type StockError struct {
	ProductID uuid.UUID
	Requested int64
	Available int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type Page struct {
	Limit  int
	Offset int
}
