package service

import (
	"fmt"

	"go-pos-ws/pkg/money"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidArgument     = money.ErrInvalidArgument
	ErrInvalidQuantity     = errors.Wrap(ErrInvalidArgument, "quantity must be at least 1")
	ErrEmptyCart           = errors.Wrap(ErrInvalidArgument, "cart is empty")
	ErrProductNotFound     = errors.New("product not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOutOfStock          = errors.New("out of stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrForbidden           = errors.New("operation not permitted")
	ErrStoreFailure        = errors.New("store unavailable")
)

// StockError names the product that could not cover a requested quantity.
// It always matches ErrInsufficientStock, and also ErrOutOfStock when raised
// while adding a single unit to the cart.
type StockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
	Available   int
	OutOfStock  bool
}

func (e *StockError) Error() string {
	if e.OutOfStock && e.Available == 0 {
		return fmt.Sprintf("%s is out of stock", e.ProductName)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock || (e.OutOfStock && target == ErrOutOfStock)
}

// StoreError wraps an unexpected persistence failure. Nothing was committed;
// the caller may retry the whole operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

// storeFailure passes domain errors through untouched and wraps everything
// else, so callers see either a taxonomy error or ErrStoreFailure.
func storeFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, domain := range []error{
		ErrInvalidArgument, ErrProductNotFound, ErrCategoryNotFound, ErrUserNotFound,
		ErrInsufficientStock, ErrInsufficientPayment, ErrForbidden, ErrStoreFailure,
	} {
		if errors.Is(err, domain) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}
