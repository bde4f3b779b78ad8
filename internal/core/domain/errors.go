package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrStoreUnavailable  = errors.New("store unavailable")

	ErrDuplicateRequest = fmt.Errorf("%w: duplicate request", ErrConflict)
)

// InvalidArgumentf builds an error matching ErrInvalidArgument.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// InsufficientStockError reports a reservation larger than the available stock.
type InsufficientStockError struct {
	ItemID    int64
	ItemName  string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: available %d, requested %d", e.ItemName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ItemNotFoundError reports a lookup that matched no inventory row.
type ItemNotFoundError struct {
	Ref ItemRef
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %q not found in inventory", e.Ref.String())
}

func (e *ItemNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StoreError wraps a failure of the underlying store (connection, transaction, query).
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}
