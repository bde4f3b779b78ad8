package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/port"
)

// DefaultItemQuantity is the stock given to a new item when none is specified.
const DefaultItemQuantity = 1

// NewItem is the input of AddInventoryItem. A nil Quantity means DefaultItemQuantity.
type NewItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity *int
}

func validateStockFields(price *decimal.Decimal, quantity *int) error {
	if price != nil {
		if price.IsNegative() {
			return domain.InvalidArgumentf("price must not be negative, got %s", price)
		}
		if err := domain.CheckPriceRange(*price); err != nil {
			return err
		}
	}
	if quantity != nil && *quantity < 0 {
		return domain.InvalidArgumentf("quantity must not be negative, got %d", *quantity)
	}
	return nil
}

// AddInventoryItem creates an inventory row. Names are unique ignoring case.
func (s *LedgerService) AddInventoryItem(ctx context.Context, in NewItem) (*domain.InventoryItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.InvalidArgumentf("item name is required")
	}
	qty := DefaultItemQuantity
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	if err := validateStockFields(&in.Price, &qty); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var created *domain.InventoryItem
	err := s.repo.WithTx(ctx, func(tx port.LedgerTx) error {
		existing, err := tx.FindItemByName(ctx, name)
		switch {
		case err == nil:
			return fmt.Errorf("%w: an item named %q already exists", domain.ErrConflict, existing.Name)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		created, err = tx.InsertItem(ctx, domain.InventoryItem{Name: name, Quantity: qty, Price: in.Price})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inventory item added", zap.Int64("item_id", created.ID), zap.String("item", created.Name), zap.Int("quantity", created.Quantity))
	return created, nil
}

// UpdateInventoryItem applies the non-nil fields of patch to the item under a row lock.
func (s *LedgerService) UpdateInventoryItem(ctx context.Context, itemID int64, patch domain.ItemPatch) (*domain.InventoryItem, error) {
	if itemID <= 0 {
		return nil, domain.InvalidArgumentf("item id must be positive, got %d", itemID)
	}
	if patch.Empty() {
		return nil, domain.InvalidArgumentf("nothing to update: provide item_name, price or quantity")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, domain.InvalidArgumentf("item name must not be empty")
	}
	if err := validateStockFields(patch.Price, patch.Quantity); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var updated *domain.InventoryItem
	err := s.repo.WithTx(ctx, func(tx port.LedgerTx) error {
		item, err := tx.LockItem(ctx, domain.ItemByID(itemID))
		if err != nil {
			return err
		}

		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			other, err := tx.FindItemByName(ctx, name)
			switch {
			case err == nil && other.ID != item.ID:
				return fmt.Errorf("%w: an item named %q already exists", domain.ErrConflict, other.Name)
			case err != nil && !errors.Is(err, domain.ErrNotFound):
				return err
			}
			item.Name = name
		}
		if patch.Price != nil {
			item.Price = *patch.Price
		}
		if patch.Quantity != nil {
			item.Quantity = *patch.Quantity
		}

		updated, err = tx.UpdateItem(ctx, *item)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inventory item updated", zap.Int64("item_id", updated.ID), zap.String("item", updated.Name))
	return updated, nil
}

// RemoveInventoryItem deletes an item that no sale refers to by name.
func (s *LedgerService) RemoveInventoryItem(ctx context.Context, itemID int64) (*domain.InventoryItem, error) {
	if itemID <= 0 {
		return nil, domain.InvalidArgumentf("item id must be positive, got %d", itemID)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var removed *domain.InventoryItem
	err := s.repo.WithTx(ctx, func(tx port.LedgerTx) error {
		item, err := tx.LockItem(ctx, domain.ItemByID(itemID))
		if err != nil {
			return err
		}

		refs, err := tx.CountSalesFor(ctx, item.Name)
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: item %q is referenced by %d sales; delete the sales first", domain.ErrConflict, item.Name, refs)
		}

		if err := tx.DeleteItem(ctx, item.ID); err != nil {
			return err
		}
		removed = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inventory item removed", zap.Int64("item_id", removed.ID), zap.String("item", removed.Name))
	return removed, nil
}

// ListInventory returns every item ordered by name.
func (s *LedgerService) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.ListInventory(ctx)
}

// StockLevels returns in-stock items, largest quantity first.
func (s *LedgerService) StockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.StockLevels(ctx)
}

// ItemPrice looks up the list price of an item by case-insensitive name.
func (s *LedgerService) ItemPrice(ctx context.Context, name string) (decimal.Decimal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return decimal.Zero, domain.InvalidArgumentf("item name is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var price decimal.Decimal
	err := s.repo.WithTx(ctx, func(tx port.LedgerTx) error {
		item, err := tx.FindItemByName(ctx, name)
		if err != nil {
			return err
		}
		price = item.Price
		return nil
	})
	return price, err
}
