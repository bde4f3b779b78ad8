package service

import (
	"context"

	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/port"
)

// reserveStock locks the matching inventory row for the rest of tx and
// checks that quantity units are available. The caller decrements within
// the same transaction.
func reserveStock(ctx context.Context, tx port.LedgerTx, ref domain.ItemRef, quantity int) (domain.StockHandle, error) {
	item, err := tx.LockItem(ctx, ref)
	if err != nil {
		return domain.StockHandle{}, err
	}

	if item.Quantity < quantity {
		return domain.StockHandle{}, &domain.InsufficientStockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: item.Quantity,
			Requested: quantity,
		}
	}

	return domain.StockHandle{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Available: item.Quantity,
		ListPrice: item.Price,
	}, nil
}
