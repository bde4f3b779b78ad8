package port

import (
	"context"

	"github.com/katalis/laku/internal/core/domain"
)

// LedgerTx is the set of store operations available inside one transaction.
type LedgerTx interface {
	// LockItem selects an inventory row by id or case-insensitive name and
	// holds an exclusive lock on it until the transaction ends.
	// Returns domain.ErrNotFound when nothing matches.
	LockItem(ctx context.Context, ref domain.ItemRef) (*domain.InventoryItem, error)

	// FindItemByName looks up a row by case-insensitive name without locking.
	FindItemByName(ctx context.Context, name string) (*domain.InventoryItem, error)

	InsertItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	UpdateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	DeleteItem(ctx context.Context, itemID int64) error

	// DecrementStock lowers the quantity of a locked row and returns the new quantity.
	DecrementStock(ctx context.Context, itemID int64, quantity int) (int, error)

	InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, saleID int64) (*domain.Sale, error)
	DeleteAllSales(ctx context.Context) (int64, error)

	// CountSalesFor counts sales rows whose item name matches case-insensitively.
	CountSalesFor(ctx context.Context, itemName string) (int64, error)
	SalesTotals(ctx context.Context) (domain.SalesTotals, error)
}

// LedgerRepository is the Ledger Store. It owns both tables.
type LedgerRepository interface {
	// WithTx runs fn inside a transaction that is committed when fn returns
	// nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(tx LedgerTx) error) error

	ListInventory(ctx context.Context) ([]domain.InventoryItem, error)
	StockLevels(ctx context.Context) ([]domain.StockLevel, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	Stats(ctx context.Context) (StoreStats, error)
}

// StoreStats is a cheap health snapshot of the store.
type StoreStats struct {
	Driver     string       `json:"driver"`
	Version    string       `json:"version"`
	Items      int64        `json:"items"`
	Sales      int64        `json:"sales"`
	LatestSale *domain.Sale `json:"latest_sale,omitempty"`
}
