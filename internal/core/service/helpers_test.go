package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/katalis/laku/internal/adapter/storage"
	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/port"
)

var fixedNow = time.Date(2025, 3, 14, 9, 15, 0, 0, time.UTC)

func setupStore(t *testing.T) *storage.SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	store := storage.NewSQLiteAdapter(db, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func setupService(t *testing.T, opts ...Option) (*LedgerService, *storage.SQLStore) {
	t.Helper()

	store := setupStore(t)
	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithLocation(time.UTC),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewLedgerService(store, append(base, opts...)...), store
}

func addItem(t *testing.T, svc *LedgerService, name string, qty int, price string) *domain.InventoryItem {
	t.Helper()

	item, err := svc.AddInventoryItem(context.Background(), NewItem{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: &qty,
	})
	require.NoError(t, err)
	return item
}

func stockOf(t *testing.T, svc *LedgerService, name string) int {
	t.Helper()

	items, err := svc.ListInventory(context.Background())
	require.NoError(t, err)
	for _, item := range items {
		if item.Name == name {
			return item.Quantity
		}
	}
	t.Fatalf("item %q not in inventory", name)
	return 0
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(v int) *int { return &v }

// untouchableRepo fails the test on any store access.
type untouchableRepo struct {
	t *testing.T
}

func (r untouchableRepo) WithTx(context.Context, func(port.LedgerTx) error) error {
	r.t.Fatal("store accessed")
	return nil
}

func (r untouchableRepo) ListInventory(context.Context) ([]domain.InventoryItem, error) {
	r.t.Fatal("store accessed")
	return nil, nil
}

func (r untouchableRepo) StockLevels(context.Context) ([]domain.StockLevel, error) {
	r.t.Fatal("store accessed")
	return nil, nil
}

func (r untouchableRepo) ListSales(context.Context) ([]domain.Sale, error) {
	r.t.Fatal("store accessed")
	return nil, nil
}

func (r untouchableRepo) Stats(context.Context) (port.StoreStats, error) {
	r.t.Fatal("store accessed")
	return port.StoreStats{}, nil
}

// fakeGuard is an in-memory IdempotencyGuard that records releases.
type fakeGuard struct {
	claimed  map[string]bool
	released []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{claimed: make(map[string]bool)}
}

func (g *fakeGuard) Claim(_ context.Context, key string) (bool, error) {
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, key string) error {
	delete(g.claimed, key)
	g.released = append(g.released, key)
	return nil
}
