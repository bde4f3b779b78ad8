package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/port"
)

func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	store := NewSQLiteAdapter(db, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedItem(t *testing.T, store *SQLStore, name string, qty int, price string) domain.InventoryItem {
	t.Helper()

	var item *domain.InventoryItem
	err := store.WithTx(context.Background(), func(tx port.LedgerTx) error {
		var err error
		item, err = tx.InsertItem(context.Background(), domain.InventoryItem{
			Name:     name,
			Quantity: qty,
			Price:    decimal.RequireFromString(price),
		})
		return err
	})
	require.NoError(t, err)
	return *item
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSQLiteStore_InsertAndListInventory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedItem(t, store, "milk", 4, "2.50")
	eggs := seedItem(t, store, "eggs", 10, "5.00")

	assert.NotZero(t, eggs.ID)
	assert.Equal(t, "eggs", eggs.Name)
	assert.True(t, decimal.NewFromInt(5).Equal(eggs.Price))
	assert.False(t, eggs.CreatedAt.IsZero())

	items, err := store.ListInventory(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "eggs", items[0].Name)
	assert.Equal(t, "milk", items[1].Name)
}

func TestSQLiteStore_InsertDuplicateNameIsConflict(t *testing.T) {
	store := setupTestStore(t)
	seedItem(t, store, "Eggs", 1, "5")

	err := store.WithTx(context.Background(), func(tx port.LedgerTx) error {
		_, err := tx.InsertItem(context.Background(), domain.InventoryItem{Name: "eggs", Quantity: 1, Price: decimal.NewFromInt(5)})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSQLiteStore_LockItem(t *testing.T) {
	store := setupTestStore(t)
	eggs := seedItem(t, store, "Eggs", 10, "5.00")
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx port.LedgerTx) error {
		byName, err := tx.LockItem(ctx, domain.ItemByName("EGGS"))
		require.NoError(t, err)
		assert.Equal(t, eggs.ID, byName.ID)

		byID, err := tx.LockItem(ctx, domain.ItemByID(eggs.ID))
		require.NoError(t, err)
		assert.Equal(t, "Eggs", byID.Name)

		_, err = tx.LockItem(ctx, domain.ItemByName("bread"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestSQLiteStore_SaleLifecycle(t *testing.T) {
	store := setupTestStore(t)
	eggs := seedItem(t, store, "eggs", 10, "5.00")
	ctx := context.Background()
	soldAt := time.Date(2025, 3, 14, 9, 15, 0, 0, time.UTC)

	var sale *domain.Sale
	err := store.WithTx(ctx, func(tx port.LedgerTx) error {
		var err error
		sale, err = tx.InsertSale(ctx, domain.Sale{
			ItemName:  "eggs",
			Quantity:  3,
			Price:     decimal.RequireFromString("5.00"),
			CreatedAt: soldAt,
		})
		if err != nil {
			return err
		}
		remaining, err := tx.DecrementStock(ctx, eggs.ID, 3)
		assert.Equal(t, 7, remaining)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, sale)
	assert.NotZero(t, sale.ID)
	assert.True(t, soldAt.Equal(sale.CreatedAt), sale.CreatedAt.String())

	err = store.WithTx(ctx, func(tx port.LedgerTx) error {
		totals, err := tx.SalesTotals(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), totals.TotalSales)
		assert.Equal(t, int64(3), totals.TotalItemsSold)
		assert.True(t, decimal.NewFromInt(15).Equal(totals.TotalRevenue), totals.TotalRevenue.String())

		n, err := tx.CountSalesFor(ctx, "EGGS")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	})
	require.NoError(t, err)

	sales, err := store.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, 3, sales[0].Quantity)
}

func TestSQLiteStore_DecrementNeverGoesNegative(t *testing.T) {
	store := setupTestStore(t)
	eggs := seedItem(t, store, "eggs", 2, "5.00")
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx port.LedgerTx) error {
		_, err := tx.DecrementStock(ctx, eggs.ID, 3)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	items, err := store.ListInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestSQLiteStore_RollbackOnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx port.LedgerTx) error {
		_, err := tx.InsertItem(ctx, domain.InventoryItem{Name: "tea", Quantity: 1, Price: decimal.NewFromInt(1)})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	items, err := store.ListInventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSQLiteStore_RollbackOnPanic(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = store.WithTx(ctx, func(tx port.LedgerTx) error {
			_, err := tx.InsertItem(ctx, domain.InventoryItem{Name: "tea", Quantity: 1, Price: decimal.NewFromInt(1)})
			require.NoError(t, err)
			panic("handler bug")
		})
	})

	items, err := store.ListInventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSQLiteStore_DeleteSales(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedItem(t, store, "eggs", 10, "5.00")

	var ids []int64
	err := store.WithTx(ctx, func(tx port.LedgerTx) error {
		for i := 1; i <= 3; i++ {
			s, err := tx.InsertSale(ctx, domain.Sale{ItemName: "eggs", Quantity: i, Price: decimal.NewFromInt(5), CreatedAt: time.Now()})
			if err != nil {
				return err
			}
			ids = append(ids, s.ID)
		}
		return nil
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx port.LedgerTx) error {
		deleted, err := tx.DeleteSale(ctx, ids[1])
		require.NoError(t, err)
		assert.Equal(t, 2, deleted.Quantity)

		_, err = tx.DeleteSale(ctx, ids[1])
		assert.ErrorIs(t, err, domain.ErrNotFound)

		n, err := tx.DeleteAllSales(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		return nil
	})
	require.NoError(t, err)

	sales, err := store.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestSQLiteStore_UpdateAndDeleteItem(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	eggs := seedItem(t, store, "eggs", 10, "5.00")
	seedItem(t, store, "milk", 1, "2.50")

	err := store.WithTx(ctx, func(tx port.LedgerTx) error {
		eggs.Name = "Free Range Eggs"
		eggs.Quantity = 12
		updated, err := tx.UpdateItem(ctx, eggs)
		require.NoError(t, err)
		assert.Equal(t, "Free Range Eggs", updated.Name)
		assert.Equal(t, 12, updated.Quantity)

		eggs.Name = "MILK"
		_, err = tx.UpdateItem(ctx, eggs)
		assert.ErrorIs(t, err, domain.ErrConflict)
		return nil
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx port.LedgerTx) error {
		require.NoError(t, tx.DeleteItem(ctx, eggs.ID))
		assert.ErrorIs(t, tx.DeleteItem(ctx, eggs.ID), domain.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestSQLiteStore_StockLevelsAndStats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedItem(t, store, "eggs", 10, "5.00")
	seedItem(t, store, "milk", 0, "2.50")
	seedItem(t, store, "bread", 3, "3.20")

	levels, err := store.StockLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.StockLevel{{Name: "eggs", Quantity: 10}, {Name: "bread", Quantity: 3}}, levels)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", stats.Driver)
	assert.NotEmpty(t, stats.Version)
	assert.Equal(t, int64(3), stats.Items)
	assert.Zero(t, stats.Sales)
	assert.Nil(t, stats.LatestSale)
}

func TestDBTime_Scan(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 15, 30, 0, time.UTC)

	for _, src := range []any{
		want,
		want.In(time.FixedZone("BNT", 8*3600)),
		"2025-03-14 09:15:30.000000000",
		[]byte("2025-03-14 09:15:30"),
		"2025-03-14T09:15:30Z",
		"2025-03-14 17:15:30+08:00",
	} {
		var got dbTime
		require.NoError(t, got.Scan(src))
		assert.Truef(t, want.Equal(got.Time), "%v -> %v", src, got.Time)
		assert.Equal(t, time.UTC, got.Location())
	}

	var bad dbTime
	assert.Error(t, bad.Scan("yesterday"))
	assert.Error(t, bad.Scan(42))
}

func TestSQLiteStore_SalesTotalsAreExactDecimals(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var totals domain.SalesTotals
	err := store.WithTx(ctx, func(tx port.LedgerTx) error {
		for i := 0; i < 3; i++ {
			if _, err := tx.InsertSale(ctx, domain.Sale{ItemName: "candy", Quantity: 1, Price: decimal.RequireFromString("0.1")}); err != nil {
				return err
			}
		}
		var err error
		totals, err = tx.SalesTotals(ctx)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), totals.TotalSales)
	assert.Equal(t, int64(3), totals.TotalItemsSold)
	assert.Equal(t, "0.3", totals.TotalRevenue.String())
}
