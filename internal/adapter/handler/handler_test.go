package handler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/katalis/laku/internal/adapter/storage"
	"github.com/katalis/laku/internal/core/service"
)

func setupLedger(t *testing.T, opts ...service.Option) *service.LedgerService {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	store := storage.NewSQLiteAdapter(db, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	base := []service.Option{
		service.WithLogger(zaptest.NewLogger(t)),
		service.WithLocation(time.UTC),
	}
	return service.NewLedgerService(store, append(base, opts...)...)
}

func seed(t *testing.T, ledger *service.LedgerService, name string, qty int, price string) int64 {
	t.Helper()

	item, err := ledger.AddInventoryItem(context.Background(), service.NewItem{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: &qty,
	})
	require.NoError(t, err)
	return item.ID
}
