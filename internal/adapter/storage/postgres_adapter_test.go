package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/port"
)

func getPostgresStore(t *testing.T) *SQLStore {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Skipf("Postgres not available: %v", err)
	}

	store := NewPostgresAdapter(db, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestPostgres_InsertLockAndConflict(t *testing.T) {
	store := getPostgresStore(t)
	ctx := context.Background()

	_, err := store.DB().ExecContext(ctx, `DELETE FROM storage WHERE LOWER(item_name) = 'pg-test-eggs'`)
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx port.LedgerTx) error {
		item, err := tx.InsertItem(ctx, domain.InventoryItem{Name: "pg-test-eggs", Quantity: 10, Price: decimal.RequireFromString("5.00")})
		require.NoError(t, err)

		locked, err := tx.LockItem(ctx, domain.ItemByName("PG-TEST-EGGS"))
		require.NoError(t, err)
		assert.Equal(t, item.ID, locked.ID)

		remaining, err := tx.DecrementStock(ctx, item.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 7, remaining)
		return nil
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx port.LedgerTx) error {
		_, err := tx.InsertItem(ctx, domain.InventoryItem{Name: "PG-Test-Eggs", Quantity: 1, Price: decimal.NewFromInt(1)})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}
