//go:build integration

package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/katalis/laku/internal/adapter/storage"
	"github.com/katalis/laku/internal/core/domain"
)

type testEnv struct {
	redis *redis.Client
	store *storage.SQLStore
	svc   *LedgerService
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/laku"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := storage.Open(context.Background(), storage.Options{Driver: "mysql", DSN: mysqlDSN, MaxOpenConns: 20}, zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	svc := NewLedgerService(store,
		WithLogger(zaptest.NewLogger(t)),
		WithIdempotencyGuard(storage.NewRedisAdapter(rdb, time.Minute)),
	)
	return &testEnv{redis: rdb, store: store, svc: svc}
}

func (env *testEnv) resetItem(t *testing.T, name string, qty int) {
	t.Helper()
	ctx := context.Background()

	_, err := env.store.DB().ExecContext(ctx, `DELETE FROM sales WHERE item_name = ?`, name)
	require.NoError(t, err)
	_, err = env.store.DB().ExecContext(ctx, `DELETE FROM storage WHERE item_name = ?`, name)
	require.NoError(t, err)

	_, err = env.svc.AddInventoryItem(ctx, NewItem{Name: name, Price: dec("9.99"), Quantity: &qty})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = env.store.DB().ExecContext(ctx, `DELETE FROM sales WHERE item_name = ?`, name)
		_, _ = env.store.DB().ExecContext(ctx, `DELETE FROM storage WHERE item_name = ?`, name)
	})
}

func TestIntegration_ConcurrentSalesAgainstMySQL(t *testing.T) {
	env := setupTestEnv(t)
	const (
		item         = "integration-test-item"
		initialStock = 10
		requests     = 30
	)
	env.resetItem(t, item, initialStock)

	var (
		wg           sync.WaitGroup
		succeeded    atomic.Int32
		insufficient atomic.Int32
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Submit(context.Background(), SaleRequest{
				RequestID: uuid.NewString(),
				ItemName:  item,
				Quantity:  1,
				Price:     dec("9.99"),
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), succeeded.Load())
	assert.Equal(t, int32(requests-initialStock), insufficient.Load())

	var stock, sales int
	require.NoError(t, env.store.DB().QueryRow(`SELECT quantity FROM storage WHERE item_name = ?`, item).Scan(&stock))
	require.NoError(t, env.store.DB().QueryRow(`SELECT COUNT(*) FROM sales WHERE item_name = ?`, item).Scan(&sales))
	assert.Equal(t, 0, stock)
	assert.Equal(t, initialStock, sales)
}

func TestIntegration_IdempotencyPreventsDoubleSale(t *testing.T) {
	env := setupTestEnv(t)
	const item = "idempotency-test-item"
	env.resetItem(t, item, 10)

	req := SaleRequest{RequestID: "same-request-id-" + uuid.NewString(), ItemName: item, Quantity: 1, Price: dec("9.99")}

	_, err := env.svc.Submit(context.Background(), req)
	require.NoError(t, err)

	_, err = env.svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	var stock int
	require.NoError(t, env.store.DB().QueryRow(`SELECT quantity FROM storage WHERE item_name = ?`, item).Scan(&stock))
	assert.Equal(t, 9, stock)
}
