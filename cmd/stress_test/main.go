package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katalis/laku/internal/adapter/storage"
	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/core/service"
)

var (
	driver        string
	dsn           string
	itemName      string
	initialStock  int
	totalRequests int
	quantity      int
)

func main() {
	cmd := &cobra.Command{
		Use:           "stress_test",
		Short:         "Fire concurrent sales at one item and check stock never goes negative",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(*cobra.Command, []string) error {
			return validateFlags(initialStock, totalRequests, quantity)
		},
		RunE: run,
	}
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "database driver (mysql, postgres, sqlite)")
	cmd.Flags().StringVar(&dsn, "dsn", "file:stress.db", "database DSN")
	cmd.Flags().StringVar(&itemName, "item", "stress-test-item", "inventory item to sell")
	cmd.Flags().IntVar(&initialStock, "stock", 20, "initial stock of the item")
	cmd.Flags().IntVar(&totalRequests, "requests", 50, "number of concurrent sale requests")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "units per sale")

	if err := cmd.Execute(); err != nil {
		color.Red("stress test failed: %v", err)
		os.Exit(1)
	}
}

func validateFlags(stock, requests, qty int) error {
	switch {
	case stock < 0:
		return fmt.Errorf("--stock must not be negative, got %d", stock)
	case requests <= 0:
		return fmt.Errorf("--requests must be positive, got %d", requests)
	case qty <= 0:
		return fmt.Errorf("--quantity must be positive, got %d", qty)
	}
	return nil
}

// expectedSales is how many of requests can be served from stock at qty units each.
func expectedSales(stock, requests, qty int) int {
	return min(stock/qty, requests)
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := storage.Open(ctx, storage.Options{Driver: driver, DSN: dsn, MaxOpenConns: totalRequests}, zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	// Clear previous test data
	for _, q := range []string{`DELETE FROM sales WHERE item_name = ?`, `DELETE FROM storage WHERE item_name = ?`} {
		if _, err := store.DB().ExecContext(ctx, store.Rebind(q), itemName); err != nil {
			return fmt.Errorf("reset %s: %w", itemName, err)
		}
	}

	ledger := service.NewLedgerService(store,
		service.WithOperationTimeout(time.Minute),
		service.WithIdempotencyGuard(storage.NewMemoryGuard(time.Minute, totalRequests+1)),
	)
	stock := initialStock
	if _, err := ledger.AddInventoryItem(ctx, service.NewItem{Name: itemName, Price: decimal.NewFromInt(1), Quantity: &stock}); err != nil {
		return err
	}

	var (
		successCount      atomic.Int32
		insufficientCount atomic.Int32
		errorCount        atomic.Int32
		wg                sync.WaitGroup
		soldOnce          sync.Once
		soldRequest       service.SaleRequest
	)
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := service.SaleRequest{
				RequestID: uuid.NewString(),
				ItemName:  itemName,
				Quantity:  quantity,
				Price:     decimal.NewFromInt(1),
			}
			_, err := ledger.Submit(ctx, req)
			switch {
			case err == nil:
				successCount.Add(1)
				soldOnce.Do(func() { soldRequest = req })
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficientCount.Add(1)
			default:
				errorCount.Add(1)
				color.Yellow("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	insufficient := int(insufficientCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Driver:           %s\n", store.Driver())
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d x %d units\n", totalRequests, quantity)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Insufficient:     %d\n", insufficient)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	expected := expectedSales(initialStock, totalRequests, quantity)
	failed := false
	if success == expected && insufficient == totalRequests-expected {
		color.Green("PASS: exactly %d sales succeeded, %d were refused", expected, insufficient)
	} else {
		color.Red("FAIL: expected %d success/%d refused, got %d/%d", expected, totalRequests-expected, success, insufficient)
		failed = true
	}

	// Replaying an accepted request id must not sell again.
	if soldRequest.RequestID != "" {
		if _, err := ledger.Submit(ctx, soldRequest); errors.Is(err, domain.ErrDuplicateRequest) {
			color.Green("PASS: replayed request %s was rejected", soldRequest.RequestID)
		} else {
			color.Red("FAIL: replayed request %s returned %v", soldRequest.RequestID, err)
			failed = true
		}
	}

	items, err := ledger.ListInventory(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Name != itemName {
			continue
		}
		fmt.Printf("Final Stock:      %d\n", item.Quantity)
		if want := initialStock - expected*quantity; item.Quantity == want {
			color.Green("PASS: stock settled at %d", want)
		} else {
			color.Red("FAIL: expected stock %d, got %d", want, item.Quantity)
			failed = true
		}
	}

	if failed {
		return errors.New("stock invariant violated")
	}
	return nil
}
