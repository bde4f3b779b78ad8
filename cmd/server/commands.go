package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the storage and sales tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Database.Migrate = false
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}
		color.Green("schema ready on %s", store.Driver())
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check database connectivity and report table sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Database.Migrate = false
		store, err := openStore(cmd.Context())
		if err != nil {
			color.Red("✗ database unreachable: %v", err)
			return err
		}
		defer store.Close()

		ledger, err := newLedger(store, nil)
		if err != nil {
			return err
		}
		stats, err := ledger.Stats(cmd.Context())
		if err != nil {
			color.Red("✗ database check failed: %v", err)
			return err
		}

		color.Green("✓ connected to %s %s", stats.Driver, stats.Version)
		fmt.Printf("  inventory items: %d\n", stats.Items)
		fmt.Printf("  sales recorded:  %d\n", stats.Sales)
		if s := stats.LatestSale; s != nil {
			fmt.Printf("  latest sale:     #%d %dx %s at %s (%s)\n", s.ID, s.Quantity, s.ItemName, s.Price.StringFixed(2), s.CreatedAt.Format("2006-01-02 15:04:05"))
		} else {
			color.Yellow("  no sales recorded yet")
		}
		return nil
	},
}

var sellCmd = &cobra.Command{
	Use:   "sell <text>",
	Short: `Record a sale from text, e.g. laku sell "sold 3 eggs for $5"`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		ledger, err := newLedger(store, nil)
		if err != nil {
			return err
		}
		receipt, err := ledger.RecordSaleText(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		color.Green("recorded sale #%d: %dx %s at %s each", receipt.Sale.ID, receipt.Sale.Quantity, receipt.Sale.ItemName, receipt.Sale.Price.StringFixed(2))
		fmt.Printf("stock %d -> %d, ledger revenue %s over %d sales\n",
			receipt.PreviousQuantity, receipt.NewQuantity, receipt.Totals.TotalRevenue.StringFixed(2), receipt.Totals.TotalSales)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the sales analytics summary as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		ledger, err := newLedger(store, nil)
		if err != nil {
			return err
		}
		summary, err := ledger.Summary(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}
