package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katalis/laku/internal/adapter/storage"
	"github.com/katalis/laku/internal/config"
	"github.com/katalis/laku/internal/core/service"
	"github.com/katalis/laku/internal/logging"
	"github.com/katalis/laku/internal/port"
)

const memoryGuardSize = 100_000

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "laku",
	Short: "Laku point-of-sale ledger",
	Long: `Laku records sales against a shared inventory. Every sale locks the
inventory row, checks stock, writes the sale and decrements stock in one
transaction, so concurrent tills can never oversell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LAKU_CONFIG"), "path to a YAML or TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, migrateCmd, checkCmd, sellCmd, summaryCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (*storage.SQLStore, error) {
	store, err := storage.Open(ctx, storage.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// newGuard returns the idempotency guard and a close func for its client.
func newGuard(ctx context.Context) (port.IdempotencyGuard, func(), error) {
	if !cfg.Redis.Enabled {
		return storage.NewMemoryGuard(cfg.Redis.IdempotencyTTL, memoryGuardSize), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	return storage.NewRedisAdapter(rdb, cfg.Redis.IdempotencyTTL), func() { _ = rdb.Close() }, nil
}

func newLedger(store port.LedgerRepository, guard port.IdempotencyGuard) (*service.LedgerService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithLocation(loc),
		service.WithOperationTimeout(cfg.Ledger.OperationTimeout),
	}
	if guard != nil {
		opts = append(opts, service.WithIdempotencyGuard(guard))
	}
	return service.NewLedgerService(store, opts...), nil
}
