package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Options describe how to reach the Ledger Store.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured database and verifies it with a ping.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*SQLStore, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	switch d.name {
	case "mysql":
		if dsn, err = MySQLDSN(dsn); err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
	case "sqlite":
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, storeErr("open database", err)
	}

	var store *SQLStore
	switch d.name {
	case "mysql":
		store = NewMySQLAdapter(db, logger)
	case "postgres":
		store = NewPostgresAdapter(db, logger)
	default:
		store = NewSQLiteAdapter(db, logger)
	}

	if d.name != "sqlite" {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeErr("ping database", err)
	}

	store.logger.Info("connected to database")
	return store, nil
}

// sqliteDSN turns on WAL and a busy timeout for file databases.
func sqliteDSN(dsn string) string {
	if dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "_pragma=") {
		if dsn == "" {
			return ":memory:"
		}
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
