package storage

import (
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// SQLite has no row locks. The store runs on a single connection, so
// transactions are serialized and a locked read cannot be raced.
var sqliteDialect = dialect{
	name:            "sqlite",
	driverName:      "sqlite",
	namePredicate:   "LOWER(item_name) = LOWER(?)",
	versionQuery:    "SELECT sqlite_version()",
	timeArg:         func(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) },
	uniqueViolation: isSQLiteUnique,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS storage (
			item_id    INTEGER PRIMARY KEY AUTOINCREMENT,
			item_name  TEXT NOT NULL UNIQUE,
			quantity   INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			price      NUMERIC NOT NULL DEFAULT 0 CHECK (price >= 0),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_storage_item_name_lower ON storage (LOWER(item_name))`,
		`CREATE TABLE IF NOT EXISTS sales (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			item_name   TEXT NOT NULL,
			quantity    INTEGER NOT NULL CHECK (quantity > 0),
			price       NUMERIC NOT NULL CHECK (price > 0),
			total_price NUMERIC GENERATED ALWAYS AS (quantity * price) STORED,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_item_name_lower ON sales (LOWER(item_name))`,
	},
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// NewSQLiteAdapter pins db to one connection; see sqliteDialect.
func NewSQLiteAdapter(db *sql.DB, logger *zap.Logger) *SQLStore {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return newSQLStore(db, sqliteDialect, logger)
}
