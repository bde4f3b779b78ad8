package storage

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

// The ALTERs bring tables created by earlier versions up to the current columns.
var postgresDialect = dialect{
	name:            "postgres",
	exactSums:       true,
	driverName:      "pgx",
	lockClause:      " FOR UPDATE",
	namePredicate:   "LOWER(item_name) = LOWER(?)",
	returningID:     true,
	versionQuery:    "SELECT version()",
	timeArg:         passTime,
	uniqueViolation: isPostgresUnique,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS storage (
			item_id    SERIAL PRIMARY KEY,
			item_name  TEXT NOT NULL UNIQUE,
			quantity   INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			price      NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_storage_item_name_lower ON storage (LOWER(item_name))`,
		`CREATE TABLE IF NOT EXISTS sales (
			id          SERIAL PRIMARY KEY,
			item_name   TEXT NOT NULL,
			quantity    INTEGER NOT NULL CHECK (quantity > 0),
			price       NUMERIC NOT NULL CHECK (price > 0),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`ALTER TABLE sales ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP`,
		`ALTER TABLE sales ADD COLUMN IF NOT EXISTS total_price NUMERIC GENERATED ALWAYS AS (quantity * price) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_sales_item_name_lower ON sales (LOWER(item_name))`,
	},
}

func isPostgresUnique(err error) bool {
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == pgUniqueViolation
}

func NewPostgresAdapter(db *sql.DB, logger *zap.Logger) *SQLStore {
	return newSQLStore(db, postgresDialect, logger)
}
