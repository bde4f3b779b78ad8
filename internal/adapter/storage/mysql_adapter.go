package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const mysqlErrDupEntry = 1062

// The storage table uses a case-insensitive collation, so a plain equality
// both matches names case-insensitively and stays on the unique index.
// FOR UPDATE then locks only the matched row.
var mysqlDialect = dialect{
	name:            "mysql",
	exactSums:       true,
	driverName:      "mysql",
	lockClause:      " FOR UPDATE",
	namePredicate:   "item_name = ?",
	versionQuery:    "SELECT VERSION()",
	timeArg:         passTime,
	uniqueViolation: isMySQLDuplicate,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS storage (
			item_id    BIGINT AUTO_INCREMENT PRIMARY KEY,
			item_name  VARCHAR(255) NOT NULL,
			quantity   INT NOT NULL DEFAULT 0,
			price      DECIMAL(12,2) NOT NULL DEFAULT 0,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_storage_item_name (item_name),
			CONSTRAINT chk_storage_quantity CHECK (quantity >= 0),
			CONSTRAINT chk_storage_price CHECK (price >= 0)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS sales (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			item_name   VARCHAR(255) NOT NULL,
			quantity    INT NOT NULL,
			price       DECIMAL(12,2) NOT NULL,
			total_price DECIMAL(14,2) AS (quantity * price) STORED,
			created_at  DATETIME(6) NOT NULL,
			updated_at  DATETIME(6) NOT NULL,
			KEY idx_sales_item_name (item_name),
			CONSTRAINT chk_sales_quantity CHECK (quantity > 0),
			CONSTRAINT chk_sales_price CHECK (price > 0)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
}

func isMySQLDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDupEntry
}

// MySQLDSN makes sure the driver parses DATETIME columns in UTC.
func MySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func NewMySQLAdapter(db *sql.DB, logger *zap.Logger) *SQLStore {
	return newSQLStore(db, mysqlDialect, logger)
}
