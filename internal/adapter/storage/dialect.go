package storage

import (
	"fmt"
	"time"
)

// dialect captures the SQL differences between the supported stores.
type dialect struct {
	name       string
	driverName string

	// lockClause is appended to row lookups that must hold the row until commit.
	lockClause string
	// namePredicate matches item_name against one bind variable case-insensitively.
	namePredicate string
	// returningID means INSERT ... RETURNING is used instead of LastInsertId.
	returningID bool
	// exactSums means SUM over price is computed in fixed-point by the database.
	exactSums    bool
	versionQuery string
	schema       []string

	// timeArg converts a timestamp into the bind value the driver stores faithfully.
	timeArg func(time.Time) any
	// uniqueViolation reports whether err is a unique-constraint failure.
	uniqueViolation func(err error) bool
}

func passTime(t time.Time) any { return t.UTC() }

func dialectFor(name string) (dialect, error) {
	switch name {
	case "mysql":
		return mysqlDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
}
