package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect identifies one of the supported SQL engines.  Queries are written
// with `?` placeholders and rebound by sqlx; the few statements whose syntax
// differs between engines are produced by the methods below.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts the DB_DRIVER values understood by the service.
func ParseDialect(raw string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("database: unsupported driver %q", raw)
}

// DialectOf returns the dialect of an open handle.
func DialectOf(db *sqlx.DB) Dialect {
	d, err := ParseDialect(db.DriverName())
	if err != nil {
		return MySQL
	}
	return d
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// UpsertIncrement returns an INSERT that creates a row with the given
// counter set to 1, or increments the counter of the existing row that
// collides on the conflict columns.
func (d Dialect) UpsertIncrement(table string, cols, conflict []string, counter string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, 1)",
		table, strings.Join(cols, ", "), counter, placeholders)
	switch d {
	case MySQL:
		return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s = %s + 1", insert, counter, counter)
	case Postgres:
		return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s = %s.%s + 1",
			insert, strings.Join(conflict, ", "), counter, table, counter)
	default:
		return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s = %s + 1",
			insert, strings.Join(conflict, ", "), counter, counter)
	}
}
