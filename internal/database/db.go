package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Options describes how to reach the store.  DSN, when set, is used as-is
// (a postgres URL or a sqlite file path); otherwise the MySQL/Postgres DSN
// is assembled from the individual parts.
type Options struct {
	Driver string
	DSN    string
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// Open connects to the configured store and verifies the connection.
func Open(opts Options) (*sqlx.DB, error) {
	d, err := ParseDialect(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn := opts.DSN
	if dsn == "" {
		dsn, err = buildDSN(d, opts)
		if err != nil {
			return nil, err
		}
	} else if d == SQLite {
		dsn = SQLiteDSN(dsn)
	}

	db, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	if d == SQLite {
		// one writer at a time; transactions queue on the pool
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SQLiteDSN appends the pragmas the store relies on to a sqlite path.
func SQLiteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func buildDSN(d Dialect, opts Options) (string, error) {
	switch d {
	case MySQL:
		auth := opts.User
		if opts.Pass != "" {
			auth = fmt.Sprintf("%s:%s", opts.User, opts.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, opts.Host, opts.Port, opts.Name), nil
	case Postgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(opts.User, opts.Pass),
			Host:     opts.Host + ":" + opts.Port,
			Path:     "/" + opts.Name,
			RawQuery: "sslmode=disable&timezone=UTC",
		}
		return u.String(), nil
	default:
		if opts.Name == "" {
			return "", fmt.Errorf("database: %s requires DATABASE_URL or DB_NAME", d)
		}
		return SQLiteDSN(opts.Name), nil
	}
}
