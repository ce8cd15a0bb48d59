package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// CreateSchema creates all tables needed by the voting engine.
// Safe to call multiple times - uses IF NOT EXISTS.  Statements are executed
// one at a time because the MySQL driver rejects multi-statement strings
// unless multiStatements is enabled.
func CreateSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range SchemaStatements(DialectOf(db)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SchemaStatements renders the schema for a dialect.
func SchemaStatements(d Dialect) []string {
	r := typeReplacer(d)
	out := make([]string, 0, len(schema))
	for _, stmt := range schema {
		out = append(out, r.Replace(stmt))
	}
	if d == MySQL {
		// MySQL has no CREATE INDEX IF NOT EXISTS; the index is declared inline.
		out = out[:len(out)-1]
		out[2] = strings.Replace(out[2], "\n)", ",\n    INDEX idx_households_address (society_name, tower, flat)\n)", 1)
	}
	return out
}

func typeReplacer(d Dialect) *strings.Replacer {
	switch d {
	case Postgres:
		return strings.NewReplacer(
			"{{id}}", "BIGSERIAL PRIMARY KEY",
			"{{bool}}", "BOOLEAN",
			"{{false}}", "FALSE",
			"{{ts}}", "TIMESTAMPTZ",
			"{{name}}", "VARCHAR(191)",
			"{{code}}", "VARCHAR(255)",
			"{{blob}}", "TEXT",
		)
	case SQLite:
		return strings.NewReplacer(
			"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{bool}}", "INTEGER",
			"{{false}}", "0",
			"{{ts}}", "DATETIME",
			"{{name}}", "TEXT",
			"{{code}}", "TEXT",
			"{{blob}}", "TEXT",
		)
	default:
		return strings.NewReplacer(
			"{{id}}", "BIGINT AUTO_INCREMENT PRIMARY KEY",
			"{{bool}}", "TINYINT(1)",
			"{{false}}", "0",
			"{{ts}}", "DATETIME(6)",
			"{{name}}", "VARCHAR(191)",
			// the default collation is case- and accent-insensitive
			"{{code}}", "VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin",
			"{{blob}}", "MEDIUMTEXT",
		)
	}
}

// The tally key uses tower NOT NULL DEFAULT '' so that households without a
// tower collide on the unique key; NULLs never collide in a unique index.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS settings (
    society_name {{name}} PRIMARY KEY,
    housing_type VARCHAR(64) NOT NULL,
    max_candidates_selection INTEGER NOT NULL DEFAULT 1,
    is_towerwise {{bool}} NOT NULL DEFAULT {{false}},
    max_voters INTEGER NOT NULL DEFAULT 0,
    voted_count INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS voting_schedule (
    society_name {{name}} PRIMARY KEY,
    start_time {{ts}} NULL,
    end_time {{ts}} NULL
)`,
	`CREATE TABLE IF NOT EXISTS households (
    id {{id}},
    society_name {{name}} NOT NULL,
    tower VARCHAR(64) NULL,
    flat VARCHAR(64) NULL,
    lane VARCHAR(64) NULL,
    house_number VARCHAR(64) NULL,
    secret_code {{code}} NOT NULL,
    face_recognition_image {{blob}} NULL,
    is_admin_blocked {{bool}} NOT NULL DEFAULT {{false}},
    is_vote_allowed {{bool}} NOT NULL DEFAULT {{false}},
    voted_in_cycle {{bool}} NOT NULL DEFAULT {{false}},
    voted_at {{ts}} NULL,
    is_contestant {{bool}} NOT NULL DEFAULT {{false}},
    contestant_name VARCHAR(191) NULL,
    contestant_symbol VARCHAR(191) NULL,
    contestant_photo_b64 {{blob}} NULL
)`,
	`CREATE TABLE IF NOT EXISTS votes (
    id {{id}},
    society_name {{name}} NOT NULL,
    tower VARCHAR(64) NOT NULL DEFAULT '',
    contestant_name VARCHAR(191) NOT NULL,
    is_archived {{bool}} NOT NULL DEFAULT {{false}},
    vote_count INTEGER NOT NULL DEFAULT 0,
    UNIQUE (society_name, tower, contestant_name, is_archived)
)`,
	`CREATE INDEX IF NOT EXISTS idx_households_address ON households (society_name, tower, flat)`,
}
