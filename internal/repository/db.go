package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options configures Open.
type Options struct {
	Driver          string // DriverPostgres | DriverSQLite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func init() {
	// sqlx only knows "sqlite3"; modernc registers itself as "sqlite".
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the configured database, applies pool settings and runs
// the schema migrations. SQLite is limited to one open connection so that
// writers are serialised by the pool instead of failing with SQLITE_BUSY.
func Open(ctx context.Context, opts Options) (*sqlx.DB, error) {
	switch opts.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("repository.Open: unsupported driver %q", opts.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("repository.Open: connect: %w", err)
	}

	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys=ON",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err = db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("repository.Open: %s: %w", pragma, err)
			}
		}
	} else {
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

	if err = Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema if it does not exist and seeds the holding row.
// Idempotent: every statement uses IF NOT EXISTS / ON CONFLICT.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts := postgresSchema
	if db.DriverName() == DriverSQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("repository.Migrate: statement %d: %w", i+1, err)
		}
	}
	return nil
}

// lockClause returns the row-locking suffix for SELECTs inside a transaction.
// SQLite has no row locks; its single connection already serialises writers.
func lockClause(db sqlx.Ext) string {
	if db.DriverName() == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// isUniqueViolation reports whether err is a unique-constraint failure on
// either backend.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unique constraint") || // postgres
		strings.Contains(msg, "UNIQUE constraint failed") // sqlite
}

// Money columns are TEXT on SQLite so decimals round-trip exactly; the Go side
// does all arithmetic with shopspring/decimal.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		is_active     INTEGER NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		username   TEXT PRIMARY KEY,
		balance    TEXT NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS holding (
		id              INTEGER PRIMARY KEY CHECK (id = 1),
		holding_balance TEXT NOT NULL DEFAULT '0',
		house_balance   TEXT NOT NULL DEFAULT '0',
		updated_at      DATETIME NOT NULL
	)`,
	`INSERT INTO holding (id, holding_balance, house_balance, updated_at)
		VALUES (1, '0', '0', CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS bets (
		seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		id               TEXT NOT NULL UNIQUE,
		username         TEXT NOT NULL REFERENCES accounts(username),
		game_id          TEXT NOT NULL,
		team             TEXT NOT NULL,
		bet_type         TEXT NOT NULL,
		odds             INTEGER NOT NULL,
		amount           TEXT NOT NULL,
		potential_payout TEXT NOT NULL,
		spread_value     TEXT,
		total_value      TEXT,
		matchup          TEXT NOT NULL,
		resolved         INTEGER NOT NULL DEFAULT 0,
		outcome          TEXT,
		placed_at        DATETIME NOT NULL,
		resolved_at      DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bets_username ON bets (username, seq)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username      VARCHAR(50) PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role          VARCHAR(20) NOT NULL DEFAULT 'user',
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		username   VARCHAR(50) PRIMARY KEY,
		balance    NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS holding (
		id              SMALLINT PRIMARY KEY CHECK (id = 1),
		holding_balance NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (holding_balance >= 0),
		house_balance   NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (house_balance >= 0),
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`INSERT INTO holding (id, holding_balance, house_balance, updated_at)
		VALUES (1, 0, 0, now())
		ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS bets (
		seq              BIGSERIAL PRIMARY KEY,
		id               UUID NOT NULL UNIQUE,
		username         VARCHAR(50) NOT NULL REFERENCES accounts(username),
		game_id          VARCHAR(128) NOT NULL,
		team             VARCHAR(128) NOT NULL,
		bet_type         VARCHAR(16) NOT NULL,
		odds             INTEGER NOT NULL CHECK (odds <> 0),
		amount           NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		potential_payout NUMERIC(18,2) NOT NULL,
		spread_value     NUMERIC(8,2),
		total_value      NUMERIC(8,2),
		matchup          TEXT NOT NULL,
		resolved         BOOLEAN NOT NULL DEFAULT FALSE,
		outcome          VARCHAR(8),
		placed_at        TIMESTAMPTZ NOT NULL,
		resolved_at      TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bets_username ON bets (username, seq)`,
}
