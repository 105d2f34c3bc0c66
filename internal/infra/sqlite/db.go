// Package sqlite provides durable storage for the order pipeline.
// It wraps database/sql over the cgo-free modernc driver and implements the
// domain store interfaces: catalog, promos, orders, credits, rate limits.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "modernc.org/sqlite"
)

// DB wraps the SQLite handle. All store methods hang off this type.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for tests.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// One connection: SQLite serializes writers anyway, and a single conn
	// keeps ":memory:" databases coherent across the pool.
	handle.SetMaxOpenConns(1)

	if _, err := handle.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		handle.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}

	db := &DB{db: handle}
	if err := db.Migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// Migrate applies all schema migrations. Each statement is idempotent.
func (db *DB) Migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, stmt)
		}
	}
	return nil
}

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Purchasable services
		`CREATE TABLE IF NOT EXISTS services (
			ref         TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			price_cents INTEGER NOT NULL,
			active      INTEGER NOT NULL DEFAULT 1,
			updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Service bundles (priced as a unit)
		`CREATE TABLE IF NOT EXISTS bundles (
			ref         TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			price_cents INTEGER NOT NULL,
			active      INTEGER NOT NULL DEFAULT 1,
			updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Promotion rules
		`CREATE TABLE IF NOT EXISTS promo_codes (
			code          TEXT PRIMARY KEY,
			discount_type TEXT NOT NULL CHECK(discount_type IN ('flat', 'percent')),
			value         INTEGER NOT NULL,
			active        INTEGER NOT NULL DEFAULT 1,
			expires_at    TEXT,
			max_uses      INTEGER NOT NULL DEFAULT 0,
			used_count    INTEGER NOT NULL DEFAULT 0
		)`,

		// Referral codes (fixed-percentage class, tied to a referring user)
		`CREATE TABLE IF NOT EXISTS referral_codes (
			code             TEXT PRIMARY KEY,
			referrer_user_id TEXT NOT NULL,
			active           INTEGER NOT NULL DEFAULT 1
		)`,

		// User profiles (credit balance fast path)
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id              TEXT PRIMARY KEY,
			email                TEXT,
			credit_balance_cents INTEGER NOT NULL DEFAULT 0
		)`,

		// Orders — payment_intent_id UNIQUE is THE idempotency guarantee.
		// Items and breakdown are frozen JSON snapshots taken at creation.
		`CREATE TABLE IF NOT EXISTS orders (
			id                TEXT PRIMARY KEY,
			order_number      TEXT NOT NULL UNIQUE,
			payment_intent_id TEXT NOT NULL UNIQUE,
			user_id           TEXT,
			customer_email    TEXT NOT NULL,
			customer_name     TEXT,
			order_type        TEXT NOT NULL,
			status            TEXT NOT NULL,
			items_json        TEXT NOT NULL,
			breakdown_json    TEXT NOT NULL,
			created_at        TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,

		// Append-only status history
		`CREATE TABLE IF NOT EXISTS order_status_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id    TEXT NOT NULL,
			status      TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_order ON order_status_history(order_id, id)`,

		// Credit ledger (audit trail for balance mutations)
		`CREATE TABLE IF NOT EXISTS credit_ledger (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			tx_type       TEXT NOT NULL,
			entry_type    TEXT NOT NULL,
			amount_cents  INTEGER NOT NULL,
			order_id      TEXT,
			description   TEXT NOT NULL DEFAULT '',
			balance_cents INTEGER NOT NULL,
			created_at    TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user ON credit_ledger(user_id, created_at)`,

		// Windowed admission-control counters, shared across processes
		`CREATE TABLE IF NOT EXISTS rate_limits (
			bucket       TEXT NOT NULL,
			window_start INTEGER NOT NULL,
			count        INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (bucket, window_start)
		)`,
	}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE/PK constraint hit.
func isUniqueViolation(err error) bool {
	var se *sqlite3.Error
	if errors.As(err, &se) {
		// 2067 = SQLITE_CONSTRAINT_UNIQUE, 1555 = SQLITE_CONSTRAINT_PRIMARYKEY
		return se.Code() == 2067 || se.Code() == 1555
	}
	return false
}
