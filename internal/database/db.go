package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// NewInMemory opens an in-memory database, used by tests.
func NewInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// A single connection keeps every query on the same in-memory instance.
	conn.SetMaxOpenConns(1)
	return &DB{conn: conn, path: ":memory:"}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Migrate creates the ledger schema. Statements are idempotent so Migrate is
// safe to run on every start.
func (db *DB) Migrate() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Decimal-valued columns are stored as TEXT so values round-trip exactly.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id            TEXT PRIMARY KEY,
		portfolio_id  TEXT NOT NULL,
		symbol        TEXT NOT NULL,
		kind          INTEGER NOT NULL,
		date          TEXT NOT NULL,
		shares        TEXT NOT NULL DEFAULT '0',
		price         TEXT NOT NULL DEFAULT '0',
		amount        TEXT NOT NULL DEFAULT '0',
		commission    TEXT NOT NULL DEFAULT '0',
		tax           TEXT NOT NULL DEFAULT '0',
		transfer_fee  TEXT NOT NULL DEFAULT '0',
		ratio         TEXT NOT NULL DEFAULT '0',
		dividend_per_10 TEXT NOT NULL DEFAULT '0',
		bonus_per_10    TEXT NOT NULL DEFAULT '0',
		transfer_per_10 TEXT NOT NULL DEFAULT '0',
		cycle_id      INTEGER NOT NULL DEFAULT 0,
		comment       TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		seq           INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_symbol
		ON transactions (portfolio_id, symbol, date, seq)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		portfolio_id  TEXT NOT NULL,
		symbol        TEXT NOT NULL,
		shares        TEXT NOT NULL DEFAULT '0',
		hold_cost     TEXT NOT NULL DEFAULT '0',
		diluted_cost  TEXT NOT NULL DEFAULT '0',
		buy_amount    TEXT NOT NULL DEFAULT '0',
		sell_amount   TEXT NOT NULL DEFAULT '0',
		dividends     TEXT NOT NULL DEFAULT '0',
		buy_fees      TEXT NOT NULL DEFAULT '0',
		sell_fees     TEXT NOT NULL DEFAULT '0',
		other_fees    TEXT NOT NULL DEFAULT '0',
		active        INTEGER NOT NULL DEFAULT 0,
		opened_at     TEXT,
		liquidated_at TEXT,
		updated_at    TEXT NOT NULL,
		PRIMARY KEY (portfolio_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS transfers (
		id           TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL,
		direction    TEXT NOT NULL,
		amount       TEXT NOT NULL,
		date         TEXT NOT NULL,
		comment      TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_portfolio
		ON transfers (portfolio_id, date)`,
}
