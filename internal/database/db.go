package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // Postgres driver
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New opens a connection to the Postgres price store
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Small pool; a backtest never needs more than a handful of
	// concurrent queries and the refresh job runs serially.
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Migrate creates the schema if it does not exist yet
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS symbols (
			symbol TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			symbol    TEXT             NOT NULL REFERENCES symbols(symbol),
			date      DATE             NOT NULL,
			open      DOUBLE PRECISION NOT NULL,
			high      DOUBLE PRECISION NOT NULL,
			low       DOUBLE PRECISION NOT NULL,
			close     DOUBLE PRECISION NOT NULL,
			adj_close DOUBLE PRECISION NOT NULL,
			volume    BIGINT           NOT NULL,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS strategies (
			id         SERIAL PRIMARY KEY,
			name       TEXT        NOT NULL,
			rules      JSONB       NOT NULL,
			user_id    TEXT        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (name, user_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}
