package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect describes the SQL flavour of a database the key-value table lives in.
type Dialect struct {
	Driver string
	upsert string
	get    string
	del    string
}

var (
	Postgres = Dialect{
		Driver: "pgx",
		upsert: `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		get: `SELECT value FROM kv_store WHERE key = $1`,
		del: `DELETE FROM kv_store WHERE key = $1`,
	}
	SQLite = Dialect{
		Driver: "sqlite",
		upsert: `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		get: `SELECT value FROM kv_store WHERE key = ?`,
		del: `DELETE FROM kv_store WHERE key = ?`,
	}
)

func NewDB(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if d.Driver == SQLite.Driver {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

func CloseDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("failed to close DB", "error", err)
	}
}
