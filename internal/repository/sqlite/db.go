// Package sqlite provides SQLite-backed repositories for embedded,
// single-binary deployments. It uses modernc.org/sqlite, a pure Go
// SQLite implementation that doesn't require CGO.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds SQLite connection settings.
type Config struct {
	// Path is the database file; use ":memory:" for tests.
	Path string

	// JournalMode is the SQLite journal mode (WAL recommended).
	JournalMode string

	// BusyTimeout is the lock wait in milliseconds.
	BusyTimeout int
}

// DefaultConfig returns sensible embedded defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		JournalMode: "WAL",
		BusyTimeout: 5000,
	}
}

// DB wraps a database/sql handle.
type DB struct {
	SQL    *sql.DB
	logger zerolog.Logger
}

// NewDB opens the database, applies pragmas, and runs migrations.
func NewDB(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)",
		cfg.Path, cfg.JournalMode, cfg.BusyTimeout)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite works best with a single writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	db := &DB{SQL: sqlDB, logger: logger}
	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", cfg.Path).Msg("connected to SQLite")
	return db, nil
}

// migrate applies the embedded schema files in lexical order.
func (db *DB) migrate(ctx context.Context) error {
	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(entries)

	for _, name := range entries {
		script, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.SQL.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.SQL.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}
