// Package db provides SQLite database access for threadview.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"

	"github.com/tOgg1/threadview/internal/logging"
)

// Config configures a database connection.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// MaxConnections is the maximum number of open connections.
	MaxConnections int

	// BusyTimeoutMs is how long SQLite waits on a locked database.
	BusyTimeoutMs int
}

// DB wraps a SQLite connection pool.
type DB struct {
	*sql.DB

	path     string
	inMemory bool
	logger   zerolog.Logger

	// localWrites counts commits made through this pool so the external
	// change watcher can tell them apart from out-of-process writes.
	localWrites atomic.Int64

	busyRetries atomic.Int64
}

// Open opens (creating if necessary) the database at cfg.Path.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.BusyTimeoutMs <= 0 {
		cfg.BusyTimeoutMs = 5000
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 4
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", cfg.Path, cfg.BusyTimeoutMs)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{
		DB:     sqlDB,
		path:   cfg.Path,
		logger: logging.Component("db"),
	}, nil
}

// OpenInMemory opens a private in-memory database. The pool is limited to a
// single connection because every SQLite memory connection is its own database.
func OpenInMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{
		DB:       sqlDB,
		path:     ":memory:",
		inMemory: true,
		logger:   logging.Component("db"),
	}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Transaction runs fn inside a transaction, committing on success.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	db.noteLocalWrite()
	return nil
}

func (db *DB) noteLocalWrite() {
	db.localWrites.Add(1)
}

// LocalWrites returns the number of commits made through this pool.
func (db *DB) LocalWrites() int64 {
	return db.localWrites.Load()
}
