package db

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version records progress.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			is_group INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS thread_participants (
			thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			address TEXT NOT NULL,
			PRIMARY KEY (thread_id, address)
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			address TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			avatar_blurred INTEGER NOT NULL DEFAULT 0,
			blocked INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			sort_id INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			edited_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS interactions_thread_sort_idx ON interactions(thread_id, sort_id)`,
		`CREATE INDEX IF NOT EXISTS interactions_unread_idx ON interactions(thread_id, read, sort_id)`,
	},
	{
		`CREATE TABLE IF NOT EXISTS thread_activity (
			thread_id TEXT PRIMARY KEY REFERENCES threads(id) ON DELETE CASCADE,
			typing_sender TEXT NOT NULL DEFAULT '',
			call_active INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		)`,
	},
}

// SchemaVersion returns the latest schema version known to this binary.
func SchemaVersion() int {
	return len(migrations)
}

// MigrateUp applies pending migrations and returns how many ran.
func (db *DB) MigrateUp(ctx context.Context) (int, error) {
	var current int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	applied := 0
	for version := current; version < len(migrations); version++ {
		statements := migrations[version]
		target := version + 1
		err := db.Transaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d: %w", target, err)
				}
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, target)); err != nil {
				return fmt.Errorf("migration %d: set version: %w", target, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		applied++
		db.logger.Debug().Int("version", target).Msg("applied migration")
	}

	return applied, nil
}
