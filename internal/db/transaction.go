package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 50 * time.Millisecond
)

// TransactionWithRetry runs fn in a transaction, retrying with exponential
// backoff while another writer (a second threadview process, a sync daemon)
// holds the SQLite write lock. Every retry is logged and counted.
func (db *DB) TransactionWithRetry(ctx context.Context, maxAttempts int, baseBackoff time.Duration, fn func(*sql.Tx) error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if baseBackoff <= 0 {
		baseBackoff = defaultRetryBackoff
	}

	onBusy := func(attempt int, backoff time.Duration, err error) {
		db.busyRetries.Add(1)
		db.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", backoff).
			Msg("database busy, retrying transaction")
	}
	return withRetry(ctx, maxAttempts, baseBackoff, onBusy, func() error {
		return db.Transaction(ctx, fn)
	})
}

// BusyRetries reports how many transaction attempts were retried because the
// database was locked.
func (db *DB) BusyRetries() int64 {
	return db.busyRetries.Load()
}

func withRetry(ctx context.Context, maxAttempts int, baseBackoff time.Duration, onBusy func(int, time.Duration, error), fn func() error) error {
	backoff := baseBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !isBusyError(err) || attempt >= maxAttempts {
			return err
		}
		if onBusy != nil {
			onBusy(attempt, backoff, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

// isBusyError matches SQLITE_BUSY and SQLITE_LOCKED, including their
// extended codes. Errors that lost their driver type are matched by text.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database is busy") ||
		strings.Contains(message, "sqlite_busy")
}
