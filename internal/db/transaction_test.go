package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name         string
		maxAttempts  int
		failures     int
		failure      error
		wantErr      bool
		wantAttempts int
		wantRetries  int
	}{
		{name: "retries while locked", maxAttempts: 3, failures: 2, failure: errors.New("database is locked"), wantAttempts: 3, wantRetries: 2},
		{name: "gives up on other errors", maxAttempts: 3, failures: 5, failure: errors.New("constraint failed"), wantErr: true, wantAttempts: 1},
		{name: "stops at max attempts", maxAttempts: 2, failures: 5, failure: errors.New("database is busy"), wantErr: true, wantAttempts: 2, wantRetries: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			var retried []int
			onBusy := func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }
			err := withRetry(context.Background(), tt.maxAttempts, time.Millisecond, onBusy, func() error {
				attempts++
				if attempts <= tt.failures {
					return tt.failure
				}
				return nil
			})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantAttempts, attempts)
			require.Len(t, retried, tt.wantRetries)
		})
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, 5, 50*time.Millisecond, nil, func() error {
		return errors.New("database is locked")
	})
	require.Error(t, err)
}

func TestTransactionWithRetry_RollsBackFailedAttempt(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	attempts := 0
	err := db.TransactionWithRetry(ctx, 3, time.Millisecond, func(tx *sql.Tx) error {
		attempts++
		if _, err := tx.ExecContext(ctx, `INSERT INTO profiles (address) VALUES (?)`, "carol"); err != nil {
			return err
		}
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.EqualValues(t, 1, db.BusyRetries())

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE address = 'carol'`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestIsBusyError(t *testing.T) {
	require.False(t, isBusyError(nil))
	require.False(t, isBusyError(context.Canceled))
	require.False(t, isBusyError(errors.New("UNIQUE constraint failed")))
	require.True(t, isBusyError(fmt.Errorf("commit: %w", errors.New("SQLITE_BUSY"))))
}
