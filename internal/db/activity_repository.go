package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tOgg1/threadview/internal/models"
)

// ActivityRepository stores typing and call presence per thread. Writes are
// published in-process; other processes see them through the Watcher.
type ActivityRepository struct {
	db   *DB
	opts repoOptions
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *DB, opts ...RepositoryOption) *ActivityRepository {
	return &ActivityRepository{db: db, opts: buildOptions(opts)}
}

// SetTyping records sender as typing in threadID. An empty sender clears it.
func (r *ActivityRepository) SetTyping(ctx context.Context, threadID, sender string) error {
	if err := r.upsert(ctx, threadID, `typing_sender`, sender); err != nil {
		return err
	}
	r.opts.publish(ctx, typingEvent(threadID, sender))
	return nil
}

// SetCallActive records whether a call is running in threadID.
func (r *ActivityRepository) SetCallActive(ctx context.Context, threadID string, active bool) error {
	if err := r.upsert(ctx, threadID, `call_active`, boolToInt(active)); err != nil {
		return err
	}
	r.opts.publish(ctx, callEvent(threadID))
	return nil
}

func (r *ActivityRepository) upsert(ctx context.Context, threadID, column string, value any) error {
	err := r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		if _, err := getThread(ctx, tx, threadID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO thread_activity (thread_id, %[1]s, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(thread_id) DO UPDATE SET
				%[1]s = excluded.%[1]s,
				updated_at = excluded.updated_at
		`, column), threadID, value, formatTime(r.opts.now()))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update thread activity: %w", err)
	}
	return nil
}

// Get returns the activity of one thread. A thread without a row is idle.
func (r *ActivityRepository) Get(ctx context.Context, threadID string) (models.ThreadActivity, error) {
	activity := models.ThreadActivity{ThreadID: threadID}
	var (
		callActive int
		updatedAt  string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT typing_sender, call_active, updated_at FROM thread_activity WHERE thread_id = ?
	`, threadID).Scan(&activity.TypingSender, &callActive, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return activity, nil
	}
	if err != nil {
		return activity, fmt.Errorf("failed to query thread activity: %w", err)
	}
	activity.CallActive = callActive == 1
	activity.UpdatedAt = parseTime(updatedAt)
	return activity, nil
}

// All returns the activity of every thread that has a row, keyed by thread.
func (r *ActivityRepository) All(ctx context.Context) (map[string]models.ThreadActivity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT thread_id, typing_sender, call_active, updated_at FROM thread_activity`)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread activity: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.ThreadActivity)
	for rows.Next() {
		var (
			activity   models.ThreadActivity
			callActive int
			updatedAt  string
		)
		if err := rows.Scan(&activity.ThreadID, &activity.TypingSender, &callActive, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread activity: %w", err)
		}
		activity.CallActive = callActive == 1
		activity.UpdatedAt = parseTime(updatedAt)
		result[activity.ThreadID] = activity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thread activity: %w", err)
	}
	return result, nil
}

// activityEvents lists the events that turn before into after.
func activityEvents(before, after map[string]models.ThreadActivity) []*models.Event {
	var out []*models.Event
	for threadID, next := range after {
		prev := before[threadID]
		if prev.TypingSender != next.TypingSender {
			out = append(out, typingEvent(threadID, next.TypingSender))
		}
		if prev.CallActive != next.CallActive {
			out = append(out, callEvent(threadID))
		}
	}
	for threadID, prev := range before {
		if _, ok := after[threadID]; ok {
			continue
		}
		if prev.TypingSender != "" {
			out = append(out, typingEvent(threadID, ""))
		}
		if prev.CallActive {
			out = append(out, callEvent(threadID))
		}
	}
	return out
}

func typingEvent(threadID, sender string) *models.Event {
	return &models.Event{Type: models.EventTypeTypingChanged, ThreadID: threadID, Sender: sender}
}

func callEvent(threadID string) *models.Event {
	return &models.Event{Type: models.EventTypeCallStateChanged, ThreadID: threadID}
}
