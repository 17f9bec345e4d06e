package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tOgg1/threadview/internal/models"
)

// ThreadRepository handles thread persistence.
type ThreadRepository struct {
	db   *DB
	opts repoOptions
}

// NewThreadRepository creates a new ThreadRepository.
func NewThreadRepository(db *DB, opts ...RepositoryOption) *ThreadRepository {
	return &ThreadRepository{db: db, opts: buildOptions(opts)}
}

// Create inserts a thread and its participants.
func (r *ThreadRepository) Create(ctx context.Context, thread *models.Thread) error {
	if err := thread.Validate(); err != nil {
		return err
	}
	if thread.ID == "" {
		thread.ID = uuid.New().String()
	}
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = r.opts.now()
	}

	return r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO threads (id, title, is_group, created_at) VALUES (?, ?, ?, ?)
		`, thread.ID, thread.Title, boolToInt(thread.IsGroup), formatTime(thread.CreatedAt)); err != nil {
			return fmt.Errorf("failed to insert thread: %w", err)
		}
		for _, address := range thread.Participants {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO thread_participants (thread_id, address) VALUES (?, ?)
			`, thread.ID, address); err != nil {
				return fmt.Errorf("failed to insert participant: %w", err)
			}
		}
		return nil
	})
}

// Get retrieves a thread by ID, including participants.
func (r *ThreadRepository) Get(ctx context.Context, id string) (*models.Thread, error) {
	return getThread(ctx, r.db, id)
}

// List returns all threads ordered by creation time.
func (r *ThreadRepository) List(ctx context.Context) ([]*models.Thread, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM threads ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}
	rows.Close()

	threads := make([]*models.Thread, 0, len(ids))
	for _, id := range ids {
		thread, err := getThread(ctx, r.db, id)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

func getThread(ctx context.Context, q queryer, id string) (*models.Thread, error) {
	var (
		thread    models.Thread
		isGroup   int
		createdAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, title, is_group, created_at FROM threads WHERE id = ?
	`, id).Scan(&thread.ID, &thread.Title, &isGroup, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to read thread: %w", err)
	}
	thread.IsGroup = isGroup == 1
	thread.CreatedAt = parseTime(createdAt)

	rows, err := q.QueryContext(ctx, `
		SELECT address FROM thread_participants WHERE thread_id = ? ORDER BY address
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		thread.Participants = append(thread.Participants, address)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return &thread, nil
}
