package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/tOgg1/threadview/internal/logging"
	"github.com/tOgg1/threadview/internal/models"
)

// maxQueryIDs bounds IN (...) lists to stay under SQLite's variable limit.
const maxQueryIDs = 500

// NewestSortID is an upper sentinel for KeysBefore when anchoring at newest.
const NewestSortID int64 = math.MaxInt64

// InteractionRepository handles interaction persistence and windowed reads.
type InteractionRepository struct {
	db   *DB
	opts repoOptions
}

// NewInteractionRepository creates a new InteractionRepository.
func NewInteractionRepository(db *DB, opts ...RepositoryOption) *InteractionRepository {
	return &InteractionRepository{db: db, opts: buildOptions(opts)}
}

// Insert appends an interaction to its thread. The store assigns SortID,
// and ID/CreatedAt when unset.
func (r *InteractionRepository) Insert(ctx context.Context, interaction *models.Interaction) error {
	if err := interaction.Validate(); err != nil {
		return err
	}
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = r.opts.now()
	}
	if interaction.Kind != models.InteractionKindIncoming {
		interaction.Read = true
	}
	interaction.Version = 1

	err := r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO interactions (id, thread_id, kind, author, body, read, version, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			interaction.ID,
			interaction.ThreadID,
			string(interaction.Kind),
			interaction.Author,
			interaction.Body,
			boolToInt(interaction.Read),
			interaction.Version,
			formatTime(interaction.CreatedAt),
		)
		if err != nil {
			return err
		}
		sortID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		interaction.SortID = sortID
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	r.db.logger.Debug().
		Str("thread_id", interaction.ThreadID).
		Str("interaction_id", interaction.ID).
		Str("body", logging.Preview(interaction.Body, 0)).
		Msg("inserted interaction")

	r.opts.publish(ctx, &models.Event{
		Type:       models.EventTypeInteractionsChanged,
		ThreadID:   interaction.ThreadID,
		UpdatedIDs: []string{interaction.ID},
	})
	return nil
}

// Edit replaces the body of an interaction and bumps its version.
func (r *InteractionRepository) Edit(ctx context.Context, id, body string) error {
	if strings.TrimSpace(body) == "" {
		return models.ErrEmptyBody
	}
	var threadID string
	err := r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT thread_id FROM interactions WHERE id = ?`, id).Scan(&threadID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInteractionNotFound
			}
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE interactions SET body = ?, version = version + 1, edited_at = ? WHERE id = ?
		`, body, formatTime(r.opts.now()), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to edit interaction: %w", err)
	}

	r.opts.publish(ctx, &models.Event{
		Type:       models.EventTypeInteractionsChanged,
		ThreadID:   threadID,
		UpdatedIDs: []string{id},
	})
	return nil
}

// Delete removes an interaction.
func (r *InteractionRepository) Delete(ctx context.Context, id string) error {
	var threadID string
	err := r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT thread_id FROM interactions WHERE id = ?`, id).Scan(&threadID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInteractionNotFound
			}
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM interactions WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}

	r.opts.publish(ctx, &models.Event{
		Type:       models.EventTypeInteractionsChanged,
		ThreadID:   threadID,
		DeletedIDs: []string{id},
	})
	return nil
}

// MarkReadThrough marks every unread incoming interaction up to and including
// sortID as read, returning the affected IDs.
func (r *InteractionRepository) MarkReadThrough(ctx context.Context, threadID string, sortID int64) ([]string, error) {
	var ids []string
	err := r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		ids = ids[:0]
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM interactions
			WHERE thread_id = ? AND read = 0 AND kind = ? AND sort_id <= ?
		`, threadID, string(models.InteractionKindIncoming), sortID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		_, err = tx.ExecContext(ctx, `
			UPDATE interactions SET read = 1, version = version + 1
			WHERE thread_id = ? AND read = 0 AND kind = ? AND sort_id <= ?
		`, threadID, string(models.InteractionKindIncoming), sortID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark interactions read: %w", err)
	}

	if len(ids) > 0 {
		r.opts.publish(ctx, &models.Event{
			Type:       models.EventTypeInteractionsChanged,
			ThreadID:   threadID,
			UpdatedIDs: append([]string(nil), ids...),
		})
	}
	return ids, nil
}

// Get retrieves an interaction by ID.
func (r *InteractionRepository) Get(ctx context.Context, id string) (*models.Interaction, error) {
	found, err := r.ByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrInteractionNotFound
	}
	return &found[0], nil
}

// ByIDs loads the interactions with the given IDs. Missing IDs are skipped.
func (r *InteractionRepository) ByIDs(ctx context.Context, ids []string) ([]models.Interaction, error) {
	out := make([]models.Interaction, 0, len(ids))
	for start := 0; start < len(ids); start += maxQueryIDs {
		end := min(start+maxQueryIDs, len(ids))
		chunk := ids[start:end]
		rows, err := r.db.QueryContext(ctx, `
			SELECT sort_id, id, thread_id, kind, author, body, read, version, created_at, edited_at
			FROM interactions WHERE id IN (`+placeholders(len(chunk))+`)
			ORDER BY sort_id
		`, stringArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query interactions: %w", err)
		}
		for rows.Next() {
			interaction, err := scanInteraction(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, interaction)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating interactions: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

// Bounds returns the count and sort-key extent of a thread.
func (r *InteractionRepository) Bounds(ctx context.Context, threadID string) (models.ThreadBounds, error) {
	var (
		bounds models.ThreadBounds
		oldest sql.NullInt64
		newest sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(sort_id), MAX(sort_id) FROM interactions WHERE thread_id = ?
	`, threadID).Scan(&bounds.Count, &oldest, &newest)
	if err != nil {
		return models.ThreadBounds{}, fmt.Errorf("failed to query thread bounds: %w", err)
	}
	bounds.OldestSortID = oldest.Int64
	bounds.NewestSortID = newest.Int64
	return bounds, nil
}

// KeysBefore returns up to limit keys strictly older than beforeSortID, in
// ascending order.
func (r *InteractionRepository) KeysBefore(ctx context.Context, threadID string, beforeSortID int64, limit int) ([]models.InteractionKey, error) {
	if limit <= 0 {
		return nil, nil
	}
	keys, err := r.queryKeys(ctx, `
		SELECT id, sort_id, version FROM interactions
		WHERE thread_id = ? AND sort_id < ?
		ORDER BY sort_id DESC LIMIT ?
	`, threadID, beforeSortID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys, nil
}

// KeysFrom returns up to limit keys at or newer than fromSortID, ascending.
func (r *InteractionRepository) KeysFrom(ctx context.Context, threadID string, fromSortID int64, limit int) ([]models.InteractionKey, error) {
	if limit <= 0 {
		return nil, nil
	}
	return r.queryKeys(ctx, `
		SELECT id, sort_id, version FROM interactions
		WHERE thread_id = ? AND sort_id >= ?
		ORDER BY sort_id ASC LIMIT ?
	`, threadID, fromSortID, limit)
}

// KeysBetween returns every key with fromSortID <= sort_id <= toSortID, ascending.
func (r *InteractionRepository) KeysBetween(ctx context.Context, threadID string, fromSortID, toSortID int64) ([]models.InteractionKey, error) {
	return r.queryKeys(ctx, `
		SELECT id, sort_id, version FROM interactions
		WHERE thread_id = ? AND sort_id >= ? AND sort_id <= ?
		ORDER BY sort_id ASC
	`, threadID, fromSortID, toSortID)
}

// KeysByID returns the keys of the given interactions that belong to threadID.
func (r *InteractionRepository) KeysByID(ctx context.Context, threadID string, ids []string) ([]models.InteractionKey, error) {
	var out []models.InteractionKey
	for start := 0; start < len(ids); start += maxQueryIDs {
		end := min(start+maxQueryIDs, len(ids))
		chunk := ids[start:end]
		args := append([]any{threadID}, stringArgs(chunk)...)
		keys, err := r.queryKeys(ctx, `
			SELECT id, sort_id, version FROM interactions
			WHERE thread_id = ? AND id IN (`+placeholders(len(chunk))+`)
			ORDER BY sort_id ASC
		`, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
	}
	return out, nil
}

// OldestUnread returns the key of the oldest unread incoming interaction, or
// nil when everything has been read.
func (r *InteractionRepository) OldestUnread(ctx context.Context, threadID string) (*models.InteractionKey, error) {
	keys, err := r.queryKeys(ctx, `
		SELECT id, sort_id, version FROM interactions
		WHERE thread_id = ? AND read = 0 AND kind = ?
		ORDER BY sort_id ASC LIMIT 1
	`, threadID, string(models.InteractionKindIncoming))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return &keys[0], nil
}

func (r *InteractionRepository) queryKeys(ctx context.Context, query string, args ...any) ([]models.InteractionKey, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interaction keys: %w", err)
	}
	defer rows.Close()

	var keys []models.InteractionKey
	for rows.Next() {
		var key models.InteractionKey
		if err := rows.Scan(&key.ID, &key.SortID, &key.Version); err != nil {
			return nil, fmt.Errorf("failed to scan interaction key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interaction keys: %w", err)
	}
	return keys, nil
}

func scanInteraction(rows *sql.Rows) (models.Interaction, error) {
	var (
		interaction models.Interaction
		kind        string
		read        int
		createdAt   string
		editedAt    sql.NullString
	)
	err := rows.Scan(
		&interaction.SortID,
		&interaction.ID,
		&interaction.ThreadID,
		&kind,
		&interaction.Author,
		&interaction.Body,
		&read,
		&interaction.Version,
		&createdAt,
		&editedAt,
	)
	if err != nil {
		return models.Interaction{}, fmt.Errorf("failed to scan interaction: %w", err)
	}
	interaction.Kind = models.InteractionKind(kind)
	interaction.Read = read == 1
	interaction.CreatedAt = parseTime(createdAt)
	interaction.EditedAt = parseNullableTime(editedAt)
	return interaction, nil
}
