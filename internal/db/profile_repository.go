package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tOgg1/threadview/internal/models"
)

// ProfileRepository handles peer profile persistence.
type ProfileRepository struct {
	db   *DB
	opts repoOptions
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *DB, opts ...RepositoryOption) *ProfileRepository {
	return &ProfileRepository{db: db, opts: buildOptions(opts)}
}

// Upsert writes a profile and announces the peer change.
func (r *ProfileRepository) Upsert(ctx context.Context, profile models.Profile) error {
	if strings.TrimSpace(profile.Address) == "" {
		return fmt.Errorf("profile address is required")
	}
	err := r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (address, display_name, avatar_blurred, blocked)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(address) DO UPDATE SET
				display_name = excluded.display_name,
				avatar_blurred = excluded.avatar_blurred,
				blocked = excluded.blocked
		`, profile.Address, profile.DisplayName, boolToInt(profile.AvatarBlurred), boolToInt(profile.Blocked))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	r.opts.publish(ctx, &models.Event{
		Type:      models.EventTypePeerProfileChanged,
		Addresses: []string{profile.Address},
	})
	return nil
}

// SetAvatarBlurred toggles the avatar blur setting for one peer.
func (r *ProfileRepository) SetAvatarBlurred(ctx context.Context, address string, blurred bool) error {
	if err := r.update(ctx, `avatar_blurred`, address, blurred); err != nil {
		return err
	}
	r.opts.publish(ctx, &models.Event{
		Type:      models.EventTypePeerProfileChanged,
		Addresses: []string{address},
	})
	return nil
}

// SetBlocked changes the block list, which affects every thread.
func (r *ProfileRepository) SetBlocked(ctx context.Context, address string, blocked bool) error {
	if err := r.update(ctx, `blocked`, address, blocked); err != nil {
		return err
	}
	r.opts.publish(ctx, &models.Event{Type: models.EventTypeProfilesChanged})
	return nil
}

func (r *ProfileRepository) update(ctx context.Context, column, address string, value bool) error {
	err := r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO profiles (address, %[1]s) VALUES (?, ?)
			ON CONFLICT(address) DO UPDATE SET %[1]s = excluded.%[1]s
		`, column), address, boolToInt(value))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", column, err)
	}
	return nil
}

// Profiles returns the stored profiles for the given addresses. Unknown
// addresses are absent from the result.
func (r *ProfileRepository) Profiles(ctx context.Context, addresses []string) (map[string]models.Profile, error) {
	result := make(map[string]models.Profile, len(addresses))
	if len(addresses) == 0 {
		return result, nil
	}

	query := `SELECT address, display_name, avatar_blurred, blocked FROM profiles WHERE address IN (` + placeholders(len(addresses)) + `)`
	rows, err := r.db.QueryContext(ctx, query, stringArgs(addresses)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			profile models.Profile
			blurred int
			blocked int
		)
		if err := rows.Scan(&profile.Address, &profile.DisplayName, &blurred, &blocked); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profile.AvatarBlurred = blurred == 1
		profile.Blocked = blocked == 1
		result[profile.Address] = profile
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return result, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
