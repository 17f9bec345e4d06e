package db

import (
	"context"

	"github.com/tOgg1/threadview/internal/models"
)

// Store is the read side the conversation loader queries. It composes the
// thread, interaction, profile and activity repositories over one pool.
type Store struct {
	Threads      *ThreadRepository
	Interactions *InteractionRepository
	Profiles     *ProfileRepository
	Activity     *ActivityRepository
}

// NewStore creates a Store whose repositories share opts.
func NewStore(db *DB, opts ...RepositoryOption) *Store {
	return &Store{
		Threads:      NewThreadRepository(db, opts...),
		Interactions: NewInteractionRepository(db, opts...),
		Profiles:     NewProfileRepository(db, opts...),
		Activity:     NewActivityRepository(db, opts...),
	}
}

func (s *Store) Thread(ctx context.Context, threadID string) (*models.Thread, error) {
	return s.Threads.Get(ctx, threadID)
}

func (s *Store) Bounds(ctx context.Context, threadID string) (models.ThreadBounds, error) {
	return s.Interactions.Bounds(ctx, threadID)
}

func (s *Store) KeysBefore(ctx context.Context, threadID string, beforeSortID int64, limit int) ([]models.InteractionKey, error) {
	return s.Interactions.KeysBefore(ctx, threadID, beforeSortID, limit)
}

func (s *Store) KeysFrom(ctx context.Context, threadID string, fromSortID int64, limit int) ([]models.InteractionKey, error) {
	return s.Interactions.KeysFrom(ctx, threadID, fromSortID, limit)
}

func (s *Store) KeysBetween(ctx context.Context, threadID string, fromSortID, toSortID int64) ([]models.InteractionKey, error) {
	return s.Interactions.KeysBetween(ctx, threadID, fromSortID, toSortID)
}

func (s *Store) KeysByID(ctx context.Context, threadID string, ids []string) ([]models.InteractionKey, error) {
	return s.Interactions.KeysByID(ctx, threadID, ids)
}

func (s *Store) InteractionsByID(ctx context.Context, ids []string) ([]models.Interaction, error) {
	return s.Interactions.ByIDs(ctx, ids)
}

func (s *Store) OldestUnread(ctx context.Context, threadID string) (*models.InteractionKey, error) {
	return s.Interactions.OldestUnread(ctx, threadID)
}

func (s *Store) ProfilesByAddress(ctx context.Context, addresses []string) (map[string]models.Profile, error) {
	return s.Profiles.Profiles(ctx, addresses)
}
