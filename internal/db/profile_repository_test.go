package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadview/internal/models"
)

func TestProfileRepository_EventsByScope(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	rec := newRecorder(t)
	repo := NewProfileRepository(db, WithPublisher(rec))

	require.NoError(t, repo.Upsert(ctx, models.Profile{Address: "alice", DisplayName: "Alice"}))
	require.NoError(t, repo.SetAvatarBlurred(ctx, "alice", true))
	require.NoError(t, repo.SetBlocked(ctx, "mallory", true))

	events := rec.all()
	require.Len(t, events, 3)
	require.Equal(t, models.EventTypePeerProfileChanged, events[0].Type)
	require.Equal(t, []string{"alice"}, events[0].Addresses)
	require.Equal(t, models.EventTypePeerProfileChanged, events[1].Type)
	require.Equal(t, models.EventTypeProfilesChanged, events[2].Type)
	require.True(t, events[2].IsGlobal())

	profiles, err := repo.Profiles(ctx, []string{"alice", "mallory"})
	require.NoError(t, err)
	require.True(t, profiles["alice"].AvatarBlurred)
	require.Equal(t, "Alice", profiles["alice"].DisplayName)
	require.True(t, profiles["mallory"].Blocked)
	require.Equal(t, "mallory", profiles["mallory"].Name())
}

func TestProfileRepository_UpsertRequiresAddress(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	require.Error(t, NewProfileRepository(db).Upsert(context.Background(), models.Profile{}))
}

func TestProfileRepository_EmptyLookup(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	profiles, err := NewProfileRepository(db).Profiles(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, profiles)
}
