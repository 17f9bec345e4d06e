package db

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadview/internal/models"
)

type fakeDetector struct {
	mu sync.Mutex
	fp Fingerprint
}

func (d *fakeDetector) Fingerprint(context.Context) (Fingerprint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fp, nil
}

func (d *fakeDetector) bump(data, schema int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fp.DataVersion += data
	d.fp.SchemaVersion += schema
}

func eventTypes(r *recorder) []models.EventType {
	var out []models.EventType
	for _, e := range r.all() {
		out = append(out, e.Type)
	}
	return out
}

func TestDefaultWatcherConfig(t *testing.T) {
	require.Positive(t, DefaultWatcherConfig().Interval)
}

func TestWatcher_RefusesInMemoryWithoutDetector(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	w := NewWatcher(WatcherConfig{}, db, nil)
	require.ErrorIs(t, w.Start(context.Background()), ErrWatcherInMemory)
	require.False(t, w.IsRunning())
}

func TestWatcher_StartStop(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	w := NewWatcher(WatcherConfig{Interval: time.Millisecond}, db, nil, WithDetector(&fakeDetector{}))
	require.ErrorIs(t, w.Stop(), ErrWatcherNotRunning)
	require.NoError(t, w.Start(context.Background()))
	require.True(t, w.IsRunning())
	require.ErrorIs(t, w.Start(context.Background()), ErrWatcherAlreadyRunning)
	require.NoError(t, w.Stop())
	require.False(t, w.IsRunning())
}

func TestWatcher_TickClassifiesChanges(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	rec := newRecorder(t)
	detector := &fakeDetector{}

	// Interval long enough that only explicit ticks run.
	w := NewWatcher(WatcherConfig{Interval: time.Hour}, db, rec, WithDetector(detector))
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	w.tick(ctx)
	require.Empty(t, rec.all(), "unchanged fingerprint publishes nothing")

	detector.bump(1, 0)
	w.tick(ctx)
	require.Equal(t, []models.EventType{models.EventTypeDatabaseReset}, eventTypes(rec))

	detector.bump(0, 1)
	w.tick(ctx)
	require.Equal(t, []models.EventType{models.EventTypeDatabaseReset, models.EventTypeSchemaReset}, eventTypes(rec))

	// A local commit between samples explains the data change.
	createThread(t, db)
	detector.bump(1, 0)
	w.tick(ctx)
	require.Len(t, rec.all(), 2)
}

func TestWatcher_DetectsOtherConnectionWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threadview.db")
	ctx := context.Background()

	watched, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer watched.Close()
	_, err = watched.MigrateUp(ctx)
	require.NoError(t, err)

	writer, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer writer.Close()

	rec := newRecorder(t)
	w := NewWatcher(WatcherConfig{Interval: 5 * time.Millisecond}, watched, rec)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	createThread(t, writer)

	require.Eventually(t, func() bool {
		for _, typ := range eventTypes(rec) {
			if typ == models.EventTypeDatabaseReset {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWatcher_PublishesExternalActivityBeforeReset(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	thread := createThread(t, db, "alice", "bob")
	rec := newRecorder(t)
	detector := &fakeDetector{}

	w := NewWatcher(WatcherConfig{Interval: time.Hour}, db, rec, WithDetector(detector))
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// A plain Exec bypasses the local write counter, as another process would.
	_, err := db.ExecContext(ctx, `
		INSERT INTO thread_activity (thread_id, typing_sender, call_active, updated_at)
		VALUES (?, 'alice', 1, '2026-03-14T09:00:00Z')
	`, thread.ID)
	require.NoError(t, err)
	detector.bump(1, 0)
	w.tick(ctx)

	events := rec.all()
	require.Len(t, events, 3)
	types := []models.EventType{events[0].Type, events[1].Type}
	require.ElementsMatch(t, []models.EventType{models.EventTypeTypingChanged, models.EventTypeCallStateChanged}, types)
	require.Equal(t, models.EventTypeDatabaseReset, events[2].Type)

	// Local writes are published by the repository, not the watcher.
	require.NoError(t, NewActivityRepository(db).SetTyping(ctx, thread.ID, ""))
	detector.bump(1, 0)
	w.tick(ctx)
	require.Len(t, rec.all(), 3)
}
