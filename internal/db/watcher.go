package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/threadview/internal/events"
	"github.com/tOgg1/threadview/internal/logging"
	"github.com/tOgg1/threadview/internal/models"
)

// Watcher errors.
var (
	ErrWatcherAlreadyRunning = errors.New("watcher already running")
	ErrWatcherNotRunning     = errors.New("watcher not running")
	ErrWatcherInMemory       = errors.New("cannot watch an in-memory database without a detector")
)

// WatcherConfig contains configuration for the external change watcher.
type WatcherConfig struct {
	// Interval is how often the database fingerprint is sampled.
	// Default: 250ms
	Interval time.Duration
}

// DefaultWatcherConfig returns sensible defaults.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{Interval: 250 * time.Millisecond}
}

// Fingerprint identifies the on-disk state of the database.
type Fingerprint struct {
	DataVersion   int64
	SchemaVersion int64
}

// Detector samples the current database fingerprint.
type Detector interface {
	Fingerprint(ctx context.Context) (Fingerprint, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context) (Fingerprint, error)

// Fingerprint implements Detector.
func (f DetectorFunc) Fingerprint(ctx context.Context) (Fingerprint, error) {
	return f(ctx)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDetector replaces the PRAGMA based detector.
func WithDetector(d Detector) WatcherOption {
	return func(w *Watcher) {
		w.detector = d
	}
}

// Watcher notices writes made to the database file by other processes and
// publishes them as reset events, preceded by typing and call events when
// thread activity changed. Commits made through the watched pool are
// recognised via DB.LocalWrites and ignored.
type Watcher struct {
	config    WatcherConfig
	db        *DB
	publisher events.Publisher
	detector  Detector
	logger    zerolog.Logger

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	last       Fingerprint
	lastLocal  int64
	closeConn  func() error
	resetCount int

	activityRepo *ActivityRepository
	activity     map[string]models.ThreadActivity
}

// NewWatcher creates a new Watcher.
func NewWatcher(config WatcherConfig, db *DB, publisher events.Publisher, opts ...WatcherOption) *Watcher {
	if config.Interval <= 0 {
		config.Interval = DefaultWatcherConfig().Interval
	}
	w := &Watcher{
		config:    config,
		db:        db,
		publisher: publisher,
		logger:    logging.Component("db-watcher"),

		activityRepo: NewActivityRepository(db),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start takes a baseline fingerprint and begins polling.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrWatcherAlreadyRunning
	}
	if w.detector == nil {
		if w.db.inMemory {
			return ErrWatcherInMemory
		}
		detector, closeConn, err := newPragmaDetector(ctx, w.db)
		if err != nil {
			return err
		}
		w.detector = detector
		w.closeConn = closeConn
	}

	baseline, err := w.detector.Fingerprint(ctx)
	if err != nil {
		return fmt.Errorf("failed to read database fingerprint: %w", err)
	}
	w.last = baseline
	w.lastLocal = w.db.LocalWrites()
	if activity, err := w.activityRepo.All(ctx); err == nil {
		w.activity = activity
	} else {
		w.logger.Warn().Err(err).Msg("failed to read thread activity baseline")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.logger.Info().
		Dur("interval", w.config.Interval).
		Str("path", w.db.Path()).
		Msg("database watcher starting")

	w.wg.Add(1)
	go w.runLoop(loopCtx)
	return nil
}

// Stop halts polling and releases the pinned connection.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return ErrWatcherNotRunning
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closeConn != nil {
		if err := w.closeConn(); err != nil {
			w.logger.Warn().Err(err).Msg("failed to close watcher connection")
		}
		w.closeConn = nil
		w.detector = nil
	}
	w.logger.Info().Int("resets", w.resetCount).Msg("database watcher stopped")
	return nil
}

// IsRunning returns true if the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) runLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick samples once and publishes at most one reset event.
func (w *Watcher) tick(ctx context.Context) {
	current, err := w.detector.Fingerprint(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Warn().Err(err).Msg("failed to sample database fingerprint")
		return
	}
	local := w.db.LocalWrites()

	w.mu.Lock()
	previous := w.last
	localChanged := local != w.lastLocal
	w.last = current
	w.lastLocal = local
	w.mu.Unlock()

	var eventType models.EventType
	switch {
	case current.SchemaVersion != previous.SchemaVersion:
		eventType = models.EventTypeSchemaReset
		w.syncActivity(ctx)
	case current.DataVersion != previous.DataVersion && !localChanged:
		eventType = models.EventTypeDatabaseReset
	case current.DataVersion != previous.DataVersion:
		// Local commits were already published in-process.
		w.syncActivity(ctx)
		return
	default:
		return
	}

	if eventType == models.EventTypeDatabaseReset && w.publisher != nil {
		for _, event := range w.syncActivity(ctx) {
			w.publisher.Publish(ctx, event)
		}
	}

	w.mu.Lock()
	w.resetCount++
	w.mu.Unlock()

	w.logger.Info().
		Str("event", string(eventType)).
		Int64("data_version", current.DataVersion).
		Int64("schema_version", current.SchemaVersion).
		Msg("external database change detected")

	if w.publisher != nil {
		w.publisher.Publish(ctx, &models.Event{Type: eventType})
	}
}

// syncActivity re-reads thread activity and returns the typing and call
// events that explain the difference from the previous snapshot.
func (w *Watcher) syncActivity(ctx context.Context) []*models.Event {
	activity, err := w.activityRepo.All(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to read thread activity")
		return nil
	}

	w.mu.Lock()
	previous := w.activity
	w.activity = activity
	w.mu.Unlock()

	changes := activityEvents(previous, activity)
	if len(changes) > 0 {
		w.logger.Debug().Int("events", len(changes)).Msg("external thread activity change")
	}
	return changes
}

// newPragmaDetector pins one connection so PRAGMA data_version reports
// changes made by every other connection, including other processes.
func newPragmaDetector(ctx context.Context, db *DB) (Detector, func() error, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pin watcher connection: %w", err)
	}
	detector := DetectorFunc(func(ctx context.Context) (Fingerprint, error) {
		var fp Fingerprint
		if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&fp.DataVersion); err != nil {
			return Fingerprint{}, err
		}
		if err := conn.QueryRowContext(ctx, `PRAGMA schema_version`).Scan(&fp.SchemaVersion); err != nil {
			return Fingerprint{}, err
		}
		return fp, nil
	})
	return detector, conn.Close, nil
}
