package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/threadview/internal/config"
	"github.com/tOgg1/threadview/internal/conversation"
	"github.com/tOgg1/threadview/internal/db"
	"github.com/tOgg1/threadview/internal/events"
	"github.com/tOgg1/threadview/internal/logging"
)

// session wires a coordinator for one thread to the configured database.
type session struct {
	database    *db.DB
	publisher   *events.InMemoryPublisher
	store       *db.Store
	watcher     *db.Watcher
	coordinator *conversation.Coordinator
	thread      string
	logger      zerolog.Logger
}

func openSession(ctx context.Context, threadID, focusID string) (*session, error) {
	database, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	s, err := newSession(ctx, GetConfig(), database, threadID, focusID)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	return s, nil
}

func newSession(ctx context.Context, cfg *config.Config, database *db.DB, threadID, focusID string) (*session, error) {
	publisher := events.NewInMemoryPublisher()
	store := db.NewStore(database, db.WithPublisher(publisher))
	if _, err := store.Thread(ctx, threadID); err != nil {
		return nil, fmt.Errorf("failed to open thread %s: %w", threadID, err)
	}

	coordinatorCfg := coordinatorConfig(cfg, threadID, store, publisher)
	coordinatorCfg.InitialFocusID = focusID
	s := &session{
		database:    database,
		publisher:   publisher,
		store:       store,
		coordinator: conversation.NewCoordinator(coordinatorCfg),
		thread:      threadID,
		logger:      logging.WithThread("session", threadID),
	}
	if cfg.Watch.Enabled {
		s.watcher = db.NewWatcher(db.WatcherConfig{Interval: cfg.Watch.Interval}, database, publisher)
	}
	return s, nil
}

func coordinatorConfig(cfg *config.Config, threadID string, store conversation.Store, publisher events.Publisher) conversation.Config {
	return conversation.Config{
		ThreadID:  threadID,
		Store:     store,
		Renderer:  conversation.TextRenderer{Gutter: 2},
		Publisher: publisher,
		Window: conversation.WindowConfig{
			InitialSize: cfg.Loader.InitialWindowSize,
			PageSize:    cfg.Loader.PageSize,
			MaxSize:     cfg.Loader.MaxWindowSize,
		},
		LandingPollInterval: cfg.Landing.PollInterval,
		Strict:              cfg.Landing.Strict,
		Location:            time.Local,
	}
}

// start attaches the consumer and runs the watcher and the coordinator.
func (s *session) start(ctx context.Context, consumer conversation.Consumer, width int) error {
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			if !errors.Is(err, db.ErrWatcherInMemory) {
				return err
			}
			s.logger.Warn().Err(err).Msg("external change watcher disabled")
			s.watcher = nil
		}
	}
	s.coordinator.SetConsumer(consumer)
	if width > 0 {
		s.coordinator.SetViewportWidth(width)
	}
	return s.coordinator.Start(ctx)
}

func (s *session) Close() error {
	if s.coordinator.IsRunning() {
		_ = s.coordinator.Stop()
	}
	if s.watcher != nil && s.watcher.IsRunning() {
		_ = s.watcher.Stop()
	}
	stats := s.coordinator.Stats()
	s.logger.Debug().
		Int64("loads_started", stats.LoadsStarted).
		Int64("loads_landed", stats.LoadsLanded).
		Int64("loads_failed", stats.LoadsFailed).
		Int64("protocol_violations", stats.ProtocolViolations).
		Msg("session closed")
	return s.database.Close()
}
