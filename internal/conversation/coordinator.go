package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/threadview/internal/events"
	"github.com/tOgg1/threadview/internal/logging"
)

// Coordinator lifecycle errors.
var (
	ErrCoordinatorAlreadyRunning = errors.New("coordinator already running")
	ErrCoordinatorNotRunning     = errors.New("coordinator not running")
)

const defaultLandingPollInterval = time.Millisecond

// State is the load pipeline state.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateLanding
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLanding:
		return "landing"
	default:
		return "idle"
	}
}

// Config configures a Coordinator.
type Config struct {
	ThreadID string
	Store    Store
	Renderer ItemRenderer
	Window   WindowConfig

	// Publisher, when set, is subscribed on Start for thread and global events.
	Publisher events.Publisher

	// InitialFocusID anchors the initial mapping on an interaction.
	InitialFocusID string

	// LandingPollInterval is how often the safe-landing predicate is polled.
	// Default: 1ms
	LandingPollInterval time.Duration

	// Strict panics on load computation failures. Development only.
	Strict bool

	CacheSize int
	Location  *time.Location
	Now       func() time.Time
}

// Stats counts pipeline outcomes since the coordinator was created.
type Stats struct {
	LoadsStarted       int64
	LoadsLanded        int64
	LoadsFailed        int64
	LoadsAborted       int64
	ProtocolViolations int64
}

// consumerHandle is the non-owning reference to the consumer.
type consumerHandle struct {
	consumer Consumer
}

type pendingLanding struct {
	update  *Update
	mapping *WindowMapping
}

// Coordinator serializes every load of one thread. All state below the
// mailbox is owned by the loop goroutine; only the single-flight flag, the
// pipeline state, the consumer handle and the current render state are read
// from other goroutines.
type Coordinator struct {
	config Config
	loader *Loader
	logger zerolog.Logger

	builder   *LoadRequestBuilder
	mapping   *WindowMapping
	view      ViewStateSnapshot
	awaiting  *pendingLanding
	landed    *Update
	pollStop  context.CancelFunc
	subID     string
	loopCtx   context.Context
	loopStart time.Time

	loading  atomic.Bool
	epoch    atomic.Uint64
	state    atomic.Int32
	current  atomic.Pointer[RenderState]
	consumer atomic.Pointer[consumerHandle]

	loadsStarted       atomic.Int64
	loadsLanded        atomic.Int64
	loadsFailed        atomic.Int64
	loadsAborted       atomic.Int64
	protocolViolations atomic.Int64

	mailboxMu sync.Mutex
	mailbox   []func()
	notify    chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator with an initial mapping pending.
func NewCoordinator(config Config) *Coordinator {
	if config.LandingPollInterval <= 0 {
		config.LandingPollInterval = defaultLandingPollInterval
	}
	config.Window = config.Window.normalized()

	c := &Coordinator{
		config: config,
		loader: NewLoader(LoaderConfig{
			Store:     config.Store,
			Renderer:  config.Renderer,
			ThreadID:  config.ThreadID,
			CacheSize: config.CacheSize,
			Location:  config.Location,
			Now:       config.Now,
		}),
		logger:  logging.WithThread("coordinator", config.ThreadID),
		builder: NewLoadRequestBuilder(),
		mapping: NewWindowMapping(config.Window),
		notify:  make(chan struct{}, 1),
	}
	c.builder.LoadInitialMapping(config.InitialFocusID, ScrollAction{})
	return c
}

// Start runs the coordinating loop until Stop or ctx cancellation.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrCoordinatorAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.loopCtx = loopCtx
	c.cancel = cancel
	c.running = true
	c.loopStart = time.Now()

	if c.config.Publisher != nil {
		c.subID = fmt.Sprintf("coordinator-%s-%d", c.config.ThreadID, c.loopStart.UnixNano())
		err := c.config.Publisher.Subscribe(c.subID, events.Filter{ThreadID: c.config.ThreadID}, c.HandleEvent)
		if err != nil {
			cancel()
			c.running = false
			return fmt.Errorf("subscribe to events: %w", err)
		}
	}

	c.logger.Info().
		Dur("landing_poll_interval", c.config.LandingPollInterval).
		Int("initial_window", c.config.Window.InitialSize).
		Int("page_size", c.config.Window.PageSize).
		Int("max_window", c.config.Window.MaxSize).
		Msg("coordinator starting")

	c.wg.Add(1)
	go c.run(loopCtx)
	c.post(c.loadIfNecessary)
	return nil
}

// Stop halts the loop. An in-flight load or unconfirmed landing is
// abandoned and its intent is replayed by the next Start.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrCoordinatorNotRunning
	}
	c.running = false
	c.cancel()
	subID := c.subID
	c.mu.Unlock()

	if c.config.Publisher != nil && subID != "" {
		if err := c.config.Publisher.Unsubscribe(subID); err != nil {
			c.logger.Warn().Err(err).Msg("failed to unsubscribe coordinator")
		}
	}
	c.wg.Wait()
	c.resetPipeline()
	c.logger.Info().Uint64("render_state_id", c.currentID()).Msg("coordinator stopped")
	return nil
}

// resetPipeline runs after the loop has exited. It releases the
// single-flight flag held by an abandoned load or an unconfirmed landing and
// re-records that intent so a later Start loads again.
func (c *Coordinator) resetPipeline() {
	c.epoch.Add(1)
	c.stopLandingPoll()
	inFlight := c.loading.Swap(false)
	unconfirmed := c.awaiting != nil || c.landed != nil
	c.awaiting = nil
	c.landed = nil
	c.setState(StateIdle)
	if !inFlight && !unconfirmed {
		return
	}
	if c.current.Load() == nil {
		c.builder.LoadInitialMapping(c.config.InitialFocusID, ScrollAction{})
	} else {
		c.builder.Reload(nil, nil, true, true)
	}
	c.logger.Debug().Bool("in_flight", inFlight).Msg("pipeline reset")
}

// IsRunning returns true if the loop is running.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// RenderState returns the most recently landed render state, or nil.
func (c *Coordinator) RenderState() *RenderState {
	return c.current.Load()
}

// State returns the current pipeline state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Stats returns pipeline counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		LoadsStarted:       c.loadsStarted.Load(),
		LoadsLanded:        c.loadsLanded.Load(),
		LoadsFailed:        c.loadsFailed.Load(),
		LoadsAborted:       c.loadsAborted.Load(),
		ProtocolViolations: c.protocolViolations.Load(),
	}
}

// SetConsumer attaches the view that receives landed updates.
func (c *Coordinator) SetConsumer(consumer Consumer) {
	c.consumer.Store(&consumerHandle{consumer: consumer})
	c.post(func() {
		c.abortLanding("consumer replaced")
		if c.current.Load() != nil {
			c.builder.Reload(nil, nil, true, true)
		}
		c.loadIfNecessary()
	})
}

// DetachConsumer drops the consumer. Pending landings are abandoned.
func (c *Coordinator) DetachConsumer() {
	c.consumer.Store(nil)
	c.post(func() {
		c.abortLanding("consumer detached")
	})
}

// SetViewportWidth records the layout width. Loads wait for a non-zero width;
// later changes restyle every item.
func (c *Coordinator) SetViewportWidth(width int) {
	c.post(func() {
		if width == c.view.ViewportWidth {
			return
		}
		previous := c.view.ViewportWidth
		c.view.ViewportWidth = width
		if previous > 0 && width > 0 {
			c.builder.StyleChanged()
		}
		c.loadIfNecessary()
	})
}

func (c *Coordinator) EnqueueLoadOlder() {
	c.enqueue(func(b *LoadRequestBuilder) { b.LoadOlder() })
}

func (c *Coordinator) EnqueueLoadNewer() {
	c.enqueue(func(b *LoadRequestBuilder) { b.LoadNewer() })
}

func (c *Coordinator) EnqueueLoadAndScrollToNewest() {
	c.enqueue(func(b *LoadRequestBuilder) { b.LoadAndScrollToNewest() })
}

func (c *Coordinator) EnqueueLoadAndScrollToInteraction(id string, screenFraction float64, alignment ScrollAlignment) {
	c.enqueue(func(b *LoadRequestBuilder) { b.LoadAndScrollToInteraction(id, screenFraction, alignment) })
}

// EnqueueReload reloads the window. Updated and deleted ids accumulate until
// the next load is claimed.
func (c *Coordinator) EnqueueReload(updated, deleted []string, reuseModels, reuseComponents bool) {
	updated = append([]string(nil), updated...)
	deleted = append([]string(nil), deleted...)
	c.enqueue(func(b *LoadRequestBuilder) { b.Reload(updated, deleted, reuseModels, reuseComponents) })
}

func (c *Coordinator) EnqueueReloadWithoutCaches() {
	c.enqueue(func(b *LoadRequestBuilder) { b.ReloadWithoutCaches() })
}

// ClearUnreadMessagesIndicator hides the unread marker until the app is
// backgrounded.
func (c *Coordinator) ClearUnreadMessagesIndicator() {
	c.post(func() {
		c.view.ClearedUnread = true
		c.builder.ClearOldestUnreadInteraction()
		c.loadIfNecessary()
	})
}

// SetTypingSender shows (or, with "", hides) the typing indicator.
func (c *Coordinator) SetTypingSender(sender string) {
	c.post(func() {
		c.setTypingSender(sender)
		c.loadIfNecessary()
	})
}

// SetSelectionMode toggles multi-select. The resulting load may land while
// the selection animation runs.
func (c *Coordinator) SetSelectionMode(enabled bool) {
	c.post(func() {
		if c.view.SelectionMode == enabled {
			return
		}
		c.view.SelectionMode = enabled
		c.builder.AllowDuringMultiSelectAnimation()
		c.builder.Reload(nil, nil, true, false)
		c.loadIfNecessary()
	})
}

// ScrollDidChange pages the window when the consumer nears an edge that has
// more items behind it.
func (c *Coordinator) ScrollDidChange() {
	c.post(func() {
		consumer := c.liveConsumer()
		state := c.current.Load()
		if consumer == nil || state == nil {
			return
		}
		if state.CanLoadOlderItems && consumer.IsScrolledNearTop() {
			c.builder.LoadOlder()
		}
		if state.CanLoadNewerItems && consumer.IsScrolledNearBottom() {
			c.builder.LoadNewer()
		}
		c.loadIfNecessary()
	})
}

// LoadDidLand is called by the consumer once a delivered update is applied.
func (c *Coordinator) LoadDidLand() {
	c.post(c.didLand)
}

func (c *Coordinator) enqueue(fn func(*LoadRequestBuilder)) {
	c.post(func() {
		fn(c.builder)
		c.loadIfNecessary()
	})
}

// post appends an operation to the mailbox. It never blocks.
func (c *Coordinator) post(op func()) {
	c.mailboxMu.Lock()
	c.mailbox = append(c.mailbox, op)
	c.mailboxMu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()
	defer c.stopLandingPoll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notify:
		}

		c.mailboxMu.Lock()
		ops := c.mailbox
		c.mailbox = nil
		c.mailboxMu.Unlock()

		for _, op := range ops {
			if ctx.Err() != nil {
				return
			}
			op()
		}
	}
}

// loadIfNecessary claims the single-flight flag and starts a load when the
// viewport is known, a consumer is attached and intent is pending.
func (c *Coordinator) loadIfNecessary() {
	if c.loopCtx == nil || c.loopCtx.Err() != nil {
		return
	}
	if c.view.ViewportWidth <= 0 {
		return
	}
	if c.liveConsumer() == nil {
		c.logger.Debug().Err(ErrMissingContext).Msg("load deferred")
		return
	}
	if !c.builder.HasPending() {
		return
	}
	if !c.loading.CompareAndSwap(false, true) {
		return
	}

	prev := c.current.Load()
	req, ok := c.builder.Build(prev != nil)
	if !ok {
		c.loading.Store(false)
		return
	}
	c.setState(StateLoading)
	c.loadsStarted.Add(1)

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("load_type", req.LoadType.String()).
		Str("scroll", req.ScrollAction.Kind.String()).
		Int("updated", len(req.UpdatedInteractionIDs)).
		Int("deleted", len(req.DeletedInteractionIDs)).
		Bool("reuse_models", req.CanReuseInteractionModels).
		Bool("reuse_components", req.CanReuseComponentStates).
		Msg("load claimed")

	// The mapping is only replaced on landing, which cannot happen while
	// this load is in flight; the loader clones it.
	input := LoadInput{
		Request:   req,
		Prev:      prev,
		Mapping:   c.mapping,
		ViewState: c.view,
	}
	ctx := c.loopCtx
	epoch := c.epoch.Load()
	go func() {
		update, mapping, err := c.loader.Load(ctx, input)
		c.post(func() {
			if c.epoch.Load() != epoch {
				return
			}
			c.loadFinished(req, update, mapping, err)
		})
	}()
}

func (c *Coordinator) loadFinished(req LoadRequest, update *Update, mapping *WindowMapping, err error) {
	if err != nil {
		c.loadsFailed.Add(1)
		if errors.Is(err, context.Canceled) {
			c.logger.Debug().Err(err).Str("request_id", req.RequestID).Msg("load cancelled")
		} else {
			c.logger.Error().Err(err).Str("request_id", req.RequestID).Msg("load failed")
			if c.config.Strict {
				panic(err)
			}
		}
		c.finishCycle()
		return
	}
	if c.liveConsumer() == nil {
		c.loadsAborted.Add(1)
		c.logger.Debug().Err(ErrMissingContext).Str("request_id", req.RequestID).Msg("load abandoned")
		c.finishCycle()
		return
	}

	c.setState(StateLanding)
	c.awaiting = &pendingLanding{update: update, mapping: mapping}
	c.tryLand()
}

// tryLand lands the awaiting update if the consumer is idle, otherwise it
// starts polling.
func (c *Coordinator) tryLand() {
	pending := c.awaiting
	if pending == nil {
		return
	}
	consumer := c.liveConsumer()
	if consumer == nil {
		c.abortLanding("consumer gone before landing")
		return
	}
	if !safeToLand(consumer, pending.update.Request.AllowDuringMultiSelectAnimation) {
		c.startLandingPoll(pending.update.Request.AllowDuringMultiSelectAnimation)
		return
	}
	c.awaiting = nil
	c.land(consumer, pending)
}

func (c *Coordinator) land(consumer Consumer, pending *pendingLanding) {
	state := pending.update.RenderState
	if prev := c.current.Load(); prev != nil && state.ID <= prev.ID {
		c.violation(fmt.Errorf("render state %d does not follow %d", state.ID, prev.ID))
		c.finishCycle()
		return
	}

	token := consumer.WillUpdateWithNewRenderState(state)
	c.current.Store(state)
	c.mapping = pending.mapping
	c.landed = pending.update
	c.loadsLanded.Add(1)

	c.logger.Debug().
		Str("request_id", pending.update.Request.RequestID).
		Uint64("render_state_id", state.ID).
		Str("scroll", pending.update.Scroll.Kind.String()).
		Int("added", len(pending.update.Added)).
		Int("removed", len(pending.update.Removed)).
		Int("updated", len(pending.update.Updated)).
		Msg("landing update")

	consumer.UpdateWithNewRenderState(pending.update, pending.update.Scroll, token)
}

func (c *Coordinator) didLand() {
	if c.landed == nil {
		c.violation(errors.New("load did land with no landing pending"))
		return
	}
	c.landed = nil
	c.finishCycle()
}

// abortLanding drops a computed or delivered update whose consumer is gone.
func (c *Coordinator) abortLanding(reason string) {
	if c.awaiting == nil && c.landed == nil {
		return
	}
	c.stopLandingPoll()
	if c.awaiting != nil {
		c.loadsAborted.Add(1)
	}
	c.awaiting = nil
	c.landed = nil
	c.logger.Debug().Err(ErrMissingContext).Str("reason", reason).Msg("landing abandoned")
	c.finishCycle()
}

// finishCycle returns to idle and immediately services pending intent.
func (c *Coordinator) finishCycle() {
	c.stopLandingPoll()
	c.setState(StateIdle)
	if !c.loading.CompareAndSwap(true, false) {
		c.violation(errors.New("cleared single-flight flag that was not set"))
	}
	c.loadIfNecessary()
}

func (c *Coordinator) startLandingPoll(allowMultiSelect bool) {
	c.stopLandingPoll()
	ctx, cancel := context.WithCancel(c.loopCtx)
	c.pollStop = cancel

	interval := c.config.LandingPollInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			consumer := c.liveConsumer()
			if consumer == nil || safeToLand(consumer, allowMultiSelect) {
				c.post(c.tryLand)
				return
			}
		}
	}()
}

func (c *Coordinator) stopLandingPoll() {
	if c.pollStop != nil {
		c.pollStop()
		c.pollStop = nil
	}
}

func safeToLand(consumer ViewState, allowMultiSelect bool) bool {
	if consumer.IsLayoutApplyingUpdate() ||
		consumer.AreCellsAnimating() ||
		consumer.IsKeyboardAnimating() {
		return false
	}
	return allowMultiSelect || !consumer.IsMultiSelectAnimating()
}

func (c *Coordinator) liveConsumer() Consumer {
	handle := c.consumer.Load()
	if handle == nil {
		return nil
	}
	return handle.consumer
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Coordinator) setTypingSender(sender string) {
	if c.view.TypingSender == sender {
		return
	}
	c.view.TypingSender = sender
	c.builder.Reload(nil, nil, true, true)
}

func (c *Coordinator) violation(err error) {
	c.protocolViolations.Add(1)
	c.logger.Error().
		Err(fmt.Errorf("%w: %w", ErrProtocolViolation, err)).
		Bool("assertion", true).
		Msg("load protocol violated")
}

func (c *Coordinator) currentID() uint64 {
	if state := c.current.Load(); state != nil {
		return state.ID
	}
	return 0
}
