package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/threadview/internal/logging"
	"github.com/tOgg1/threadview/internal/models"
)

const (
	unreadIndicatorID = "unread-indicator"
	dateHeaderPrefix  = "date:"
	typingPrefix      = "typing:"
)

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	Store    Store
	Renderer ItemRenderer
	ThreadID string

	// CacheSize bounds the interaction model cache.
	CacheSize int

	// Location is used to split the list into days. Default: time.Local.
	Location *time.Location

	Now func() time.Time
}

// LoadInput is the snapshot a single load computes from.
type LoadInput struct {
	Request   LoadRequest
	Prev      *RenderState
	Mapping   *WindowMapping
	ViewState ViewStateSnapshot
}

// LoadStats counts how each interaction of a load was materialized.
type LoadStats struct {
	Reused    int `json:"reused"`
	FromCache int `json:"from_cache"`
	Fetched   int `json:"fetched"`
	Rendered  int `json:"rendered"`
}

// Loader computes render states. It keeps a model cache across loads and is
// driven by one load at a time.
type Loader struct {
	store    Store
	renderer ItemRenderer
	threadID string
	location *time.Location
	now      func() time.Time
	cache    *itemCache
	logger   zerolog.Logger
}

// NewLoader creates a Loader for one thread.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.Renderer == nil {
		cfg.Renderer = TextRenderer{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Loader{
		store:    cfg.Store,
		renderer: cfg.Renderer,
		threadID: cfg.ThreadID,
		location: cfg.Location,
		now:      cfg.Now,
		cache:    newItemCache(cfg.CacheSize),
		logger:   logging.WithThread("loader", cfg.ThreadID),
	}
}

// Load resolves the window for in.Request and materializes the resulting
// render state. The input mapping is never mutated; the resolved mapping is
// returned alongside the update.
func (l *Loader) Load(ctx context.Context, in LoadInput) (*Update, *WindowMapping, error) {
	started := time.Now()
	update, mapping, err := l.load(ctx, in)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLoadComputationFailure, err)
	}

	l.logger.Debug().
		Str("request_id", in.Request.RequestID).
		Str("load_type", in.Request.LoadType.String()).
		Str("update_kind", update.Kind.String()).
		Uint64("render_state_id", update.RenderState.ID).
		Int("items", len(update.RenderState.Items)).
		Int("reused", update.Stats.Reused).
		Int("cached", update.Stats.FromCache).
		Int("fetched", update.Stats.Fetched).
		Int("cache_size", l.cache.stats().Size).
		Dur("duration", time.Since(started)).
		Msg("load computed")
	return update, mapping, nil
}

func (l *Loader) load(ctx context.Context, in LoadInput) (*Update, *WindowMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	req := in.Request

	thread, err := l.store.Thread(ctx, l.threadID)
	if err != nil {
		return nil, nil, fmt.Errorf("load thread %s: %w", l.threadID, err)
	}

	var mapping *WindowMapping
	if in.Mapping != nil {
		mapping = in.Mapping.Clone()
	} else {
		mapping = NewWindowMapping(DefaultWindowConfig())
	}

	if !req.CanReuseInteractionModels {
		l.cache.purge()
	}
	l.cache.forget(req.DeletedInteractionIDs)

	incremental := req.LoadType == LoadTypeReload &&
		req.HasMutations() &&
		req.CanReuseInteractionModels &&
		req.CanReuseComponentStates &&
		in.Prev != nil

	if incremental {
		if err := mapping.ApplyMutations(ctx, l.store, l.threadID, req, in.ViewState); err != nil {
			return nil, nil, err
		}
	} else {
		if err := mapping.Resolve(ctx, l.store, l.threadID, req, in.ViewState); err != nil {
			return nil, nil, err
		}
	}

	items, stats, err := l.materialize(ctx, req, in.Prev, mapping.Keys(), in.ViewState)
	if err != nil {
		return nil, nil, err
	}
	items, unreadIndex := l.decorate(items, mapping, in.Prev, in.ViewState)

	var nextID uint64 = 1
	if in.Prev != nil {
		nextID = in.Prev.ID + 1
	}
	state := &RenderState{
		ID:                   nextID,
		ThreadID:             l.threadID,
		Thread:               thread,
		Items:                items,
		UnreadIndicatorIndex: unreadIndex,
		CanLoadOlderItems:    mapping.CanLoadOlder(),
		CanLoadNewerItems:    mapping.CanLoadNewer(),
		ViewState:            in.ViewState,
		CreatedAt:            l.now(),
	}

	update := &Update{
		RenderState:     state,
		PrevRenderState: in.Prev,
		Request:         req,
		Kind:            UpdateKindFullReload,
		Scroll:          resolveScroll(req, state),
		Stats:           stats,
	}
	if incremental {
		update.Kind = UpdateKindIncremental
	}
	var prevItems []RenderItem
	if in.Prev != nil {
		prevItems = in.Prev.Items
	}
	update.Added, update.Removed, update.Updated, update.Moved = diffItems(prevItems, items)
	return update, mapping, nil
}

// materialize produces one interaction item per key, reusing previous
// payloads and cached models where the request allows it.
func (l *Loader) materialize(ctx context.Context, req LoadRequest, prev *RenderState, keys []models.InteractionKey, view ViewStateSnapshot) ([]RenderItem, LoadStats, error) {
	var stats LoadStats
	changed := make(map[string]struct{}, len(req.UpdatedInteractionIDs))
	for _, id := range req.UpdatedInteractionIDs {
		changed[id] = struct{}{}
	}
	prevItems := make(map[string]RenderItem)
	if prev != nil {
		for _, item := range prev.Items {
			if item.Kind.IsInteraction() {
				prevItems[item.ID] = item
			}
		}
	}

	items := make([]RenderItem, len(keys))
	interactions := make([]*models.Interaction, len(keys))
	var pending []int
	var toFetch []string

	for i, key := range keys {
		_, isChanged := changed[key.ID]
		if req.CanReuseComponentStates && !isChanged {
			if item, ok := prevItems[key.ID]; ok && item.Version == key.Version && item.Payload != nil {
				items[i] = item
				stats.Reused++
				continue
			}
		}
		pending = append(pending, i)
		if req.CanReuseInteractionModels && !isChanged {
			if interaction, ok := l.cache.lookup(key); ok {
				interactions[i] = interaction
				stats.FromCache++
				continue
			}
		}
		toFetch = append(toFetch, key.ID)
	}

	if len(toFetch) > 0 {
		fetched, err := l.store.InteractionsByID(ctx, toFetch)
		if err != nil {
			return nil, stats, fmt.Errorf("fetch interactions: %w", err)
		}
		l.cache.store(fetched)
		byID := make(map[string]*models.Interaction, len(fetched))
		for j := range fetched {
			byID[fetched[j].ID] = &fetched[j]
		}
		for _, i := range pending {
			if interactions[i] != nil {
				continue
			}
			interaction, ok := byID[keys[i].ID]
			if !ok {
				return nil, stats, fmt.Errorf("interaction %s disappeared during load", keys[i].ID)
			}
			interactions[i] = interaction
			stats.Fetched++
		}
	}

	if len(pending) == 0 {
		return items, stats, nil
	}

	var addresses []string
	seen := map[string]struct{}{}
	for _, i := range pending {
		author := interactions[i].Author
		if author == "" {
			continue
		}
		if _, ok := seen[author]; ok {
			continue
		}
		seen[author] = struct{}{}
		addresses = append(addresses, author)
	}
	profiles := map[string]models.Profile{}
	if len(addresses) > 0 {
		var err error
		profiles, err = l.store.ProfilesByAddress(ctx, addresses)
		if err != nil {
			return nil, stats, fmt.Errorf("fetch profiles: %w", err)
		}
	}

	for _, i := range pending {
		interaction := interactions[i]
		profile, ok := profiles[interaction.Author]
		if !ok {
			profile = models.Profile{Address: interaction.Author}
		}
		payload := l.renderer.Render(interaction, profile, view)
		if payload == nil {
			return nil, stats, fmt.Errorf("render interaction %s: %w", interaction.ID, errNoPayload)
		}
		items[i] = RenderItem{
			ID:      interaction.ID,
			SortID:  interaction.SortID,
			Version: interaction.Version,
			Kind:    cellKindFor(interaction.Kind),
			Payload: payload,
		}
		stats.Rendered++
	}
	return items, stats, nil
}

// decorate inserts date headers, the unread indicator and the typing
// indicator around the interaction items.
func (l *Loader) decorate(items []RenderItem, mapping *WindowMapping, prev *RenderState, view ViewStateSnapshot) ([]RenderItem, int) {
	out := make([]RenderItem, 0, len(items)+4)
	unreadIndex := -1
	var unread *models.InteractionKey
	if !view.ClearedUnread {
		unread = mapping.OldestUnread()
	}

	lastDay := ""
	for _, item := range items {
		ts := item.Payload.Timestamp.In(l.location)
		day := ts.Format("2006-01-02")
		if day != lastDay {
			out = append(out, l.synthesize(prev, RenderItem{
				ID:     dateHeaderPrefix + day,
				SortID: item.SortID,
				Kind:   CellKindDateHeader,
			}, &DisplayPayload{
				Lines:     []string{ts.Format("Monday, January 2, 2006")},
				Timestamp: time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, l.location),
				Width:     view.ViewportWidth,
			}))
			lastDay = day
		}
		if unread != nil && unreadIndex < 0 && item.SortID >= unread.SortID {
			unreadIndex = len(out)
			out = append(out, l.synthesize(prev, RenderItem{
				ID:     unreadIndicatorID,
				SortID: item.SortID,
				Kind:   CellKindUnreadIndicator,
			}, &DisplayPayload{
				Lines: []string{"Unread messages"},
				Width: view.ViewportWidth,
			}))
		}
		out = append(out, item)
	}

	if view.TypingSender != "" && !mapping.CanLoadNewer() {
		var sortID int64
		if newest, ok := mapping.Newest(); ok {
			sortID = newest.SortID
		}
		out = append(out, l.synthesize(prev, RenderItem{
			ID:     typingPrefix + view.TypingSender,
			SortID: sortID,
			Kind:   CellKindTypingIndicator,
		}, &DisplayPayload{
			Author: view.TypingSender,
			Lines:  []string{view.TypingSender + " is typing…"},
			Width:  view.ViewportWidth,
		}))
	}
	return out, unreadIndex
}

// synthesize keeps the previous payload pointer when nothing visible changed.
func (l *Loader) synthesize(prev *RenderState, item RenderItem, payload *DisplayPayload) RenderItem {
	item.Payload = payload
	if old, ok := prev.Item(item.ID); ok && old.Payload.Equal(payload) {
		item.Payload = old.Payload
	}
	return item
}

func cellKindFor(kind models.InteractionKind) CellKind {
	switch kind {
	case models.InteractionKindOutgoing:
		return CellKindOutgoing
	case models.InteractionKindInfo:
		return CellKindInfo
	default:
		return CellKindIncoming
	}
}

func resolveScroll(req LoadRequest, state *RenderState) ScrollInstruction {
	switch req.ScrollAction.Kind {
	case ScrollToBottom:
		return ScrollInstruction{Kind: ScrollInstructionToBottom}
	case ScrollToInteraction:
		idx := state.IndexOf(req.ScrollAction.InteractionID)
		if idx < 0 {
			return ScrollInstruction{Kind: ScrollInstructionNone}
		}
		return ScrollInstruction{
			Kind:           ScrollInstructionToIndex,
			Index:          idx,
			ScreenFraction: req.ScrollAction.ScreenFraction,
			Alignment:      req.ScrollAction.Alignment,
		}
	case ScrollKeepContinuity:
		return ScrollInstruction{Kind: ScrollInstructionKeepContinuity}
	}
	if req.IsInitialLoad() {
		if state.HasUnreadIndicator() {
			return ScrollInstruction{
				Kind:      ScrollInstructionToIndex,
				Index:     state.UnreadIndicatorIndex,
				Alignment: AlignTop,
			}
		}
		return ScrollInstruction{Kind: ScrollInstructionToBottom}
	}
	return ScrollInstruction{Kind: ScrollInstructionNone}
}
