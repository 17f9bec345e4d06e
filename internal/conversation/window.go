package conversation

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/tOgg1/threadview/internal/models"
)

const (
	newestSortID int64 = math.MaxInt64

	defaultInitialWindowSize = 50
	defaultPageSize          = 50
	defaultMaxWindowSize     = 300
)

// WindowConfig sizes the load window.
type WindowConfig struct {
	// InitialSize is the number of interactions an initial mapping loads.
	InitialSize int

	// PageSize is how far LoadOlder and LoadNewer extend the window.
	PageSize int

	// MaxSize caps the window; the side away from the direction of travel
	// is trimmed.
	MaxSize int
}

// DefaultWindowConfig returns sensible defaults.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		InitialSize: defaultInitialWindowSize,
		PageSize:    defaultPageSize,
		MaxSize:     defaultMaxWindowSize,
	}
}

func (c WindowConfig) normalized() WindowConfig {
	def := DefaultWindowConfig()
	if c.InitialSize <= 0 {
		c.InitialSize = def.InitialSize
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.MaxSize <= 0 {
		c.MaxSize = def.MaxSize
	}
	if c.MaxSize < c.InitialSize {
		c.MaxSize = c.InitialSize
	}
	return c
}

// WindowMapping is the contiguous range of interaction keys currently loaded.
// The coordinator owns one instance; every load works on a clone.
type WindowMapping struct {
	config       WindowConfig
	keys         []models.InteractionKey
	positions    map[string]int
	oldestUnread *models.InteractionKey
	bounds       models.ThreadBounds
	canLoadOlder bool
	canLoadNewer bool
}

// NewWindowMapping returns an empty mapping.
func NewWindowMapping(config WindowConfig) *WindowMapping {
	return &WindowMapping{
		config:    config.normalized(),
		positions: map[string]int{},
	}
}

// Clone returns a deep copy.
func (w *WindowMapping) Clone() *WindowMapping {
	clone := &WindowMapping{
		config:       w.config,
		bounds:       w.bounds,
		canLoadOlder: w.canLoadOlder,
		canLoadNewer: w.canLoadNewer,
	}
	if w.oldestUnread != nil {
		unread := *w.oldestUnread
		clone.oldestUnread = &unread
	}
	clone.setKeys(append([]models.InteractionKey(nil), w.keys...))
	return clone
}

func (w *WindowMapping) Config() WindowConfig { return w.config }

func (w *WindowMapping) Len() int { return len(w.keys) }

// Keys returns a copy of the loaded keys in ascending sort order.
func (w *WindowMapping) Keys() []models.InteractionKey {
	return append([]models.InteractionKey(nil), w.keys...)
}

func (w *WindowMapping) Contains(id string) bool {
	_, ok := w.positions[id]
	return ok
}

// IndexOf returns the position of id within the window, or -1.
func (w *WindowMapping) IndexOf(id string) int {
	if idx, ok := w.positions[id]; ok {
		return idx
	}
	return -1
}

// Oldest returns the oldest loaded key.
func (w *WindowMapping) Oldest() (models.InteractionKey, bool) {
	if len(w.keys) == 0 {
		return models.InteractionKey{}, false
	}
	return w.keys[0], true
}

// Newest returns the newest loaded key.
func (w *WindowMapping) Newest() (models.InteractionKey, bool) {
	if len(w.keys) == 0 {
		return models.InteractionKey{}, false
	}
	return w.keys[len(w.keys)-1], true
}

// OldestUnread returns the unread marker, if any.
func (w *WindowMapping) OldestUnread() *models.InteractionKey {
	if w.oldestUnread == nil {
		return nil
	}
	unread := *w.oldestUnread
	return &unread
}

func (w *WindowMapping) CanLoadOlder() bool { return w.canLoadOlder }

func (w *WindowMapping) CanLoadNewer() bool { return w.canLoadNewer }

// Bounds returns the dataset bounds observed by the last load.
func (w *WindowMapping) Bounds() models.ThreadBounds { return w.bounds }

// Resolve re-derives the window for req against the store.
func (w *WindowMapping) Resolve(ctx context.Context, store Store, threadID string, req LoadRequest, view ViewStateSnapshot) error {
	bounds, err := store.Bounds(ctx, threadID)
	if err != nil {
		return fmt.Errorf("query bounds: %w", err)
	}
	wasAtNewest := !w.canLoadNewer
	w.bounds = bounds

	if err := w.refreshUnread(ctx, store, threadID, req, view); err != nil {
		return err
	}
	if bounds.IsEmpty() {
		w.setKeys(nil)
		w.refreshFlags()
		return nil
	}

	var keys []models.InteractionKey
	switch req.LoadType {
	case LoadTypeInitialMapping:
		keys, err = w.initialKeys(ctx, store, threadID, req)
	case LoadTypeLoadAndScrollToNewest:
		keys, err = w.anchorNewest(ctx, store, threadID)
	case LoadTypeLoadOlder:
		keys, err = w.extendOlder(ctx, store, threadID)
	case LoadTypeLoadNewer:
		keys, err = w.extendNewer(ctx, store, threadID)
	default:
		keys, err = w.reloadKeys(ctx, store, threadID, req, wasAtNewest)
	}
	if err != nil {
		return err
	}

	w.setKeys(keys)
	w.refreshFlags()
	return nil
}

// ApplyMutations splices updated and deleted ids into the current window
// without re-querying its range.
func (w *WindowMapping) ApplyMutations(ctx context.Context, store Store, threadID string, req LoadRequest, view ViewStateSnapshot) error {
	bounds, err := store.Bounds(ctx, threadID)
	if err != nil {
		return fmt.Errorf("query bounds: %w", err)
	}
	wasAtNewest := !w.canLoadNewer
	w.bounds = bounds

	if err := w.refreshUnread(ctx, store, threadID, req, view); err != nil {
		return err
	}

	removed := make(map[string]struct{}, len(req.DeletedInteractionIDs))
	for _, id := range req.DeletedInteractionIDs {
		removed[id] = struct{}{}
	}

	var updatedKeys []models.InteractionKey
	if len(req.UpdatedInteractionIDs) > 0 {
		updatedKeys, err = store.KeysByID(ctx, threadID, req.UpdatedInteractionIDs)
		if err != nil {
			return fmt.Errorf("query updated keys: %w", err)
		}
	}
	found := make(map[string]models.InteractionKey, len(updatedKeys))
	for _, key := range updatedKeys {
		found[key.ID] = key
	}
	for _, id := range req.UpdatedInteractionIDs {
		if _, ok := found[id]; !ok {
			removed[id] = struct{}{}
		}
	}

	keys := make([]models.InteractionKey, 0, len(w.keys)+len(updatedKeys))
	for _, key := range w.keys {
		if _, gone := removed[key.ID]; gone {
			continue
		}
		if updated, ok := found[key.ID]; ok {
			key = updated
			delete(found, key.ID)
		}
		keys = append(keys, key)
	}

	oldest, hasOldest := w.Oldest()
	newest, hasNewest := w.Newest()
	for _, key := range updatedKeys {
		if _, pending := found[key.ID]; !pending {
			continue
		}
		switch {
		case !hasOldest || !hasNewest:
			if wasAtNewest {
				keys = append(keys, key)
			}
		case key.SortID > oldest.SortID && key.SortID < newest.SortID:
			keys = append(keys, key)
		case key.SortID > newest.SortID && wasAtNewest:
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].SortID < keys[j].SortID })

	w.setKeys(w.trimOldestSide(keys))
	w.refreshFlags()
	return nil
}

func (w *WindowMapping) refreshUnread(ctx context.Context, store Store, threadID string, req LoadRequest, view ViewStateSnapshot) error {
	if req.ClearOldestUnreadInteraction || view.ClearedUnread {
		w.oldestUnread = nil
		return nil
	}

	refetch := w.oldestUnread == nil ||
		req.LoadType == LoadTypeInitialMapping ||
		req.LoadType == LoadTypeReloadWithoutCaches
	if !refetch {
		for _, id := range req.DeletedInteractionIDs {
			if id == w.oldestUnread.ID {
				refetch = true
				break
			}
		}
	}
	if !refetch {
		return nil
	}

	unread, err := store.OldestUnread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("query oldest unread: %w", err)
	}
	w.oldestUnread = unread
	return nil
}

func (w *WindowMapping) initialKeys(ctx context.Context, store Store, threadID string, req LoadRequest) ([]models.InteractionKey, error) {
	focus := req.FocusMessageID
	if focus == "" && req.ScrollAction.Kind == ScrollToInteraction {
		focus = req.ScrollAction.InteractionID
	}
	if focus != "" {
		key, err := w.lookup(ctx, store, threadID, focus)
		if err != nil {
			return nil, err
		}
		if key != nil {
			return w.anchorAt(ctx, store, threadID, key.SortID)
		}
	}
	if req.ScrollAction.Kind != ScrollToBottom && w.oldestUnread != nil {
		return w.anchorAt(ctx, store, threadID, w.oldestUnread.SortID)
	}
	return w.anchorNewest(ctx, store, threadID)
}

func (w *WindowMapping) reloadKeys(ctx context.Context, store Store, threadID string, req LoadRequest, wasAtNewest bool) ([]models.InteractionKey, error) {
	if req.ScrollAction.Kind == ScrollToInteraction && !w.Contains(req.ScrollAction.InteractionID) {
		key, err := w.lookup(ctx, store, threadID, req.ScrollAction.InteractionID)
		if err != nil {
			return nil, err
		}
		if key != nil {
			return w.anchorAt(ctx, store, threadID, key.SortID)
		}
	}
	if req.ScrollAction.Kind == ScrollToBottom && !wasAtNewest {
		return w.anchorNewest(ctx, store, threadID)
	}
	if len(w.keys) == 0 {
		return w.anchorNewest(ctx, store, threadID)
	}

	lower := w.keys[0].SortID
	upper := w.keys[len(w.keys)-1].SortID
	if wasAtNewest {
		upper = newestSortID
	}
	keys, err := store.KeysBetween(ctx, threadID, lower, upper)
	if err != nil {
		return nil, fmt.Errorf("query window range: %w", err)
	}
	if len(keys) == 0 {
		return w.anchorNewest(ctx, store, threadID)
	}
	return w.trimOldestSide(keys), nil
}

func (w *WindowMapping) extendOlder(ctx context.Context, store Store, threadID string) ([]models.InteractionKey, error) {
	if len(w.keys) == 0 {
		return w.anchorNewest(ctx, store, threadID)
	}
	oldest := w.keys[0].SortID
	older, err := store.KeysBefore(ctx, threadID, oldest, w.config.PageSize)
	if err != nil {
		return nil, fmt.Errorf("query older keys: %w", err)
	}
	current, err := store.KeysBetween(ctx, threadID, oldest, w.keys[len(w.keys)-1].SortID)
	if err != nil {
		return nil, fmt.Errorf("query window range: %w", err)
	}
	return w.trimNewestSide(append(older, current...)), nil
}

func (w *WindowMapping) extendNewer(ctx context.Context, store Store, threadID string) ([]models.InteractionKey, error) {
	if len(w.keys) == 0 {
		return w.anchorNewest(ctx, store, threadID)
	}
	newest := w.keys[len(w.keys)-1].SortID
	current, err := store.KeysBetween(ctx, threadID, w.keys[0].SortID, newest)
	if err != nil {
		return nil, fmt.Errorf("query window range: %w", err)
	}
	newer, err := store.KeysFrom(ctx, threadID, newest+1, w.config.PageSize)
	if err != nil {
		return nil, fmt.Errorf("query newer keys: %w", err)
	}
	return w.trimOldestSide(append(current, newer...)), nil
}

// anchorAt loads InitialSize keys centered on sortID.
func (w *WindowMapping) anchorAt(ctx context.Context, store Store, threadID string, sortID int64) ([]models.InteractionKey, error) {
	after := w.config.InitialSize - w.config.InitialSize/2
	from, err := store.KeysFrom(ctx, threadID, sortID, after)
	if err != nil {
		return nil, fmt.Errorf("query keys from anchor: %w", err)
	}
	before, err := store.KeysBefore(ctx, threadID, sortID, w.config.InitialSize-len(from))
	if err != nil {
		return nil, fmt.Errorf("query keys before anchor: %w", err)
	}
	return append(before, from...), nil
}

func (w *WindowMapping) anchorNewest(ctx context.Context, store Store, threadID string) ([]models.InteractionKey, error) {
	keys, err := store.KeysBefore(ctx, threadID, newestSortID, w.config.InitialSize)
	if err != nil {
		return nil, fmt.Errorf("query newest keys: %w", err)
	}
	return keys, nil
}

func (w *WindowMapping) lookup(ctx context.Context, store Store, threadID, id string) (*models.InteractionKey, error) {
	keys, err := store.KeysByID(ctx, threadID, []string{id})
	if err != nil {
		return nil, fmt.Errorf("query key %s: %w", id, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return &keys[0], nil
}

// trimOldestSide keeps the newest MaxSize keys.
func (w *WindowMapping) trimOldestSide(keys []models.InteractionKey) []models.InteractionKey {
	if len(keys) <= w.config.MaxSize {
		return keys
	}
	return keys[len(keys)-w.config.MaxSize:]
}

// trimNewestSide keeps the oldest MaxSize keys.
func (w *WindowMapping) trimNewestSide(keys []models.InteractionKey) []models.InteractionKey {
	if len(keys) <= w.config.MaxSize {
		return keys
	}
	return keys[:w.config.MaxSize]
}

func (w *WindowMapping) setKeys(keys []models.InteractionKey) {
	w.keys = keys
	w.positions = make(map[string]int, len(keys))
	for i, key := range keys {
		w.positions[key.ID] = i
	}
}

func (w *WindowMapping) refreshFlags() {
	if len(w.keys) == 0 {
		w.canLoadOlder = false
		w.canLoadNewer = false
		return
	}
	w.canLoadOlder = w.keys[0].SortID > w.bounds.OldestSortID
	w.canLoadNewer = w.keys[len(w.keys)-1].SortID < w.bounds.NewestSortID
}
