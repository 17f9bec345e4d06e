package conversation

import (
	"sort"

	"github.com/google/uuid"
)

// LoadType selects how the window is resolved for a load.
type LoadType int

const (
	LoadTypeInitialMapping LoadType = iota
	LoadTypeLoadOlder
	LoadTypeLoadNewer
	LoadTypeLoadAndScrollToNewest
	LoadTypeLoadAndScrollToInteraction
	LoadTypeReload
	LoadTypeReloadWithoutCaches
)

func (t LoadType) String() string {
	switch t {
	case LoadTypeInitialMapping:
		return "initial_mapping"
	case LoadTypeLoadOlder:
		return "load_older"
	case LoadTypeLoadNewer:
		return "load_newer"
	case LoadTypeLoadAndScrollToNewest:
		return "load_and_scroll_to_newest"
	case LoadTypeLoadAndScrollToInteraction:
		return "load_and_scroll_to_interaction"
	case LoadTypeReload:
		return "reload"
	case LoadTypeReloadWithoutCaches:
		return "reload_without_caches"
	default:
		return "unknown"
	}
}

// ScrollActionKind is the requested scroll behavior after a load lands.
type ScrollActionKind int

const (
	ScrollNone ScrollActionKind = iota
	ScrollToBottom
	ScrollToInteraction
	ScrollKeepContinuity
)

func (k ScrollActionKind) String() string {
	switch k {
	case ScrollToBottom:
		return "to_bottom"
	case ScrollToInteraction:
		return "to_interaction"
	case ScrollKeepContinuity:
		return "keep_continuity"
	default:
		return "none"
	}
}

// ScrollAlignment positions a scroll target within the viewport.
type ScrollAlignment int

const (
	AlignTop ScrollAlignment = iota
	AlignCenter
	AlignBottom
)

// ScrollAction is the scroll intent carried by a LoadRequest.
type ScrollAction struct {
	Kind ScrollActionKind

	// InteractionID, ScreenFraction and Alignment apply to ScrollToInteraction.
	InteractionID  string
	ScreenFraction float64
	Alignment      ScrollAlignment
}

// LoadRequest is the canonical, immutable description of one load.
type LoadRequest struct {
	RequestID                       string
	LoadType                        LoadType
	ScrollAction                    ScrollAction
	CanReuseInteractionModels       bool
	CanReuseComponentStates         bool
	UpdatedInteractionIDs           []string
	DeletedInteractionIDs           []string
	FocusMessageID                  string
	ClearOldestUnreadInteraction    bool
	AllowDuringMultiSelectAnimation bool
}

// IsInitialLoad reports whether the request maps the window from scratch.
func (r LoadRequest) IsInitialLoad() bool {
	return r.LoadType == LoadTypeInitialMapping
}

// HasMutations reports whether the request carries updated or deleted ids.
func (r LoadRequest) HasMutations() bool {
	return len(r.UpdatedInteractionIDs) > 0 || len(r.DeletedInteractionIDs) > 0
}

// LoadRequestBuilder accumulates load intent between two claimed loads.
// It is owned by the coordinator loop and is not safe for concurrent use.
type LoadRequestBuilder struct {
	initialMapping      bool
	reloadWithoutCaches bool
	loadOlder           bool
	loadNewer           bool
	reload              bool
	styleChanged        bool
	clearOldestUnread   bool
	allowMultiSelect    bool

	scrollIntent LoadType
	hasScroll    bool
	scroll       ScrollAction
	initialFocus string
	initScroll   ScrollAction

	updated map[string]struct{}
	deleted map[string]struct{}

	reuseModels     bool
	reuseComponents bool
}

// NewLoadRequestBuilder returns an empty builder.
func NewLoadRequestBuilder() *LoadRequestBuilder {
	b := &LoadRequestBuilder{}
	b.reset()
	return b
}

func (b *LoadRequestBuilder) reset() {
	*b = LoadRequestBuilder{
		updated:         make(map[string]struct{}),
		deleted:         make(map[string]struct{}),
		reuseModels:     true,
		reuseComponents: true,
	}
}

// LoadInitialMapping requests a fresh window, optionally anchored at focusID.
func (b *LoadRequestBuilder) LoadInitialMapping(focusID string, scroll ScrollAction) {
	b.initialMapping = true
	b.initialFocus = focusID
	b.initScroll = scroll
}

func (b *LoadRequestBuilder) LoadOlder() {
	b.loadOlder = true
}

func (b *LoadRequestBuilder) LoadNewer() {
	b.loadNewer = true
}

// LoadAndScrollToNewest replaces any earlier scroll intent.
func (b *LoadRequestBuilder) LoadAndScrollToNewest() {
	b.hasScroll = true
	b.scrollIntent = LoadTypeLoadAndScrollToNewest
	b.scroll = ScrollAction{Kind: ScrollToBottom}
}

// LoadAndScrollToInteraction replaces any earlier scroll intent.
func (b *LoadRequestBuilder) LoadAndScrollToInteraction(id string, screenFraction float64, alignment ScrollAlignment) {
	b.hasScroll = true
	b.scrollIntent = LoadTypeLoadAndScrollToInteraction
	b.scroll = ScrollAction{
		Kind:           ScrollToInteraction,
		InteractionID:  id,
		ScreenFraction: screenFraction,
		Alignment:      alignment,
	}
}

// Reload records a reload. Id sets are unioned and reuse flags ANDed with
// every earlier call since the last build.
func (b *LoadRequestBuilder) Reload(updated, deleted []string, reuseModels, reuseComponents bool) {
	b.reload = true
	for _, id := range updated {
		b.updated[id] = struct{}{}
	}
	for _, id := range deleted {
		b.deleted[id] = struct{}{}
	}
	b.reuseModels = b.reuseModels && reuseModels
	b.reuseComponents = b.reuseComponents && reuseComponents
}

// ReloadWithoutCaches forces a full reload that discards every cache.
func (b *LoadRequestBuilder) ReloadWithoutCaches() {
	b.reloadWithoutCaches = true
}

// ClearOldestUnreadInteraction stays set until the next build.
func (b *LoadRequestBuilder) ClearOldestUnreadInteraction() {
	b.clearOldestUnread = true
}

// StyleChanged records a style or geometry change; display payloads must be
// recomputed.
func (b *LoadRequestBuilder) StyleChanged() {
	b.styleChanged = true
	b.reuseComponents = false
}

func (b *LoadRequestBuilder) AllowDuringMultiSelectAnimation() {
	b.allowMultiSelect = true
}

// HasPending reports whether Build would produce a request.
func (b *LoadRequestBuilder) HasPending() bool {
	return b.initialMapping ||
		b.reloadWithoutCaches ||
		b.loadOlder ||
		b.loadNewer ||
		b.reload ||
		b.hasScroll ||
		b.styleChanged ||
		b.clearOldestUnread ||
		len(b.updated) > 0 ||
		len(b.deleted) > 0
}

// Build folds the accumulated intent into one LoadRequest and resets the
// builder. It returns false when nothing is pending.
func (b *LoadRequestBuilder) Build(hasRenderState bool) (LoadRequest, bool) {
	if !b.HasPending() {
		return LoadRequest{}, false
	}

	req := LoadRequest{
		RequestID:                       uuid.New().String(),
		CanReuseInteractionModels:       b.reuseModels,
		CanReuseComponentStates:         b.reuseComponents && b.reuseModels,
		UpdatedInteractionIDs:           sortedSet(b.updated),
		DeletedInteractionIDs:           sortedSet(b.deleted),
		ClearOldestUnreadInteraction:    b.clearOldestUnread,
		AllowDuringMultiSelectAnimation: b.allowMultiSelect,
	}

	switch {
	case b.initialMapping || !hasRenderState:
		req.LoadType = LoadTypeInitialMapping
	case b.reloadWithoutCaches:
		req.LoadType = LoadTypeReloadWithoutCaches
	case b.hasScroll:
		req.LoadType = b.scrollIntent
	case b.loadOlder:
		req.LoadType = LoadTypeLoadOlder
	case b.loadNewer:
		req.LoadType = LoadTypeLoadNewer
	default:
		req.LoadType = LoadTypeReload
	}

	switch {
	case b.hasScroll:
		req.ScrollAction = b.scroll
	case b.initialMapping && b.initScroll.Kind != ScrollNone:
		req.ScrollAction = b.initScroll
	case b.initialMapping && b.initialFocus != "":
		req.ScrollAction = ScrollAction{
			Kind:           ScrollToInteraction,
			InteractionID:  b.initialFocus,
			ScreenFraction: 0.5,
			Alignment:      AlignCenter,
		}
	case req.LoadType == LoadTypeInitialMapping:
		req.ScrollAction = ScrollAction{Kind: ScrollNone}
	default:
		req.ScrollAction = ScrollAction{Kind: ScrollKeepContinuity}
	}

	if b.initialMapping {
		req.FocusMessageID = b.initialFocus
	}

	if req.LoadType == LoadTypeInitialMapping || b.reloadWithoutCaches {
		req.CanReuseInteractionModels = false
		req.CanReuseComponentStates = false
	}

	b.reset()
	return req, true
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
