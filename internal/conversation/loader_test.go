package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadview/internal/models"
)

func newTestLoader(store Store, renderer ItemRenderer) *Loader {
	return NewLoader(LoaderConfig{
		Store:    store,
		Renderer: renderer,
		ThreadID: testThreadID,
		Location: time.UTC,
	})
}

func buildRequest(t *testing.T, hasState bool, record func(b *LoadRequestBuilder)) LoadRequest {
	t.Helper()
	b := NewLoadRequestBuilder()
	record(b)
	req, ok := b.Build(hasState)
	require.True(t, ok)
	return req
}

func initialLoad(t *testing.T, loader *Loader, view ViewStateSnapshot) (*Update, *WindowMapping) {
	t.Helper()
	req := buildRequest(t, false, func(b *LoadRequestBuilder) { b.LoadInitialMapping("", ScrollAction{}) })
	update, mapping, err := loader.Load(context.Background(), LoadInput{
		Request:   req,
		Mapping:   NewWindowMapping(DefaultWindowConfig()),
		ViewState: view,
	})
	require.NoError(t, err)
	return update, mapping
}

func TestLoader_EmptyInitialLoad(t *testing.T) {
	loader := newTestLoader(newMemStore(), nil)

	update, mapping := initialLoad(t, loader, ViewStateSnapshot{ViewportWidth: 80})

	state := update.RenderState
	require.EqualValues(t, 1, state.ID)
	require.Empty(t, state.Items)
	require.False(t, state.CanLoadOlderItems)
	require.False(t, state.CanLoadNewerItems)
	require.False(t, state.HasUnreadIndicator())
	require.Zero(t, mapping.Len())
	require.Equal(t, UpdateKindFullReload, update.Kind)
	require.Equal(t, ScrollInstructionToBottom, update.Scroll.Kind)
	require.Equal(t, testThreadID, state.Thread.ID)
}

func TestLoader_IncrementalReloadPreservesPayloadIdentity(t *testing.T) {
	store := newMemStore()
	store.addN(t, 50)
	renderer := &countingRenderer{}
	loader := newTestLoader(store, renderer)
	view := ViewStateSnapshot{ViewportWidth: 80}

	first, mapping := initialLoad(t, loader, view)
	require.Len(t, renderer.reset(), 50)
	msg42Before, ok := first.RenderState.Item("msg-42")
	require.True(t, ok)

	store.edit("msg-42", "edited body")
	req := buildRequest(t, true, func(b *LoadRequestBuilder) {
		b.Reload([]string{"msg-42"}, nil, true, true)
	})
	update, _, err := loader.Load(context.Background(), LoadInput{
		Request:   req,
		Prev:      first.RenderState,
		Mapping:   mapping,
		ViewState: view,
	})
	require.NoError(t, err)

	require.Equal(t, UpdateKindIncremental, update.Kind)
	require.EqualValues(t, 2, update.RenderState.ID)
	require.Equal(t, []string{"msg-42"}, renderer.reset())
	fetches := store.fetchLog()
	require.Equal(t, []string{"msg-42"}, fetches[len(fetches)-1])
	require.Equal(t, []string{"msg-42"}, update.Updated)
	require.Empty(t, update.Added)
	require.Empty(t, update.Removed)
	require.Equal(t, 49, update.Stats.Reused)

	for _, item := range update.RenderState.Items {
		prev, ok := first.RenderState.Item(item.ID)
		require.True(t, ok)
		if item.ID == "msg-42" {
			require.NotSame(t, msg42Before.Payload, item.Payload)
			require.EqualValues(t, 2, item.Version)
			require.Contains(t, item.Payload.Lines[0], "edited body")
			continue
		}
		require.Same(t, prev.Payload, item.Payload, "item %s", item.ID)
	}
}

func TestLoader_ReloadWithoutCachesRebuildsEverything(t *testing.T) {
	store := newMemStore()
	store.addN(t, 5)
	renderer := &countingRenderer{}
	loader := newTestLoader(store, renderer)
	view := ViewStateSnapshot{ViewportWidth: 80}
	first, mapping := initialLoad(t, loader, view)
	renderer.reset()

	req := buildRequest(t, true, func(b *LoadRequestBuilder) {
		b.Reload([]string{"msg-1"}, nil, true, true)
		b.ReloadWithoutCaches()
	})
	update, _, err := loader.Load(context.Background(), LoadInput{Request: req, Prev: first.RenderState, Mapping: mapping, ViewState: view})
	require.NoError(t, err)

	require.Equal(t, UpdateKindFullReload, update.Kind)
	require.Len(t, renderer.reset(), 5)
	require.Equal(t, 5, update.Stats.Fetched)
	require.Zero(t, update.Stats.FromCache)
}

func TestLoader_StyleChangeReusesModelsNotPayloads(t *testing.T) {
	store := newMemStore()
	store.addN(t, 5)
	renderer := &countingRenderer{}
	loader := newTestLoader(store, renderer)
	first, mapping := initialLoad(t, loader, ViewStateSnapshot{ViewportWidth: 80})
	renderer.reset()
	fetchesBefore := len(store.fetchLog())

	req := buildRequest(t, true, func(b *LoadRequestBuilder) { b.StyleChanged() })
	update, _, err := loader.Load(context.Background(), LoadInput{
		Request:   req,
		Prev:      first.RenderState,
		Mapping:   mapping,
		ViewState: ViewStateSnapshot{ViewportWidth: 40},
	})
	require.NoError(t, err)

	require.Len(t, renderer.reset(), 5)
	require.Equal(t, 5, update.Stats.FromCache)
	require.Len(t, store.fetchLog(), fetchesBefore, "no interaction fetch")
	for _, item := range update.RenderState.Items {
		if item.Kind.IsInteraction() {
			require.Equal(t, 40, item.Payload.Width)
		}
	}
}

func TestLoader_DecoratesDateHeaderUnreadAndTyping(t *testing.T) {
	store := newMemStore()
	store.addN(t, 2)
	store.add(t, "unread-1", models.InteractionKindIncoming, false)
	store.add(t, "mine", models.InteractionKindOutgoing, true)
	loader := newTestLoader(store, nil)

	update, _ := initialLoad(t, loader, ViewStateSnapshot{ViewportWidth: 80, TypingSender: "alice"})
	state := update.RenderState

	kinds := make([]CellKind, len(state.Items))
	for i, item := range state.Items {
		kinds[i] = item.Kind
	}
	require.Equal(t, []CellKind{
		CellKindDateHeader,
		CellKindIncoming,
		CellKindIncoming,
		CellKindUnreadIndicator,
		CellKindIncoming,
		CellKindOutgoing,
		CellKindTypingIndicator,
	}, kinds)
	require.Equal(t, 3, state.UnreadIndicatorIndex)
	require.Equal(t, ScrollInstructionToIndex, update.Scroll.Kind)
	require.Equal(t, 3, update.Scroll.Index)
	require.Equal(t, 4, state.InteractionCount())
}

func TestLoader_ClearedUnreadHidesIndicator(t *testing.T) {
	store := newMemStore()
	store.add(t, "unread-1", models.InteractionKindIncoming, false)
	loader := newTestLoader(store, nil)

	update, _ := initialLoad(t, loader, ViewStateSnapshot{ViewportWidth: 80, ClearedUnread: true})
	require.False(t, update.RenderState.HasUnreadIndicator())
}

func TestLoader_SynthesizedItemsKeepIdentity(t *testing.T) {
	store := newMemStore()
	store.addN(t, 3)
	loader := newTestLoader(store, nil)
	view := ViewStateSnapshot{ViewportWidth: 80}
	first, mapping := initialLoad(t, loader, view)

	req := buildRequest(t, true, func(b *LoadRequestBuilder) { b.Reload(nil, nil, true, true) })
	update, _, err := loader.Load(context.Background(), LoadInput{Request: req, Prev: first.RenderState, Mapping: mapping, ViewState: view})
	require.NoError(t, err)

	require.True(t, update.IsEmpty())
	require.Same(t, first.RenderState.Items[0].Payload, update.RenderState.Items[0].Payload)
	require.Equal(t, ScrollInstructionKeepContinuity, update.Scroll.Kind)
}

func TestLoader_ScrollTargetGoneDegradesToNone(t *testing.T) {
	store := newMemStore()
	store.addN(t, 3)
	loader := newTestLoader(store, nil)
	view := ViewStateSnapshot{ViewportWidth: 80}
	first, mapping := initialLoad(t, loader, view)

	req := buildRequest(t, true, func(b *LoadRequestBuilder) {
		b.LoadAndScrollToInteraction("gone", 0.5, AlignCenter)
	})
	update, _, err := loader.Load(context.Background(), LoadInput{Request: req, Prev: first.RenderState, Mapping: mapping, ViewState: view})
	require.NoError(t, err)
	require.Equal(t, ScrollInstructionNone, update.Scroll.Kind)

	req = buildRequest(t, true, func(b *LoadRequestBuilder) {
		b.LoadAndScrollToInteraction("msg-2", 0.5, AlignCenter)
	})
	update, _, err = loader.Load(context.Background(), LoadInput{Request: req, Prev: update.RenderState, Mapping: mapping, ViewState: view})
	require.NoError(t, err)
	require.Equal(t, ScrollInstructionToIndex, update.Scroll.Kind)
	require.Equal(t, update.RenderState.IndexOf("msg-2"), update.Scroll.Index)
	require.Equal(t, AlignCenter, update.Scroll.Alignment)
}

func TestLoader_MissingThreadFails(t *testing.T) {
	store := newMemStore()
	store.thread = nil
	loader := newTestLoader(store, nil)

	req := buildRequest(t, false, func(b *LoadRequestBuilder) { b.LoadInitialMapping("", ScrollAction{}) })
	_, _, err := loader.Load(context.Background(), LoadInput{Request: req, Mapping: NewWindowMapping(DefaultWindowConfig())})
	require.ErrorIs(t, err, ErrLoadComputationFailure)
	require.ErrorIs(t, err, errThreadMissing)
}

type nilRenderer struct{}

func (nilRenderer) Render(*models.Interaction, models.Profile, ViewStateSnapshot) *DisplayPayload {
	return nil
}

func TestLoader_RendererWithoutPayloadFails(t *testing.T) {
	store := newMemStore()
	store.addN(t, 2)
	loader := newTestLoader(store, nilRenderer{})

	req := buildRequest(t, false, func(b *LoadRequestBuilder) { b.LoadInitialMapping("", ScrollAction{}) })
	require.NotPanics(t, func() {
		_, _, err := loader.Load(context.Background(), LoadInput{
			Request:   req,
			Mapping:   NewWindowMapping(DefaultWindowConfig()),
			ViewState: ViewStateSnapshot{ViewportWidth: 80},
		})
		require.ErrorIs(t, err, ErrLoadComputationFailure)
		require.ErrorIs(t, err, errNoPayload)
	})
}

func TestLoader_DoesNotMutateInputMapping(t *testing.T) {
	store := newMemStore()
	store.addN(t, 3)
	loader := newTestLoader(store, nil)
	view := ViewStateSnapshot{ViewportWidth: 80}
	first, mapping := initialLoad(t, loader, view)

	store.addN(t, 2)
	req := buildRequest(t, true, func(b *LoadRequestBuilder) { b.Reload([]string{"msg-4", "msg-5"}, nil, true, true) })
	update, next, err := loader.Load(context.Background(), LoadInput{Request: req, Prev: first.RenderState, Mapping: mapping, ViewState: view})
	require.NoError(t, err)

	require.Equal(t, 3, mapping.Len())
	require.Equal(t, 5, next.Len())
	require.Equal(t, []string{"msg-4", "msg-5"}, update.Added)
	require.Equal(t, []string{"msg-1", "msg-2", "msg-3", "msg-4", "msg-5"}, interactionIDs(update.RenderState))
}
