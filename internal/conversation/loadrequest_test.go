package conversation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilder_EmptyBuildsNothing(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.Build(true)

	require.False(t, b.HasPending())
	_, ok := b.Build(true)
	require.False(t, ok)
}

func TestBuilder_NewBuilderStartsEmpty(t *testing.T) {
	_, ok := NewLoadRequestBuilder().Build(false)
	require.False(t, ok)
}

func TestBuilder_CoalescesMutationSets(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.Reload([]string{"A"}, nil, true, true)
	b.Reload([]string{"B"}, []string{"C"}, true, true)
	b.Reload([]string{"A"}, []string{"D"}, true, true)

	req, ok := b.Build(true)
	require.True(t, ok)
	require.Equal(t, LoadTypeReload, req.LoadType)
	require.Equal(t, []string{"A", "B"}, req.UpdatedInteractionIDs)
	require.Equal(t, []string{"C", "D"}, req.DeletedInteractionIDs)
	require.True(t, req.CanReuseInteractionModels)
	require.True(t, req.CanReuseComponentStates)
	require.Equal(t, ScrollKeepContinuity, req.ScrollAction.Kind)
	require.NotEmpty(t, req.RequestID)
}

func TestBuilder_CacheReuseIsConservative(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.Reload(nil, nil, true, true)
	b.Reload(nil, nil, true, false)
	b.Reload(nil, nil, true, true)

	req, ok := b.Build(true)
	require.True(t, ok)
	require.True(t, req.CanReuseInteractionModels)
	require.False(t, req.CanReuseComponentStates)

	b.Reload(nil, nil, false, true)
	req, _ = b.Build(true)
	require.False(t, req.CanReuseInteractionModels)
	require.False(t, req.CanReuseComponentStates, "payloads depend on models")
}

func TestBuilder_ReloadWithoutCachesDominates(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.Reload([]string{"A"}, nil, true, true)
	b.LoadOlder()
	b.ReloadWithoutCaches()
	b.Reload([]string{"B"}, nil, true, true)

	req, ok := b.Build(true)
	require.True(t, ok)
	require.Equal(t, LoadTypeReloadWithoutCaches, req.LoadType)
	require.False(t, req.CanReuseInteractionModels)
	require.False(t, req.CanReuseComponentStates)
}

func TestBuilder_LoadTypePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		record   func(b *LoadRequestBuilder)
		hasState bool
		want     LoadType
	}{
		{
			name:     "no render state forces initial mapping",
			record:   func(b *LoadRequestBuilder) { b.Reload(nil, nil, true, true) },
			hasState: false,
			want:     LoadTypeInitialMapping,
		},
		{
			name: "initial mapping beats reload without caches",
			record: func(b *LoadRequestBuilder) {
				b.ReloadWithoutCaches()
				b.LoadInitialMapping("", ScrollAction{})
			},
			hasState: true,
			want:     LoadTypeInitialMapping,
		},
		{
			name: "scroll intent beats paging",
			record: func(b *LoadRequestBuilder) {
				b.LoadOlder()
				b.LoadAndScrollToNewest()
			},
			hasState: true,
			want:     LoadTypeLoadAndScrollToNewest,
		},
		{
			name: "older beats newer",
			record: func(b *LoadRequestBuilder) {
				b.LoadNewer()
				b.LoadOlder()
			},
			hasState: true,
			want:     LoadTypeLoadOlder,
		},
		{
			name: "newer beats reload",
			record: func(b *LoadRequestBuilder) {
				b.Reload(nil, nil, true, true)
				b.LoadNewer()
			},
			hasState: true,
			want:     LoadTypeLoadNewer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewLoadRequestBuilder()
			tt.record(b)
			req, ok := b.Build(tt.hasState)
			require.True(t, ok)
			require.Equal(t, tt.want, req.LoadType)
		})
	}
}

func TestBuilder_ScrollIntentsLastWriteWins(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.LoadAndScrollToInteraction("msg-7", 0.25, AlignTop)
	b.LoadAndScrollToNewest()

	req, _ := b.Build(true)
	require.Equal(t, LoadTypeLoadAndScrollToNewest, req.LoadType)
	require.Equal(t, ScrollToBottom, req.ScrollAction.Kind)

	b.LoadAndScrollToNewest()
	b.LoadAndScrollToInteraction("msg-7", 0.25, AlignTop)

	req, _ = b.Build(true)
	require.Equal(t, LoadTypeLoadAndScrollToInteraction, req.LoadType)
	require.Equal(t, ScrollAction{Kind: ScrollToInteraction, InteractionID: "msg-7", ScreenFraction: 0.25, Alignment: AlignTop}, req.ScrollAction)
}

func TestBuilder_ScrollIntentSurvivesReloadWithoutCaches(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.Reload([]string{"A"}, nil, true, true)
	b.LoadAndScrollToInteraction("msg-3", 0.5, AlignCenter)
	b.ReloadWithoutCaches()

	req, _ := b.Build(true)
	require.Equal(t, LoadTypeReloadWithoutCaches, req.LoadType)
	require.Equal(t, ScrollToInteraction, req.ScrollAction.Kind)
	require.Equal(t, "msg-3", req.ScrollAction.InteractionID)
}

func TestBuilder_InitialMappingFocus(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.LoadInitialMapping("msg-9", ScrollAction{})

	req, ok := b.Build(false)
	require.True(t, ok)
	require.True(t, req.IsInitialLoad())
	require.Equal(t, "msg-9", req.FocusMessageID)
	require.Equal(t, ScrollToInteraction, req.ScrollAction.Kind)
	require.Equal(t, "msg-9", req.ScrollAction.InteractionID)
	require.False(t, req.CanReuseInteractionModels)

	b.LoadInitialMapping("", ScrollAction{})
	req, _ = b.Build(false)
	require.Equal(t, ScrollNone, req.ScrollAction.Kind)
}

func TestBuilder_ClearOldestUnreadIsStickyUntilBuilt(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.ClearOldestUnreadInteraction()
	b.Reload(nil, nil, true, true)
	b.LoadNewer()

	require.True(t, b.HasPending())
	req, _ := b.Build(true)
	require.True(t, req.ClearOldestUnreadInteraction)

	b.Reload(nil, nil, true, true)
	req, _ = b.Build(true)
	require.False(t, req.ClearOldestUnreadInteraction, "build resets the flag")
}

func TestBuilder_StyleChangedDropsComponentReuse(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.StyleChanged()

	req, ok := b.Build(true)
	require.True(t, ok)
	require.Equal(t, LoadTypeReload, req.LoadType)
	require.True(t, req.CanReuseInteractionModels)
	require.False(t, req.CanReuseComponentStates)
}

func TestBuilder_AllowDuringMultiSelectAnimation(t *testing.T) {
	b := NewLoadRequestBuilder()
	b.AllowDuringMultiSelectAnimation()
	b.Reload(nil, nil, true, false)

	req, _ := b.Build(true)
	require.True(t, req.AllowDuringMultiSelectAnimation)

	b.Reload(nil, nil, true, false)
	req, _ = b.Build(true)
	require.False(t, req.AllowDuringMultiSelectAnimation)
}
