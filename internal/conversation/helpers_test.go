package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadview/internal/models"
)

const testThreadID = "thread-1"

var (
	errThreadMissing = errors.New("thread missing")
	testDay          = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
)

// memStore is an in-memory Store that records how it is queried.
type memStore struct {
	mu           sync.Mutex
	thread       *models.Thread
	interactions []models.Interaction
	profiles     map[string]models.Profile
	nextSortID   int64

	fetched     [][]string
	threadCalls atomic.Int64

	// gate, when set, blocks Thread until a value is received.
	gate chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		thread: &models.Thread{
			ID:           testThreadID,
			Title:        "test",
			Participants: []string{"alice"},
		},
		profiles: map[string]models.Profile{},
	}
}

func (s *memStore) add(t *testing.T, id string, kind models.InteractionKind, read bool) models.Interaction {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSortID++
	interaction := models.Interaction{
		ID:        id,
		ThreadID:  testThreadID,
		SortID:    s.nextSortID,
		Version:   1,
		Kind:      kind,
		Body:      "body of " + id,
		Read:      read,
		CreatedAt: testDay.Add(time.Duration(s.nextSortID) * time.Minute),
	}
	if kind == models.InteractionKindIncoming {
		interaction.Author = "alice"
	}
	s.interactions = append(s.interactions, interaction)
	return interaction
}

// addN appends n read incoming interactions named msg-1..msg-n after the
// current count.
func (s *memStore) addN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s.add(t, fmt.Sprintf("msg-%d", len(s.interactions)+1), models.InteractionKindIncoming, true)
	}
}

func (s *memStore) edit(id, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.interactions {
		if s.interactions[i].ID == id {
			s.interactions[i].Body = body
			s.interactions[i].Version++
		}
	}
}

func (s *memStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.interactions {
		if s.interactions[i].ID == id {
			s.interactions = append(s.interactions[:i], s.interactions[i+1:]...)
			return
		}
	}
}

func (s *memStore) markAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.interactions {
		s.interactions[i].Read = true
	}
}

func (s *memStore) setThread(thread *models.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thread = thread
}

func (s *memStore) fetchLog() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.fetched...)
}

func (s *memStore) Thread(ctx context.Context, threadID string) (*models.Thread, error) {
	s.threadCalls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thread == nil || s.thread.ID != threadID {
		return nil, errThreadMissing
	}
	thread := *s.thread
	return &thread, nil
}

func (s *memStore) Bounds(_ context.Context, _ string) (models.ThreadBounds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.interactions) == 0 {
		return models.ThreadBounds{}, nil
	}
	return models.ThreadBounds{
		Count:        len(s.interactions),
		OldestSortID: s.interactions[0].SortID,
		NewestSortID: s.interactions[len(s.interactions)-1].SortID,
	}, nil
}

func (s *memStore) keysWhere(match func(models.Interaction) bool) []models.InteractionKey {
	var keys []models.InteractionKey
	for _, interaction := range s.interactions {
		if match(interaction) {
			keys = append(keys, interaction.Key())
		}
	}
	return keys
}

func (s *memStore) KeysBefore(_ context.Context, _ string, before int64, limit int) ([]models.InteractionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.keysWhere(func(i models.Interaction) bool { return i.SortID < before })
	if len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}
	return keys, nil
}

func (s *memStore) KeysFrom(_ context.Context, _ string, from int64, limit int) ([]models.InteractionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.keysWhere(func(i models.Interaction) bool { return i.SortID >= from })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func (s *memStore) KeysBetween(_ context.Context, _ string, from, to int64) ([]models.InteractionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysWhere(func(i models.Interaction) bool { return i.SortID >= from && i.SortID <= to }), nil
}

func (s *memStore) KeysByID(_ context.Context, _ string, ids []string) ([]models.InteractionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return s.keysWhere(func(i models.Interaction) bool { return want[i.ID] }), nil
}

func (s *memStore) InteractionsByID(_ context.Context, ids []string) ([]models.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	s.fetched = append(s.fetched, sorted)

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Interaction
	for _, interaction := range s.interactions {
		if want[interaction.ID] {
			out = append(out, interaction)
		}
	}
	return out, nil
}

func (s *memStore) OldestUnread(_ context.Context, _ string) (*models.InteractionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, interaction := range s.interactions {
		if interaction.IsUnread() {
			key := interaction.Key()
			return &key, nil
		}
	}
	return nil, nil
}

func (s *memStore) ProfilesByAddress(_ context.Context, addresses []string) (map[string]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]models.Profile{}
	for _, address := range addresses {
		if profile, ok := s.profiles[address]; ok {
			out[address] = profile
		}
	}
	return out, nil
}

// countingRenderer wraps TextRenderer and records rendered ids.
type countingRenderer struct {
	mu       sync.Mutex
	rendered []string
}

func (r *countingRenderer) Render(interaction *models.Interaction, author models.Profile, view ViewStateSnapshot) *DisplayPayload {
	r.mu.Lock()
	r.rendered = append(r.rendered, interaction.ID)
	r.mu.Unlock()
	return TextRenderer{}.Render(interaction, author, view)
}

func (r *countingRenderer) reset() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rendered
	r.rendered = nil
	return out
}

// fakeConsumer is a scripted view. Busy flags may be flipped from the test
// goroutine while the coordinator polls them.
type fakeConsumer struct {
	layout      atomic.Bool
	animating   atomic.Bool
	keyboard    atomic.Bool
	multiSelect atomic.Bool
	atBottom    atomic.Bool
	nearTop     atomic.Bool
	nearBottom  atomic.Bool

	// landedWhileBusy records an update delivered while the view was busy.
	landedWhileBusy atomic.Bool

	coordinator *Coordinator
	autoLand    bool
	updates     chan *Update
	landedAt    chan time.Time
	tokens      atomic.Int64
}

func newFakeConsumer(c *Coordinator, autoLand bool) *fakeConsumer {
	return &fakeConsumer{
		coordinator: c,
		autoLand:    autoLand,
		updates:     make(chan *Update, 64),
		landedAt:    make(chan time.Time, 64),
	}
}

func (f *fakeConsumer) IsLayoutApplyingUpdate() bool { return f.layout.Load() }
func (f *fakeConsumer) AreCellsAnimating() bool      { return f.animating.Load() }
func (f *fakeConsumer) IsKeyboardAnimating() bool    { return f.keyboard.Load() }
func (f *fakeConsumer) IsMultiSelectAnimating() bool { return f.multiSelect.Load() }
func (f *fakeConsumer) IsScrolledToBottom() bool     { return f.atBottom.Load() }
func (f *fakeConsumer) IsScrolledNearTop() bool      { return f.nearTop.Load() }
func (f *fakeConsumer) IsScrolledNearBottom() bool   { return f.nearBottom.Load() }

func (f *fakeConsumer) WillUpdateWithNewRenderState(*RenderState) UpdateToken {
	f.tokens.Add(1)
	return UpdateToken{WasScrolledToBottom: f.atBottom.Load()}
}

func (f *fakeConsumer) UpdateWithNewRenderState(update *Update, _ ScrollInstruction, _ UpdateToken) {
	if f.layout.Load() || f.animating.Load() {
		f.landedWhileBusy.Store(true)
	}
	f.landedAt <- time.Now()
	f.updates <- update
	if f.autoLand {
		f.coordinator.LoadDidLand()
	}
}

func (f *fakeConsumer) next(t *testing.T) *Update {
	t.Helper()
	select {
	case update := <-f.updates:
		return update
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return nil
	}
}

func (f *fakeConsumer) requireNoUpdate(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case update := <-f.updates:
		t.Fatalf("unexpected update %d (%s)", update.RenderState.ID, update.Request.LoadType)
	case <-time.After(wait):
	}
}

func interactionIDs(state *RenderState) []string {
	var ids []string
	for _, item := range state.Items {
		if item.Kind.IsInteraction() {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func startCoordinator(t *testing.T, store Store, config Config) (*Coordinator, *fakeConsumer) {
	t.Helper()
	config.ThreadID = testThreadID
	config.Store = store
	if config.Location == nil {
		config.Location = time.UTC
	}
	c := NewCoordinator(config)
	consumer := newFakeConsumer(c, true)
	c.SetConsumer(consumer)
	c.SetViewportWidth(80)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop() })
	return c, consumer
}
