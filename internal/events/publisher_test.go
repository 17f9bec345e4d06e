package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tOgg1/threadview/internal/models"
)

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  *models.Event
		want   bool
	}{
		{
			name:   "empty filter matches any event",
			filter: Filter{},
			event: &models.Event{
				Type:     models.EventTypeInteractionsChanged,
				ThreadID: "thread-1",
			},
			want: true,
		},
		{
			name:   "nil event returns false",
			filter: Filter{},
			event:  nil,
			want:   false,
		},
		{
			name: "event type filter matches",
			filter: Filter{
				EventTypes: []models.EventType{models.EventTypeInteractionsChanged},
			},
			event: &models.Event{
				Type:     models.EventTypeInteractionsChanged,
				ThreadID: "thread-1",
			},
			want: true,
		},
		{
			name: "event type filter rejects non-matching",
			filter: Filter{
				EventTypes: []models.EventType{models.EventTypeInteractionsChanged},
			},
			event: &models.Event{
				Type: models.EventTypeDatabaseReset,
			},
			want: false,
		},
		{
			name: "multiple event types - matches any",
			filter: Filter{
				EventTypes: []models.EventType{
					models.EventTypeInteractionsChanged,
					models.EventTypeDatabaseReset,
				},
			},
			event: &models.Event{
				Type: models.EventTypeDatabaseReset,
			},
			want: true,
		},
		{
			name:   "thread filter matches same thread",
			filter: Filter{ThreadID: "thread-1"},
			event: &models.Event{
				Type:     models.EventTypeInteractionsChanged,
				ThreadID: "thread-1",
			},
			want: true,
		},
		{
			name:   "thread filter rejects other thread",
			filter: Filter{ThreadID: "thread-1"},
			event: &models.Event{
				Type:     models.EventTypeInteractionsChanged,
				ThreadID: "thread-2",
			},
			want: false,
		},
		{
			name:   "thread filter passes global events",
			filter: Filter{ThreadID: "thread-1"},
			event: &models.Event{
				Type: models.EventTypeProfilesChanged,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.event); got != tt.want {
				t.Errorf("Filter.Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInMemoryPublisher_Subscribe(t *testing.T) {
	pub := NewInMemoryPublisher()

	handler := func(event *models.Event) {}

	err := pub.Subscribe("sub-1", Filter{}, handler)
	if err != nil {
		t.Errorf("Subscribe() error = %v, want nil", err)
	}

	if pub.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", pub.SubscriberCount())
	}

	err = pub.Subscribe("sub-1", Filter{}, handler)
	if err != ErrSubscriptionExists {
		t.Errorf("Subscribe() duplicate error = %v, want %v", err, ErrSubscriptionExists)
	}

	err = pub.Subscribe("", Filter{}, handler)
	if err != ErrInvalidSubscriptionID {
		t.Errorf("Subscribe() empty ID error = %v, want %v", err, ErrInvalidSubscriptionID)
	}

	err = pub.Subscribe("sub-2", Filter{}, nil)
	if err != ErrNilHandler {
		t.Errorf("Subscribe() nil handler error = %v, want %v", err, ErrNilHandler)
	}
}

func TestInMemoryPublisher_Unsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()

	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {})

	if err := pub.Unsubscribe("sub-1"); err != nil {
		t.Errorf("Unsubscribe() error = %v, want nil", err)
	}

	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", pub.SubscriberCount())
	}

	if err := pub.Unsubscribe("sub-1"); err != ErrSubscriptionNotFound {
		t.Errorf("Unsubscribe() non-existent error = %v, want %v", err, ErrSubscriptionNotFound)
	}
}

func TestInMemoryPublisher_PublishStampsEvents(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	pub := NewInMemoryPublisher(WithNow(func() time.Time { return fixed }))
	ctx := context.Background()

	var received []*models.Event
	var mu sync.Mutex

	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
	})

	pub.Publish(ctx, &models.Event{
		Type:       models.EventTypeInteractionsChanged,
		ThreadID:   "thread-1",
		UpdatedIDs: []string{"msg-1"},
	})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	if received[0].ID == "" {
		t.Error("expected event ID to be stamped")
	}
	if !received[0].Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", received[0].Timestamp, fixed)
	}
}

func TestInMemoryPublisher_PublishWithThreadFilter(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	var threadOne, threadTwo int
	var mu sync.Mutex

	_ = pub.Subscribe("thread-1", Filter{ThreadID: "thread-1"}, func(event *models.Event) {
		mu.Lock()
		threadOne++
		mu.Unlock()
	})
	_ = pub.Subscribe("thread-2", Filter{ThreadID: "thread-2"}, func(event *models.Event) {
		mu.Lock()
		threadTwo++
		mu.Unlock()
	})

	pub.Publish(ctx, &models.Event{Type: models.EventTypeInteractionsChanged, ThreadID: "thread-1"})
	pub.Publish(ctx, &models.Event{Type: models.EventTypeDatabaseReset})

	mu.Lock()
	defer mu.Unlock()
	if threadOne != 2 {
		t.Errorf("threadOne = %d, want 2", threadOne)
	}
	if threadTwo != 1 {
		t.Errorf("threadTwo = %d, want 1", threadTwo)
	}
}

func TestInMemoryPublisher_PublishNilEvent(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	called := false
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {
		called = true
	})

	pub.Publish(ctx, nil)

	if called {
		t.Error("handler was called for nil event")
	}
}

func TestInMemoryPublisher_PublishAsync(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	done := make(chan struct{}, 1)
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {
		done <- struct{}{}
	})

	pub.PublishAsync(ctx, &models.Event{Type: models.EventTypeAppBackgrounded})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler was not invoked")
	}
}

func TestInMemoryPublisher_UpdateSubscription(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	var count int
	var mu sync.Mutex

	_ = pub.Subscribe("sub-1", Filter{
		EventTypes: []models.EventType{models.EventTypeInteractionsChanged},
	}, func(event *models.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	pub.Publish(ctx, &models.Event{Type: models.EventTypeInteractionsChanged, ThreadID: "thread-1"})

	err := pub.UpdateSubscription("sub-1", Filter{
		EventTypes: []models.EventType{models.EventTypeDatabaseReset},
	})
	if err != nil {
		t.Errorf("UpdateSubscription() error = %v", err)
	}

	pub.Publish(ctx, &models.Event{Type: models.EventTypeInteractionsChanged, ThreadID: "thread-1"})
	pub.Publish(ctx, &models.Event{Type: models.EventTypeDatabaseReset})

	mu.Lock()
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	mu.Unlock()

	if err := pub.UpdateSubscription("nonexistent", Filter{}); err != ErrSubscriptionNotFound {
		t.Errorf("UpdateSubscription() error = %v, want %v", err, ErrSubscriptionNotFound)
	}
}

func TestInMemoryPublisher_Close(t *testing.T) {
	pub := NewInMemoryPublisher()

	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {})
	_ = pub.Subscribe("sub-2", Filter{}, func(event *models.Event) {})

	pub.Close()

	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() after Close = %d, want 0", pub.SubscriberCount())
	}
}

func TestInMemoryPublisher_ConcurrentAccess(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	var wg sync.WaitGroup
	var count int64

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			subID := "sub-" + string(rune('a'+id))
			_ = pub.Subscribe(subID, Filter{}, func(event *models.Event) {
				atomic.AddInt64(&count, 1)
			})
		}(i)
	}

	wg.Wait()

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub.Publish(ctx, &models.Event{Type: models.EventTypeProfilesChanged})
		}()
	}

	wg.Wait()

	expected := int64(10 * 100)
	if atomic.LoadInt64(&count) != expected {
		t.Errorf("count = %d, want %d", count, expected)
	}
}
