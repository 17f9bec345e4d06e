package models

import "time"

// InteractionKind categorizes thread interactions.
type InteractionKind string

const (
	InteractionKindIncoming InteractionKind = "incoming"
	InteractionKindOutgoing InteractionKind = "outgoing"
	InteractionKindInfo     InteractionKind = "info"
)

// Interaction is one item of a thread (a message or an info notice).
type Interaction struct {
	// ID is the stable identifier for the interaction.
	ID string `json:"id"`

	// ThreadID is the owning thread.
	ThreadID string `json:"thread_id"`

	// SortID is the store-assigned total order key within the dataset.
	SortID int64 `json:"sort_id"`

	// Version increases on every edit of the interaction.
	Version int64 `json:"version"`

	// Kind is the interaction category.
	Kind InteractionKind `json:"kind"`

	// Author is the sender address (empty for outgoing and info).
	Author string `json:"author,omitempty"`

	// Body is the message text.
	Body string `json:"body"`

	// Read marks incoming interactions the user has seen.
	Read bool `json:"read"`

	// CreatedAt is when the interaction was created.
	CreatedAt time.Time `json:"created_at"`

	// EditedAt is set once the interaction has been edited.
	EditedAt *time.Time `json:"edited_at,omitempty"`
}

// InteractionKey identifies an interaction position and revision in the
// backing dataset without carrying its content.
type InteractionKey struct {
	ID      string `json:"id"`
	SortID  int64  `json:"sort_id"`
	Version int64  `json:"version"`
}

// Key returns the key of the interaction.
func (i *Interaction) Key() InteractionKey {
	return InteractionKey{ID: i.ID, SortID: i.SortID, Version: i.Version}
}

// IsUnread reports whether the interaction counts toward the unread marker.
func (i *Interaction) IsUnread() bool {
	return i.Kind == InteractionKindIncoming && !i.Read
}

// ThreadBounds describes the extent of a thread's dataset.
type ThreadBounds struct {
	Count        int   `json:"count"`
	OldestSortID int64 `json:"oldest_sort_id"`
	NewestSortID int64 `json:"newest_sort_id"`
}

// IsEmpty reports whether the thread has no interactions.
func (b ThreadBounds) IsEmpty() bool {
	return b.Count == 0
}
