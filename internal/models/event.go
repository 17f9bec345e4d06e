package models

import "time"

// EventType categorizes change notifications delivered to list coordinators.
type EventType string

const (
	// Data events
	EventTypeInteractionsChanged EventType = "interactions.changed"
	EventTypeDatabaseReset       EventType = "database.reset"
	EventTypeSchemaReset         EventType = "schema.reset"

	// Application lifecycle events
	EventTypeAppBackgrounded EventType = "app.backgrounded"
	EventTypeAppForegrounded EventType = "app.foregrounded"

	// Settings events
	EventTypeProfilesChanged    EventType = "profiles.changed"
	EventTypePeerProfileChanged EventType = "profile.peer_changed"

	// Thread activity events
	EventTypeCallStateChanged EventType = "call.state_changed"
	EventTypeTypingChanged    EventType = "typing.changed"
)

// Event is a single change notification. Events without a ThreadID are global.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// ThreadID scopes the event to a single thread (empty = global).
	ThreadID string `json:"thread_id,omitempty"`

	// UpdatedIDs lists inserted or modified interaction IDs.
	UpdatedIDs []string `json:"updated_ids,omitempty"`

	// DeletedIDs lists removed interaction IDs.
	DeletedIDs []string `json:"deleted_ids,omitempty"`

	// Addresses lists the peers a profile event relates to.
	Addresses []string `json:"addresses,omitempty"`

	// Sender is the typing peer for typing.changed events (empty = stopped).
	Sender string `json:"sender,omitempty"`
}

// IsGlobal reports whether the event applies to every thread.
func (e *Event) IsGlobal() bool {
	return e != nil && e.ThreadID == ""
}
