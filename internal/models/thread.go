package models

import "time"

// Thread is a conversation holding an ordered list of interactions.
type Thread struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	IsGroup      bool      `json:"is_group"`
	Participants []string  `json:"participants,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasParticipant reports whether address takes part in the thread.
func (t *Thread) HasParticipant(address string) bool {
	if t == nil {
		return false
	}
	for _, p := range t.Participants {
		if p == address {
			return true
		}
	}
	return false
}

// Profile holds display settings for a peer address.
type Profile struct {
	Address       string `json:"address"`
	DisplayName   string `json:"display_name"`
	AvatarBlurred bool   `json:"avatar_blurred"`
	Blocked       bool   `json:"blocked"`
}

// Name returns the display name, falling back to the address.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Address
}

// ThreadActivity is the ephemeral presence state of a thread: who is typing
// and whether a group call is running.
type ThreadActivity struct {
	ThreadID     string    `json:"thread_id"`
	TypingSender string    `json:"typing_sender,omitempty"`
	CallActive   bool      `json:"call_active"`
	UpdatedAt    time.Time `json:"updated_at"`
}
