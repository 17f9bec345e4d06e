package conversation

import (
	"slices"
	"time"

	"github.com/tOgg1/threadview/internal/models"
)

// CellKind tags what a RenderItem displays.
type CellKind int

const (
	CellKindIncoming CellKind = iota
	CellKindOutgoing
	CellKindInfo
	CellKindDateHeader
	CellKindUnreadIndicator
	CellKindTypingIndicator
)

func (k CellKind) String() string {
	switch k {
	case CellKindIncoming:
		return "incoming"
	case CellKindOutgoing:
		return "outgoing"
	case CellKindInfo:
		return "info"
	case CellKindDateHeader:
		return "date_header"
	case CellKindUnreadIndicator:
		return "unread_indicator"
	case CellKindTypingIndicator:
		return "typing_indicator"
	default:
		return "unknown"
	}
}

// IsInteraction reports whether the cell is backed by a stored interaction.
func (k CellKind) IsInteraction() bool {
	return k == CellKindIncoming || k == CellKindOutgoing || k == CellKindInfo
}

// DisplayPayload is the precomputed, width-dependent presentation of an item.
// Payloads are shared between render states when reused, so they must be
// treated as read-only.
type DisplayPayload struct {
	Author        string
	Lines         []string
	Timestamp     time.Time
	Edited        bool
	Masked        bool
	AvatarBlurred bool
	Width         int
}

// Equal reports whether two payloads display the same thing.
func (p *DisplayPayload) Equal(other *DisplayPayload) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Author == other.Author &&
		p.Timestamp.Equal(other.Timestamp) &&
		p.Edited == other.Edited &&
		p.Masked == other.Masked &&
		p.AvatarBlurred == other.AvatarBlurred &&
		p.Width == other.Width &&
		slices.Equal(p.Lines, other.Lines)
}

// RenderItem is one row of a render state.
type RenderItem struct {
	ID      string
	SortID  int64
	Version int64
	Kind    CellKind
	Payload *DisplayPayload
}

// ViewStateSnapshot captures ephemeral view configuration at compute time.
type ViewStateSnapshot struct {
	TypingSender  string
	SelectionMode bool
	ClearedUnread bool
	ViewportWidth int
}

// RenderState is an immutable snapshot of the materialized window.
type RenderState struct {
	ID       uint64
	ThreadID string
	Thread   *models.Thread
	Items    []RenderItem

	// UnreadIndicatorIndex is the index of the unread indicator item, or -1.
	UnreadIndicatorIndex int

	CanLoadOlderItems bool
	CanLoadNewerItems bool
	ViewState         ViewStateSnapshot
	CreatedAt         time.Time
}

// HasUnreadIndicator reports whether the state shows the unread marker.
func (s *RenderState) HasUnreadIndicator() bool {
	return s != nil && s.UnreadIndicatorIndex >= 0
}

// IndexOf returns the position of the item with the given id, or -1.
func (s *RenderState) IndexOf(id string) int {
	if s == nil {
		return -1
	}
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Item returns the item with the given id.
func (s *RenderState) Item(id string) (RenderItem, bool) {
	idx := s.IndexOf(id)
	if idx < 0 {
		return RenderItem{}, false
	}
	return s.Items[idx], true
}

// InteractionCount returns the number of interaction-backed items.
func (s *RenderState) InteractionCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for i := range s.Items {
		if s.Items[i].Kind.IsInteraction() {
			n++
		}
	}
	return n
}

// ItemIDs lists item ids in display order.
func (s *RenderState) ItemIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.Items))
	for i := range s.Items {
		ids[i] = s.Items[i].ID
	}
	return ids
}
