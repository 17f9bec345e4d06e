package conversation

import (
	"github.com/tOgg1/threadview/internal/models"
)

// HandleEvent translates a datastore or app notification into load intent.
// It never blocks and is safe to call from any goroutine.
func (c *Coordinator) HandleEvent(event *models.Event) {
	if event == nil {
		return
	}
	c.post(func() {
		if c.ingest(event) {
			c.loadIfNecessary()
		}
	})
}

// ingest records the intent for one event and reports whether a load may be
// needed.
func (c *Coordinator) ingest(event *models.Event) bool {
	log := c.logger.Debug().
		Str("event_id", event.ID).
		Str("event", string(event.Type))

	switch event.Type {
	case models.EventTypeInteractionsChanged:
		if event.ThreadID != c.config.ThreadID {
			return false
		}
		log.Int("updated", len(event.UpdatedIDs)).Int("deleted", len(event.DeletedIDs)).Msg("interactions changed")
		c.builder.Reload(event.UpdatedIDs, event.DeletedIDs, true, true)

	case models.EventTypeDatabaseReset, models.EventTypeSchemaReset:
		log.Msg("dataset reset")
		c.builder.ReloadWithoutCaches()

	case models.EventTypeAppBackgrounded:
		log.Msg("app backgrounded")
		c.view.ClearedUnread = false
		return false

	case models.EventTypeProfilesChanged:
		log.Msg("profiles changed")
		c.builder.Reload(nil, nil, true, false)

	case models.EventTypePeerProfileChanged:
		if !c.isParticipant(event.Addresses) {
			return false
		}
		log.Strs("addresses", event.Addresses).Msg("participant profile changed")
		c.builder.ReloadWithoutCaches()

	case models.EventTypeCallStateChanged:
		if event.ThreadID != c.config.ThreadID || !c.isGroupThread() {
			return false
		}
		log.Msg("group call state changed")
		c.builder.Reload(nil, nil, true, false)

	case models.EventTypeTypingChanged:
		if event.ThreadID != c.config.ThreadID {
			return false
		}
		log.Str("sender", event.Sender).Msg("typing changed")
		c.setTypingSender(event.Sender)

	default:
		return false
	}
	return true
}

// isParticipant matches addresses against the thread of the current render
// state. Before the first landing any peer change counts.
func (c *Coordinator) isParticipant(addresses []string) bool {
	state := c.current.Load()
	if state == nil || state.Thread == nil {
		return true
	}
	for _, address := range addresses {
		if state.Thread.HasParticipant(address) {
			return true
		}
	}
	return false
}

func (c *Coordinator) isGroupThread() bool {
	state := c.current.Load()
	return state != nil && state.Thread != nil && state.Thread.IsGroup
}
