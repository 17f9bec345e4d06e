package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tOgg1/threadview/internal/conversation"
)

var (
	tailThread string
	tailItems  bool
	tailWidth  int
)

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().StringVar(&tailThread, "thread", "", "thread id (default: current context)")
	tailCmd.Flags().BoolVar(&tailItems, "items", false, "include every item of each render state")
	tailCmd.Flags().IntVar(&tailWidth, "width", 80, "layout width used for wrapping")
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream render updates for a thread as JSON lines",
	Long: `Attach a headless consumer to a thread and print one JSON line per landed
render update. Writes from other processes are picked up by the database
watcher.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, err := resolveThreadID(tailThread)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx, threadID, "")
		if err != nil {
			return err
		}
		defer s.Close()

		consumer := newHeadlessConsumer(os.Stdout, tailItems)
		consumer.lander = s.coordinator
		if err := s.start(ctx, consumer, tailWidth); err != nil {
			return err
		}

		<-ctx.Done()
		return consumer.Err()
	},
}

// tailRecord is the JSON line written per landed update.
type tailRecord struct {
	RenderStateID uint64                 `json:"render_state_id"`
	RequestID     string                 `json:"request_id"`
	LoadType      string                 `json:"load_type"`
	Kind          string                 `json:"kind"`
	Scroll        string                 `json:"scroll"`
	ScrollIndex   int                    `json:"scroll_index,omitempty"`
	Interactions  int                    `json:"interactions"`
	CanLoadOlder  bool                   `json:"can_load_older"`
	CanLoadNewer  bool                   `json:"can_load_newer"`
	UnreadIndex   int                    `json:"unread_index"`
	Added         []string               `json:"added,omitempty"`
	Removed       []string               `json:"removed,omitempty"`
	Updated       []string               `json:"updated,omitempty"`
	Moved         []string               `json:"moved,omitempty"`
	Stats         conversation.LoadStats `json:"stats"`
	Items         []tailItem             `json:"items,omitempty"`
}

type tailItem struct {
	ID     string   `json:"id"`
	Kind   string   `json:"kind"`
	Author string   `json:"author,omitempty"`
	Lines  []string `json:"lines,omitempty"`
}

type lander interface {
	LoadDidLand()
}

// headlessConsumer is a Consumer with no animations: every update is safe
// to land and is applied as soon as it is written out.
type headlessConsumer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	items   bool
	err     error
	lander  lander
}

func newHeadlessConsumer(out io.Writer, items bool) *headlessConsumer {
	return &headlessConsumer{encoder: json.NewEncoder(out), items: items}
}

func (h *headlessConsumer) IsLayoutApplyingUpdate() bool { return false }
func (h *headlessConsumer) AreCellsAnimating() bool      { return false }
func (h *headlessConsumer) IsKeyboardAnimating() bool    { return false }
func (h *headlessConsumer) IsMultiSelectAnimating() bool { return false }
func (h *headlessConsumer) IsScrolledToBottom() bool     { return true }
func (h *headlessConsumer) IsScrolledNearTop() bool      { return false }
func (h *headlessConsumer) IsScrolledNearBottom() bool   { return true }

func (h *headlessConsumer) WillUpdateWithNewRenderState(*conversation.RenderState) conversation.UpdateToken {
	return conversation.UpdateToken{WasScrolledToBottom: true}
}

func (h *headlessConsumer) UpdateWithNewRenderState(update *conversation.Update, scroll conversation.ScrollInstruction, _ conversation.UpdateToken) {
	record := newTailRecord(update, scroll, h.items)

	h.mu.Lock()
	if err := h.encoder.Encode(record); err != nil && h.err == nil {
		h.err = fmt.Errorf("failed to write update: %w", err)
	}
	h.mu.Unlock()

	if h.lander != nil {
		h.lander.LoadDidLand()
	}
}

// Err returns the first write error.
func (h *headlessConsumer) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func newTailRecord(update *conversation.Update, scroll conversation.ScrollInstruction, items bool) tailRecord {
	state := update.RenderState
	record := tailRecord{
		RenderStateID: state.ID,
		RequestID:     update.Request.RequestID,
		LoadType:      update.Request.LoadType.String(),
		Kind:          update.Kind.String(),
		Scroll:        scroll.Kind.String(),
		Interactions:  state.InteractionCount(),
		CanLoadOlder:  state.CanLoadOlderItems,
		CanLoadNewer:  state.CanLoadNewerItems,
		UnreadIndex:   state.UnreadIndicatorIndex,
		Added:         update.Added,
		Removed:       update.Removed,
		Updated:       update.Updated,
		Moved:         update.Moved,
		Stats:         update.Stats,
	}
	if scroll.Kind == conversation.ScrollInstructionToIndex {
		record.ScrollIndex = scroll.Index
	}
	if items {
		record.Items = make([]tailItem, 0, len(state.Items))
		for _, item := range state.Items {
			entry := tailItem{ID: item.ID, Kind: item.Kind.String()}
			if item.Payload != nil {
				entry.Author = item.Payload.Author
				entry.Lines = item.Payload.Lines
			}
			record.Items = append(record.Items, entry)
		}
	}
	return record
}
