// Package listview is a bubbletea terminal consumer for a conversation
// coordinator.
package listview

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/tOgg1/threadview/internal/conversation"
	"github.com/tOgg1/threadview/internal/events"
	"github.com/tOgg1/threadview/internal/logging"
	"github.com/tOgg1/threadview/internal/models"
)

const (
	defaultAnimation = 120 * time.Millisecond
	// nearEdgeLines is how close to an edge (in lines) counts as "near".
	nearEdgeLines = 5
)

// Controller is the coordinator surface the list drives.
type Controller interface {
	LoadDidLand()
	ScrollDidChange()
	SetViewportWidth(width int)
	SetSelectionMode(enabled bool)
	EnqueueLoadAndScrollToNewest()
	ClearUnreadMessagesIndicator()
}

// Sender delivers messages into a running bubbletea program.
type Sender interface {
	Send(msg tea.Msg)
}

// Config configures a Model.
type Config struct {
	Title string
	// Animation is how long cells animate after an update lands.
	Animation time.Duration
	Styles    *Styles
	// Events receives app lifecycle events when the terminal reports focus
	// changes.
	Events events.Publisher
}

// scrollAnchor is the continuity anchor published for the coordinator
// goroutine.
type scrollAnchor struct {
	offset   int
	itemID   string
	inItem   int
	atBottom bool
}

type updateMsg struct {
	update *conversation.Update
	scroll conversation.ScrollInstruction
	token  conversation.UpdateToken
}

type animationDoneMsg struct {
	generation int
}

type selectionDoneMsg struct{}

// Model renders the landed render state and implements conversation.Consumer.
// Consumer methods run on the coordinator goroutine; they only touch atomics
// and hand updates to the program through the Sender.
type Model struct {
	controller Controller
	sender     Sender
	styles     Styles
	title      string
	animation  time.Duration
	events     events.Publisher
	logger     zerolog.Logger

	state        *conversation.RenderState
	layout       layout
	offset       int
	width        int
	height       int
	selection    bool
	animationGen int

	layoutApplying atomic.Bool
	animating      atomic.Bool
	multiSelecting atomic.Bool
	atBottom       atomic.Bool
	nearTop        atomic.Bool
	nearBottom     atomic.Bool
	anchor         atomic.Pointer[scrollAnchor]
}

// New creates a list model. SetController and SetSender must be called
// before the coordinator is started.
func New(cfg Config) *Model {
	styles := DefaultStyles()
	if cfg.Styles != nil {
		styles = *cfg.Styles
	}
	if cfg.Animation <= 0 {
		cfg.Animation = defaultAnimation
	}
	m := &Model{
		styles:    styles,
		title:     cfg.Title,
		animation: cfg.Animation,
		events:    cfg.Events,
		logger:    logging.Component("listview"),
	}
	m.atBottom.Store(true)
	m.anchor.Store(&scrollAnchor{atBottom: true})
	return m
}

func (m *Model) SetController(controller Controller) {
	m.controller = controller
}

func (m *Model) SetSender(sender Sender) {
	m.sender = sender
}

// RenderState returns the state currently on screen.
func (m *Model) RenderState() *conversation.RenderState {
	return m.state
}

func (m *Model) IsLayoutApplyingUpdate() bool { return m.layoutApplying.Load() }
func (m *Model) AreCellsAnimating() bool      { return m.animating.Load() }
func (m *Model) IsKeyboardAnimating() bool    { return false }
func (m *Model) IsMultiSelectAnimating() bool { return m.multiSelecting.Load() }
func (m *Model) IsScrolledToBottom() bool     { return m.atBottom.Load() }
func (m *Model) IsScrolledNearTop() bool      { return m.nearTop.Load() }
func (m *Model) IsScrolledNearBottom() bool   { return m.nearBottom.Load() }

// WillUpdateWithNewRenderState captures the scroll position to restore.
func (m *Model) WillUpdateWithNewRenderState(*conversation.RenderState) conversation.UpdateToken {
	anchor := m.anchor.Load()
	if anchor == nil {
		return conversation.UpdateToken{WasScrolledToBottom: true}
	}
	return conversation.UpdateToken{
		ScrollOffset:        anchor.offset,
		ContinuityAnchorID:  anchor.itemID,
		AnchorOffset:        anchor.inItem,
		WasScrolledToBottom: anchor.atBottom,
	}
}

// UpdateWithNewRenderState hands the update to the program loop.
func (m *Model) UpdateWithNewRenderState(update *conversation.Update, scroll conversation.ScrollInstruction, token conversation.UpdateToken) {
	m.layoutApplying.Store(true)
	msg := updateMsg{update: update, scroll: scroll, token: token}
	if m.sender == nil {
		m.logger.Warn().Uint64("render_state_id", update.RenderState.ID).Msg("no program to deliver update")
		m.layoutApplying.Store(false)
		if m.controller != nil {
			m.controller.LoadDidLand()
		}
		return
	}
	go m.sender.Send(msg)
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.relayout()
		if m.controller != nil {
			m.controller.SetViewportWidth(m.width)
		}
		return m, nil
	case updateMsg:
		return m, m.apply(typed)
	case tea.BlurMsg:
		m.publishLifecycle(models.EventTypeAppBackgrounded)
		return m, nil
	case tea.FocusMsg:
		m.publishLifecycle(models.EventTypeAppForegrounded)
		return m, nil
	case animationDoneMsg:
		if typed.generation == m.animationGen {
			m.animating.Store(false)
		}
		return m, nil
	case selectionDoneMsg:
		m.multiSelecting.Store(false)
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(typed)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "up", "k":
		m.scrollBy(-1)
	case "down", "j":
		m.scrollBy(1)
	case "pgup", "b":
		m.scrollBy(-m.pageLines())
	case "pgdown", " ", "f":
		m.scrollBy(m.pageLines())
	case "g", "home":
		m.scrollBy(-m.layout.total())
	case "G", "end":
		if m.controller != nil {
			m.controller.EnqueueLoadAndScrollToNewest()
		}
	case "c":
		if m.controller != nil {
			m.controller.ClearUnreadMessagesIndicator()
		}
	case "v":
		m.selection = !m.selection
		m.multiSelecting.Store(true)
		if m.controller != nil {
			m.controller.SetSelectionMode(m.selection)
		}
		return tea.Tick(m.animation, func(time.Time) tea.Msg { return selectionDoneMsg{} })
	}
	return nil
}

func (m *Model) apply(msg updateMsg) tea.Cmd {
	m.state = msg.update.RenderState
	m.layout = buildLayout(m.state, m.styles)
	m.offset = m.resolveOffset(msg.scroll, msg.token)
	m.syncScroll()

	m.logger.Debug().
		Uint64("render_state_id", m.state.ID).
		Int("items", len(m.state.Items)).
		Int("offset", m.offset).
		Msg("applied update")

	m.layoutApplying.Store(false)
	if m.controller != nil {
		m.controller.LoadDidLand()
	}

	if msg.update.IsEmpty() {
		return nil
	}
	m.animationGen++
	m.animating.Store(true)
	gen := m.animationGen
	return tea.Tick(m.animation, func(time.Time) tea.Msg { return animationDoneMsg{generation: gen} })
}

func (m *Model) resolveOffset(scroll conversation.ScrollInstruction, token conversation.UpdateToken) int {
	switch scroll.Kind {
	case conversation.ScrollInstructionToBottom:
		return m.maxOffset()
	case conversation.ScrollInstructionToIndex:
		return m.offsetForIndex(scroll)
	case conversation.ScrollInstructionKeepContinuity:
		if token.WasScrolledToBottom {
			return m.maxOffset()
		}
		if idx := m.layout.indexOf(token.ContinuityAnchorID); idx >= 0 {
			return m.layout.starts[idx] + token.AnchorOffset
		}
		return token.ScrollOffset
	default:
		if token.WasScrolledToBottom {
			return m.maxOffset()
		}
		return m.offset
	}
}

func (m *Model) offsetForIndex(scroll conversation.ScrollInstruction) int {
	if scroll.Index < 0 || scroll.Index+1 >= len(m.layout.starts) {
		return m.offset
	}
	start := m.layout.starts[scroll.Index]
	height := m.layout.itemHeight(scroll.Index)
	fraction := int(scroll.ScreenFraction * float64(m.bodyHeight()))
	switch scroll.Alignment {
	case conversation.AlignCenter:
		return start + height/2 - fraction
	case conversation.AlignBottom:
		return start + height - fraction
	default:
		return start - fraction
	}
}

func (m *Model) scrollBy(delta int) {
	if delta == 0 {
		return
	}
	m.offset += delta
	m.syncScroll()
	if m.controller != nil {
		m.controller.ScrollDidChange()
	}
}

func (m *Model) relayout() {
	if m.state == nil {
		return
	}
	m.layout = buildLayout(m.state, m.styles)
	m.syncScroll()
}

// syncScroll clamps the offset and republishes the scroll flags and anchor.
func (m *Model) syncScroll() {
	maxOffset := m.maxOffset()
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}

	body := m.bodyHeight()
	total := m.layout.total()
	m.atBottom.Store(m.offset >= maxOffset)
	m.nearTop.Store(m.offset <= nearEdgeLines)
	m.nearBottom.Store(m.offset+body >= total-nearEdgeLines)

	anchor := &scrollAnchor{offset: m.offset, atBottom: m.offset >= maxOffset}
	if idx, inItem := m.layout.itemAt(m.offset); idx >= 0 {
		anchor.itemID = m.layout.ids[idx]
		anchor.inItem = inItem
	}
	m.anchor.Store(anchor)
}

func (m *Model) maxOffset() int {
	maxOffset := m.layout.total() - m.bodyHeight()
	if maxOffset < 0 {
		return 0
	}
	return maxOffset
}

func (m *Model) bodyHeight() int {
	// header and footer take one line each
	body := m.height - 2
	if body < 1 {
		return 1
	}
	return body
}

func (m *Model) pageLines() int {
	page := m.bodyHeight() - 1
	if page < 1 {
		return 1
	}
	return page
}

func (m *Model) View() string {
	if m.state == nil {
		return m.styles.Footer.Render("loading…")
	}
	body := m.bodyHeight()
	end := m.offset + body
	if end > m.layout.total() {
		end = m.layout.total()
	}
	visible := append([]string(nil), m.layout.lines[m.offset:end]...)
	for len(visible) < body {
		visible = append(visible, "")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		lipgloss.JoinVertical(lipgloss.Left, visible...),
		m.renderFooter(),
	)
}

func (m *Model) renderHeader() string {
	title := m.title
	if title == "" && m.state.Thread != nil {
		title = m.state.Thread.Title
	}
	older := ""
	if m.state.CanLoadOlderItems {
		older = " ↑"
	}
	newer := ""
	if m.state.CanLoadNewerItems {
		newer = " ↓"
	}
	line := fmt.Sprintf("%s  #%d  %d msgs%s%s", title, m.state.ID, m.state.InteractionCount(), older, newer)
	return m.styles.Header.Width(m.width).Render(line)
}

func (m *Model) renderFooter() string {
	help := "j/k scroll  G newest  c clear unread  v select  q quit"
	if m.selection {
		help = "selecting  " + help
	}
	return m.styles.Footer.Render(help)
}

func (m *Model) publishLifecycle(eventType models.EventType) {
	if m.events == nil {
		return
	}
	m.events.Publish(context.Background(), &models.Event{Type: eventType})
}
