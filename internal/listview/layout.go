package listview

import (
	"strings"

	"github.com/tOgg1/threadview/internal/conversation"
)

// layout is the flattened line view of a render state.
type layout struct {
	lines []string
	// starts[i] is the first line of state.Items[i]; starts[len(items)] is
	// the total line count.
	starts []int
	ids    []string
}

func buildLayout(state *conversation.RenderState, styles Styles) layout {
	var l layout
	if state == nil {
		return l
	}
	l.starts = make([]int, 0, len(state.Items)+1)
	l.ids = make([]string, 0, len(state.Items))
	for i := range state.Items {
		l.starts = append(l.starts, len(l.lines))
		l.ids = append(l.ids, state.Items[i].ID)
		l.lines = append(l.lines, renderItem(&state.Items[i], state.ViewState, styles)...)
	}
	l.starts = append(l.starts, len(l.lines))
	return l
}

func (l layout) total() int {
	return len(l.lines)
}

func (l layout) itemHeight(idx int) int {
	if idx < 0 || idx+1 >= len(l.starts) {
		return 0
	}
	return l.starts[idx+1] - l.starts[idx]
}

// itemAt returns the item covering line and the line offset inside it.
func (l layout) itemAt(line int) (int, int) {
	if len(l.ids) == 0 {
		return -1, 0
	}
	for i := len(l.ids) - 1; i >= 0; i-- {
		if l.starts[i] <= line {
			return i, line - l.starts[i]
		}
	}
	return 0, 0
}

func (l layout) indexOf(id string) int {
	for i, candidate := range l.ids {
		if candidate == id {
			return i
		}
	}
	return -1
}

func renderItem(item *conversation.RenderItem, view conversation.ViewStateSnapshot, styles Styles) []string {
	payload := item.Payload
	if payload == nil {
		return nil
	}
	switch item.Kind {
	case conversation.CellKindDateHeader:
		return []string{styles.Date.Render("── " + strings.Join(payload.Lines, " ") + " ──")}
	case conversation.CellKindUnreadIndicator:
		return []string{styles.Unread.Render("── " + strings.Join(payload.Lines, " ") + " ──")}
	case conversation.CellKindTypingIndicator:
		return []string{styles.Typing.Render(strings.Join(payload.Lines, " "))}
	case conversation.CellKindInfo:
		out := make([]string, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			out = append(out, styles.Info.Render(line))
		}
		return out
	}

	author := styles.Author(payload.Author)
	if item.Kind == conversation.CellKindOutgoing {
		author = styles.Outgoing
	}
	header := author.Render(payload.Author) + " " + styles.Timestamp.Render(payload.Timestamp.Format("15:04"))
	if payload.Edited {
		header += " " + styles.Edited.Render("(edited)")
	}
	if view.SelectionMode {
		header = styles.Selected.Render("[ ] ") + header
	}

	body := styles.Body
	if payload.Masked {
		body = styles.Masked
	}
	out := make([]string, 0, len(payload.Lines)+2)
	out = append(out, header)
	for _, line := range payload.Lines {
		out = append(out, body.Render(line))
	}
	return append(out, "")
}
