package conversation

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/tOgg1/threadview/internal/models"
)

const (
	blockedPlaceholder = "Message from a blocked contact"
	minWrapWidth       = 8
)

// TextRenderer is the default ItemRenderer. It word-wraps bodies to the
// viewport width and masks content from blocked authors.
type TextRenderer struct {
	// Gutter is subtracted from the viewport width before wrapping.
	Gutter int
}

// Render implements ItemRenderer.
func (r TextRenderer) Render(interaction *models.Interaction, author models.Profile, view ViewStateSnapshot) *DisplayPayload {
	width := view.ViewportWidth - r.Gutter
	if width < minWrapWidth {
		width = minWrapWidth
	}

	payload := &DisplayPayload{
		Timestamp:     interaction.CreatedAt,
		Edited:        interaction.EditedAt != nil,
		AvatarBlurred: author.AvatarBlurred,
		Width:         view.ViewportWidth,
	}
	switch interaction.Kind {
	case models.InteractionKindOutgoing:
		payload.Author = "you"
	case models.InteractionKindInfo:
		payload.Author = ""
	default:
		payload.Author = author.Name()
		if payload.Author == "" {
			payload.Author = interaction.Author
		}
	}

	body := interaction.Body
	if author.Blocked && interaction.Kind == models.InteractionKindIncoming {
		payload.Masked = true
		body = blockedPlaceholder
	}
	payload.Lines = wrapLines(body, width)
	return payload
}

func wrapLines(body string, width int) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		for _, wrapped := range strings.Split(wordwrap.String(line, width), "\n") {
			lines = append(lines, strings.TrimRight(wrapped, " "))
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
