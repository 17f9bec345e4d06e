package listview

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// authorPalette is an ANSI 256 palette for stable author colors.
var authorPalette = []string{
	"33", "39", "45", "69", "75", "81", "87", "99",
	"111", "117", "123", "147", "153", "159", "183", "189",
}

// Styles holds the pre-built lipgloss styles used by the list.
type Styles struct {
	Header    lipgloss.Style
	Footer    lipgloss.Style
	Timestamp lipgloss.Style
	Body      lipgloss.Style
	Outgoing  lipgloss.Style
	Info      lipgloss.Style
	Masked    lipgloss.Style
	Edited    lipgloss.Style
	Date      lipgloss.Style
	Unread    lipgloss.Style
	Typing    lipgloss.Style
	Selected  lipgloss.Style

	authors *authorColors
}

// DefaultStyles returns the default dark-terminal styles.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1),
		Footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 1),
		Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Body:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Outgoing:  lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true),
		Info:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		Masked:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Faint(true),
		Edited:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Date:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true),
		Unread:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		Typing:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		Selected:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		authors:   newAuthorColors(),
	}
}

// Author returns the cached style for an author name.
func (s Styles) Author(name string) lipgloss.Style {
	if s.authors == nil {
		return lipgloss.NewStyle().Bold(true)
	}
	return s.authors.style(name)
}

type authorColors struct {
	mu    sync.RWMutex
	cache map[string]lipgloss.Style
}

func newAuthorColors() *authorColors {
	return &authorColors{cache: make(map[string]lipgloss.Style, 64)}
}

func (a *authorColors) style(name string) lipgloss.Style {
	key := strings.ToLower(strings.TrimSpace(name))

	a.mu.RLock()
	if style, ok := a.cache[key]; ok {
		a.mu.RUnlock()
		return style
	}
	a.mu.RUnlock()

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(authorColorCode(key))).Bold(true)

	a.mu.Lock()
	a.cache[key] = style
	a.mu.Unlock()
	return style
}

func authorColorCode(key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return authorPalette[int(h.Sum32()%uint32(len(authorPalette)))]
}
