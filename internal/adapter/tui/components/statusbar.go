package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"arbiter-launcher/internal/adapter/tui/theme"
)

// KeyHint is one "key: action" pair on the status line.
type KeyHint struct {
	Key, Desc string
}

// StatusLine is the bottom bar: key hints left, phase and setup
// directory right. Busy, when set, is appended in the info color.
type StatusLine struct {
	Hints  []KeyHint
	Phase  string
	Target string
	Busy   string
}

// Render lays the bar out in width cells. A long Target is shortened
// from the left so the directory name stays visible.
func (s StatusLine) Render(width int) string {
	hints := make([]string, len(s.Hints))
	for i, h := range s.Hints {
		hints[i] = theme.StatusKey.Render(h.Key) + " " + h.Desc
	}
	left := strings.Join(hints, theme.Dim.Render("  "+theme.SymbolBullet+"  "))

	busy := ""
	if s.Busy != "" {
		busy = "  " + theme.TextInfo.Render(s.Busy)
	}

	// Two cells of bar padding plus one cell of gap.
	room := width - lipgloss.Width(left) - lipgloss.Width(busy) - 3
	info := s.Phase
	if s.Target != "" {
		info += " " + theme.SymbolBullet + " " + shortenPath(s.Target, room-lipgloss.Width(info)-3)
	}
	right := theme.TextMuted.Render(info) + busy

	gap := max(width-2-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return theme.StatusBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func shortenPath(p string, room int) string {
	r := []rune(p)
	if room <= 0 || len(r) <= room {
		return p
	}
	keep := room - lipgloss.Width(theme.SymbolEllipsis)
	if keep <= 0 {
		return theme.SymbolEllipsis
	}
	return theme.SymbolEllipsis + string(r[len(r)-keep:])
}
