package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// MarkdownModel renders short markdown documents such as the result summary.
// The renderer is rebuilt when the wrap width changes.
type MarkdownModel struct {
	style    string // glamour standard style: "dark" or "light"
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdown picks the style from the terminal background. Call it before
// the program starts; the background query reads from the terminal.
func NewMarkdown() MarkdownModel {
	style := "light"
	if lipgloss.HasDarkBackground() {
		style = "dark"
	}
	return MarkdownModel{style: style}
}

// SetWidth sets the wrap width and rebuilds the renderer.
func (m *MarkdownModel) SetWidth(w int) {
	if w == m.width && m.renderer != nil {
		return
	}
	m.width = w
	m.renderer = nil
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithWordWrap(w),
	)
	if err == nil {
		m.renderer = r
	}
}

// Render returns md styled for the terminal, or md itself when no renderer
// is available or rendering fails.
func (m MarkdownModel) Render(md string) string {
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
