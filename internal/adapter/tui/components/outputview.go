package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"arbiter-launcher/internal/adapter/tui/theme"
	"arbiter-launcher/internal/domain"
)

// DefaultMaxOutputBytes caps the text kept by an OutputViewModel.
const DefaultMaxOutputBytes = 512 * 1024

// OutputViewModel wraps a viewport showing the session's output stream.
// Auto-scroll is active while the user is at the bottom; scrolling up pauses
// it until the user scrolls back down.
type OutputViewModel struct {
	Viewport viewport.Model
	MaxBytes int

	chunks   []outputChunk
	size     int
	ready    bool
	atBottom bool
}

type outputChunk struct {
	source   domain.UIEventSource
	stderr   bool
	text     string
	rendered string
}

// render is swapped in tests to count styling work.
var render = renderChunk

// NewOutputView creates an output view. The viewport is initialized lazily
// on the first SetSize.
func NewOutputView() OutputViewModel {
	return OutputViewModel{
		MaxBytes: DefaultMaxOutputBytes,
		atBottom: true,
	}
}

// SetSize sets the viewport dimensions and re-renders the content.
func (m *OutputViewModel) SetSize(w, h int) {
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refreshContent()
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}

// Append adds an output event's text verbatim. stderr marks process text
// carrying the runner's stderr prefix.
func (m *OutputViewModel) Append(source domain.UIEventSource, text string, stderr bool) {
	if text == "" {
		return
	}
	c := outputChunk{source: source, stderr: stderr, text: text}
	c.rendered = render(c)
	m.chunks = append(m.chunks, c)
	m.size += len(text)
	for m.MaxBytes > 0 && m.size > m.MaxBytes && len(m.chunks) > 1 {
		m.size -= len(m.chunks[0].text)
		m.chunks = m.chunks[1:]
	}
	m.refreshContent()
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}

// Text returns the unstyled output.
func (m OutputViewModel) Text() string {
	var sb strings.Builder
	for _, c := range m.chunks {
		sb.WriteString(c.text)
	}
	return sb.String()
}

// Update handles viewport scrolling and tracks auto-scroll state.
func (m OutputViewModel) Update(msg tea.Msg) (OutputViewModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// View renders the output viewport.
func (m OutputViewModel) View() string {
	if !m.ready {
		return "  Initializing..."
	}
	return m.Viewport.View()
}

func (m *OutputViewModel) refreshContent() {
	if !m.ready {
		return
	}
	var sb strings.Builder
	for _, c := range m.chunks {
		sb.WriteString(c.rendered)
	}
	m.Viewport.SetContent(sb.String())
}

// renderChunk styles each line separately so ANSI sequences never span a
// newline the viewport splits on.
func renderChunk(c outputChunk) string {
	style := theme.ProcessText
	switch {
	case c.source == domain.SourceProcess && c.stderr:
		style = theme.StderrText
	case c.source == domain.SourceSystem && strings.Contains(c.text, "== ERROR =="):
		style = theme.ErrorBanner
	case c.source == domain.SourceSystem:
		style = theme.SystemText
	case c.source == domain.SourceWizard:
		style = theme.WizardText
	case c.source == domain.SourceUser:
		style = theme.UserText
	}
	if c.source == domain.SourceProcess && !c.stderr {
		return c.text
	}
	lines := strings.Split(c.text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
