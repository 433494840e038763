// Package theme holds the launcher TUI palette, styles and symbols.
// Colors are adaptive; lipgloss drops them under NO_COLOR.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette. The accent follows the BeL2 orange; everything else stays close
// to the terminal's defaults so child output remains readable.
var (
	ColorBrand  = lipgloss.AdaptiveColor{Light: "#d35400", Dark: "#f39c12"}
	ColorInfo   = lipgloss.AdaptiveColor{Light: "#1f618d", Dark: "#5dade2"}
	ColorOK     = lipgloss.AdaptiveColor{Light: "#1e8449", Dark: "#58d68d"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#b03a2e", Dark: "#ec7063"}
	ColorStderr = lipgloss.AdaptiveColor{Light: "#9a7d0a", Dark: "#f7dc6f"}
	ColorSubtle = lipgloss.AdaptiveColor{Light: "#707b7c", Dark: "#a6acaf"}
	ColorFrame  = lipgloss.AdaptiveColor{Light: "#b3b6b7", Dark: "#566573"}
	ColorBar    = lipgloss.AdaptiveColor{Light: "#eaeded", Dark: "#212f3d"}
)

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorSubtle)

	// BorderNormal frames the result summary.
	BorderNormal = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorFrame).
			Padding(0, 1)
)

// --- Output stream ---

var (
	// ProcessText is left unstyled so the child's own formatting shows through.
	ProcessText = lipgloss.NewStyle()

	StderrText  = lipgloss.NewStyle().Foreground(ColorStderr)
	SystemText  = lipgloss.NewStyle().Foreground(ColorSubtle).Italic(true)
	WizardText  = lipgloss.NewStyle().Foreground(ColorBrand).Bold(true)
	UserText    = lipgloss.NewStyle().Foreground(ColorInfo)
	ErrorBanner = lipgloss.NewStyle().Foreground(ColorFail).Bold(true).Reverse(true)
)

// --- Status bar ---

var (
	StatusBar = lipgloss.NewStyle().Foreground(ColorSubtle).Background(ColorBar).Padding(0, 1)
	StatusKey = lipgloss.NewStyle().Foreground(ColorBrand).Bold(true)
)

// --- Input line and credential wizard ---

var (
	InputPrompt      = lipgloss.NewStyle().Foreground(ColorBrand).Bold(true)
	InputPlaceholder = lipgloss.NewStyle().Foreground(ColorSubtle).Faint(true)

	// WizardTitle is also the screen title.
	WizardTitle      = lipgloss.NewStyle().Foreground(ColorBrand).Bold(true).Padding(0, 0, 1, 0)
	WizardStepActive = lipgloss.NewStyle().Foreground(ColorBrand).Bold(true)
	WizardStepDone   = lipgloss.NewStyle().Foreground(ColorOK)
	ProgressFull     = lipgloss.NewStyle().Foreground(ColorBrand)
	ProgressEmpty    = lipgloss.NewStyle().Foreground(ColorFrame)
)

// --- Go and Git check ---

var (
	ToolCard = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorFrame).
			PaddingLeft(1)
	ToolName = lipgloss.NewStyle().Bold(true).Width(4)
)

// MaxContentWidth is the recommended max width for readable text content.
const MaxContentWidth = 100

// MinOutputHeight is the smallest height given to the output pane.
const MinOutputHeight = 5

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
