package wizard

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"arbiter-launcher/internal/adapter/tui/theme"
)

// AnswerMsg carries one submitted line. Value is untrimmed; the sequencer
// or the child decides what whitespace means.
type AnswerMsg struct {
	Value  string
	Secret bool
}

// AnswerField is the single-line editor under the output pane. It answers
// credential questions and forwards free text to a running child.
type AnswerField struct {
	Input  textinput.Model
	Label  string // question being answered; empty when idle
	Secret bool
	ErrMsg string
}

// NewAnswerField returns a focused, unmasked field.
func NewAnswerField(placeholder string) AnswerField {
	in := textinput.New()
	in.Prompt = theme.SymbolArrowR + " "
	in.Placeholder = placeholder
	in.Width = theme.MaxContentWidth - 10
	in.PromptStyle = theme.InputPrompt
	in.PlaceholderStyle = theme.InputPlaceholder
	in.Focus()
	return AnswerField{Input: in}
}

// Ask switches the field to a new question. Typed text is kept so a
// late prompt does not eat a half-written answer.
func (f *AnswerField) Ask(label string, secret bool) {
	f.Label = label
	f.ErrMsg = ""
	f.Secret = secret
	f.Input.EchoMode = textinput.EchoNormal
	if secret {
		f.Input.EchoMode = textinput.EchoPassword
		f.Input.EchoCharacter = theme.SecretRune()
	}
}

// Idle clears the question and unmasks the field.
func (f *AnswerField) Idle() { f.Ask("", false) }

// Reject shows msg under the field until the next answer.
func (f *AnswerField) Reject(msg string) { f.ErrMsg = msg }

// ClearError removes a rejection message.
func (f *AnswerField) ClearError() { f.ErrMsg = "" }

// Value returns the current raw input.
func (f AnswerField) Value() string { return f.Input.Value() }

// Update edits the line; Enter emits an AnswerMsg and empties it.
func (f AnswerField) Update(msg tea.Msg) (AnswerField, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEnter {
		ans := AnswerMsg{Value: f.Input.Value(), Secret: f.Secret}
		f.Input.Reset()
		return f, func() tea.Msg { return ans }
	}
	var cmd tea.Cmd
	f.Input, cmd = f.Input.Update(msg)
	return f, cmd
}

func (f AnswerField) View() string {
	var b strings.Builder
	if f.Label != "" {
		b.WriteString(theme.Bold.Render(f.Label))
		b.WriteByte('\n')
	}
	b.WriteString(f.Input.View())
	if f.ErrMsg != "" {
		b.WriteByte('\n')
		b.WriteString(theme.TextError.Render(theme.SymbolError + " " + f.ErrMsg))
	}
	return b.String()
}
