package wizard

import (
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter-launcher/internal/domain"
)

func typeText(f AnswerField, s string) AnswerField {
	f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return f
}

func TestAnswerFieldSubmitsRawValue(t *testing.T) {
	f := NewAnswerField("")
	f.Ask("Keystore password", true)
	f = typeText(f, " pass word ")
	require.Equal(t, " pass word ", f.Value())

	f, cmd := f.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(AnswerMsg)
	require.True(t, ok)
	assert.Equal(t, AnswerMsg{Value: " pass word ", Secret: true}, msg)
	assert.Empty(t, f.Value(), "field resets after submit")
}

func TestAnswerFieldAskKeepsTypedText(t *testing.T) {
	f := NewAnswerField("")
	f = typeText(f, "0xab")
	f.Reject("invalid address")

	f.Ask("Keystore password", true)
	assert.Equal(t, "0xab", f.Value())
	assert.Equal(t, textinput.EchoPassword, f.Input.EchoMode)
	assert.Empty(t, f.ErrMsg, "a new question clears the old rejection")

	f.Idle()
	assert.False(t, f.Secret)
	assert.Empty(t, f.Label)
	assert.Equal(t, textinput.EchoNormal, f.Input.EchoMode)
}

func TestAnswerFieldView(t *testing.T) {
	f := NewAnswerField("0x...")
	f.Ask("Arbiter address", false)
	f.Reject("invalid address")
	view := f.View()
	assert.Contains(t, view, "Arbiter address")
	assert.Contains(t, view, "invalid address")

	f.ClearError()
	assert.NotContains(t, f.View(), "invalid address")
}

func TestStepIndicatorFollowsWizardState(t *testing.T) {
	s := NewStepIndicator(CredentialSteps())
	s.SetWidth(60)

	s.SetState(domain.AwaitingEscKey)
	assert.Equal(t, 1, s.Current)
	assert.Contains(t, s.View(), "Credential 2/4: ESC private key")

	s.SetState(domain.WizardComplete)
	assert.True(t, s.Done)
	assert.Contains(t, s.View(), "Credentials collected")
	assert.Contains(t, s.View(), "100%")
}

func TestStepIndicatorNarrowWidth(t *testing.T) {
	s := NewStepIndicator(CredentialSteps())
	s.SetWidth(10)
	assert.Empty(t, s.View())
}
