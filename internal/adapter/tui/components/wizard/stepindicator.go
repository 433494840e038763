// Package wizard holds the TUI pieces of the credential wizard.
package wizard

import (
	"fmt"
	"strings"

	"arbiter-launcher/internal/adapter/tui/theme"
	"arbiter-launcher/internal/domain"
)

// Step names one credential question.
type Step struct {
	Name string
}

// CredentialSteps lists the questions in the order the sequencer asks them.
func CredentialSteps() []Step {
	return []Step{
		{Name: "BTC private key"},
		{Name: "ESC private key"},
		{Name: "Keystore password"},
		{Name: "Arbiter address"},
	}
}

// StepIndicatorModel shows "Credential 2/4: ESC private key" over a bar
// split into one segment per credential.
type StepIndicatorModel struct {
	Steps   []Step
	Current int
	Done    bool
	width   int
}

func NewStepIndicator(steps []Step) StepIndicatorModel {
	return StepIndicatorModel{Steps: steps}
}

func (m *StepIndicatorModel) SetWidth(w int) { m.width = w }

// SetState follows the sequencer. Out-of-range states are ignored.
func (m *StepIndicatorModel) SetState(s domain.WizardState) {
	if s == domain.WizardComplete {
		m.Done, m.Current = true, len(m.Steps)-1
		return
	}
	if i := int(s); i >= 0 && i < len(m.Steps) {
		m.Done, m.Current = false, i
	}
}

// answered is the number of credentials already collected.
func (m StepIndicatorModel) answered() int {
	if m.Done {
		return len(m.Steps)
	}
	return m.Current
}

func (m StepIndicatorModel) View() string {
	n := len(m.Steps)
	if n == 0 || m.width < 20 {
		return ""
	}

	title := theme.WizardStepActive.Render(
		fmt.Sprintf("Credential %d/%d: %s", m.Current+1, n, m.Steps[m.Current].Name))
	if m.Done {
		title = theme.WizardStepDone.Render(theme.SymbolSuccess + " Credentials collected")
	}

	// Each segment is followed by one gap cell; the percentage takes five.
	seg := max((m.width-6)/n-1, 2)
	var bar strings.Builder
	for i := range n {
		style := theme.ProgressEmpty
		if i < m.answered() {
			style = theme.ProgressFull
		}
		bar.WriteString(style.Render(strings.Repeat("━", seg)))
		bar.WriteByte(' ')
	}
	pct := theme.TextMuted.Render(fmt.Sprintf("%3d%%", m.answered()*100/n))

	return title + "\n" + bar.String() + pct
}
