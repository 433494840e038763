package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"arbiter-launcher/internal/adapter/tui/components"
	"arbiter-launcher/internal/adapter/tui/components/wizard"
	"arbiter-launcher/internal/adapter/tui/theme"
	"arbiter-launcher/internal/adapter/tui/uxerror"
	"arbiter-launcher/internal/domain"
)

// Session is the part of workflow.Session the TUI drives.
type Session interface {
	CheckInstallation(ctx context.Context) domain.InstallationReport
	StartSetup(ctx context.Context, target string) domain.SetupResult
	SubmitInput(text string) error
	Close()
}

// Options configures a Model.
type Options struct {
	// Target skips the directory picker when set.
	Target string
	// StartDir is where the directory picker opens. Defaults to $HOME.
	StartDir string
	// StderrPrefix marks child stderr chunks in the output stream.
	StderrPrefix string
}

// Model is the root Bubble Tea model of the launcher.
type Model struct {
	ctx     context.Context
	session Session
	opts    Options

	phase   Phase
	spinner spinner.Model
	picker  filepicker.Model
	output  components.OutputViewModel
	field   wizard.AnswerField
	steps   wizard.StepIndicatorModel
	md      components.MarkdownModel

	report       *domain.InstallationReport
	result       *domain.SetupResult
	target       string
	wizardActive bool
	lastSecret   bool
	quitting     bool
	width        int
	height       int
}

// NewModel creates the launcher model. ctx bounds every session call.
func NewModel(ctx context.Context, s Session, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	fp := filepicker.New()
	fp.DirAllowed = true
	fp.FileAllowed = false
	fp.ShowHidden = false
	fp.CurrentDirectory = opts.StartDir
	if fp.CurrentDirectory == "" {
		if home, err := os.UserHomeDir(); err == nil {
			fp.CurrentDirectory = home
		} else {
			fp.CurrentDirectory = "."
		}
	}

	return Model{
		ctx:     ctx,
		session: s,
		opts:    opts,
		phase:   PhaseChecking,
		spinner: sp,
		picker:  fp,
		output:  components.NewOutputView(),
		field:   wizard.NewAnswerField("type here and press Enter"),
		steps:   wizard.NewStepIndicator(wizard.CredentialSteps()),
		md:      components.NewMarkdown(),
	}
}

// Phase returns the current screen.
func (m Model) Phase() Phase { return m.phase }

// Result returns the setup outcome once the setup has finished.
func (m Model) Result() (domain.SetupResult, bool) {
	if m.result == nil {
		return domain.SetupResult{}, false
	}
	return *m.result, true
}

// Init starts the installation check.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, checkInstallationCmd(m.ctx, m.session))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.quitting {
				return m, tea.Quit
			}
			m.quitting = true
			return m, closeSessionCmd(m.session)
		}
		if m.phase == PhaseDone && (msg.Type == tea.KeyEnter || msg.String() == "q") {
			m.quitting = true
			return m, closeSessionCmd(m.session)
		}

	case sessionClosedMsg:
		return m, tea.Quit

	case uiEventMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case installCheckedMsg:
		return m.handleInstallation(msg.Report)

	case setupDoneMsg:
		res := msg.Result
		m.result = &res
		m.phase = PhaseDone
		m.wizardActive = false
		m.layout()
		return m, nil

	case inputSentMsg:
		if errors.Is(msg.Err, domain.ErrValidationFailed) {
			m.field.Reject("Invalid value, see the message above.")
			return m, nil
		}
		m.field.ClearError()
		// The wizard emits no prompt after the last answer.
		if msg.Err == nil && m.wizardActive && m.steps.Current == len(m.steps.Steps)-1 {
			m.steps.SetState(domain.WizardComplete)
			m.wizardActive = false
			m.field.Idle()
			m.layout()
		}
		return m, nil
	}

	switch m.phase {
	case PhaseChecking:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case PhaseSelectDir:
		return m.updateSelectDir(msg)
	case PhaseRunning:
		return m.updateRunning(msg)
	case PhaseDone:
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleInstallation(report domain.InstallationReport) (tea.Model, tea.Cmd) {
	m.report = &report
	if !report.CanStart() {
		m.result = &domain.SetupResult{
			Success: false,
			Error:   missingTools(report),
			Code:    domain.CodeBinaryNotFound,
		}
		m.phase = PhaseDone
		m.layout()
		return m, nil
	}
	if !report.Git.Installed {
		m.output.Append(domain.SourceSystem, gitMissingNotice, false)
	}
	if m.opts.Target != "" {
		return m.startRunning(m.opts.Target)
	}
	m.phase = PhaseSelectDir
	m.layout()
	return m, m.picker.Init()
}

func (m Model) updateSelectDir(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "s" {
		return m.startRunning(m.picker.CurrentDirectory)
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		return m.startRunning(path)
	}
	return m, cmd
}

func (m Model) startRunning(target string) (tea.Model, tea.Cmd) {
	m.target = target
	m.phase = PhaseRunning
	m.layout()
	return m, startSetupCmd(m.ctx, m.session, target)
}

func (m Model) updateRunning(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case wizard.AnswerMsg:
		m.lastSecret = msg.Secret
		return m, submitInputCmd(m.session, msg.Value)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	return m, cmd
}

// handleEvent applies one stream event to the output pane and input field.
func (m *Model) handleEvent(ev domain.UIEvent) {
	switch ev.Kind {
	case domain.UIEventOutput:
		text := ev.Text
		if ev.Source == domain.SourceUser && m.lastSecret {
			text = strings.Repeat(theme.SymbolSecret, 8) + "\n"
		}
		stderr := ev.Source == domain.SourceProcess && m.opts.StderrPrefix != "" &&
			strings.HasPrefix(ev.Text, m.opts.StderrPrefix)
		m.output.Append(ev.Source, text, stderr)

	case domain.UIEventPrompt:
		if ev.Source == domain.SourceWizard {
			m.output.Append(ev.Source, ev.Text, false)
			m.wizardActive = true
			m.steps.SetState(ev.State)
			label := ""
			if i := int(ev.State); i < len(m.steps.Steps) {
				label = m.steps.Steps[i].Name
			}
			m.field.Ask(label, ev.State.Secret())
		} else {
			m.wizardActive = false
			m.field.Ask("Process is waiting for input",
				strings.Contains(strings.ToLower(ev.Text), "password"))
		}
		m.layout()

	case domain.UIEventInstallCheck:
		if ev.Installation != nil {
			r := *ev.Installation
			m.report = &r
		}
	}
}

// layout sizes the output pane to the space left by the other widgets.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	m.steps.SetWidth(theme.Clamp(m.width-4, 0, theme.MaxContentWidth))
	m.md.SetWidth(theme.Clamp(m.width-8, 20, theme.MaxContentWidth))

	reserved := 4 // title + status bar + spacing
	switch m.phase {
	case PhaseRunning:
		reserved += 3 // input field
		if m.wizardActive {
			reserved += 3
		}
	case PhaseDone:
		reserved += 12 // result box
	}
	m.output.SetSize(m.width, max(m.height-reserved, theme.MinOutputHeight))
}

// View renders the current phase.
func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	title := theme.WizardTitle.Render("Arbiter Signer Launcher")

	var content string
	switch m.phase {
	case PhaseChecking:
		content = m.spinner.View() + " Checking for Go and Git" + theme.SymbolEllipsis
	case PhaseSelectDir:
		content = m.viewSelectDir()
	case PhaseRunning:
		content = m.viewRunning()
	case PhaseDone:
		content = m.viewDone()
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, content, m.statusBar())
}

func (m Model) viewSelectDir() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewTools(),
		"",
		theme.Bold.Render("Choose the directory to set up the Arbiter Signer in:"),
		theme.TextMuted.Render(m.picker.CurrentDirectory),
		"",
		m.picker.View(),
	)
}

func (m Model) viewTools() string {
	if m.report == nil {
		return ""
	}
	line := func(name string, st domain.ToolStatus) string {
		if st.Installed {
			return theme.TextSuccess.Render(theme.SymbolSuccess) + " " + theme.ToolName.Render(name) + " " + theme.TextMuted.Render(st.Version)
		}
		return theme.TextError.Render(theme.SymbolError) + " " + theme.ToolName.Render(name) + " " + theme.TextMuted.Render(st.Error)
	}
	return theme.ToolCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		line("Go", m.report.Go),
		line("Git", m.report.Git),
	))
}

func (m Model) viewRunning() string {
	parts := []string{}
	if m.wizardActive {
		parts = append(parts, m.steps.View(), "")
	}
	parts = append(parts, m.output.View(), m.field.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewDone() string {
	var summary string
	switch {
	case m.result == nil:
	case m.result.Success:
		summary = theme.TextSuccess.Render(theme.SymbolSuccess+" "+m.result.Message) + "\n" +
			m.md.Render(nextSteps(m.target))
	default:
		fe := uxerror.FromResult(*m.result)
		summary = theme.TextError.Render(theme.SymbolError+" "+fe.Title) + "\n" + m.md.Render(fe.Markdown())
	}
	parts := []string{}
	if m.target != "" {
		parts = append(parts, m.output.View())
	} else {
		parts = append(parts, m.viewTools())
	}
	parts = append(parts, "", theme.BorderNormal.Render(summary))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// nextSteps is shown after the signer exits cleanly.
func nextSteps(target string) string {
	return fmt.Sprintf("The signer was set up in `%s`.\n\n"+
		"- Start it again with `arbiter-launcher --dir %s`; credentials are not asked again while both keystores exist.\n"+
		"- Keep the keystore password safe. It cannot be recovered from the keystore files.\n", target, target)
}

func (m Model) statusBar() string {
	line := components.StatusLine{Phase: m.phase.String(), Target: m.target}

	switch m.phase {
	case PhaseSelectDir:
		line.Hints = []components.KeyHint{{Key: "Enter", Desc: "Select"}, {Key: "s", Desc: "Use current"}, {Key: "Ctrl+C", Desc: "Quit"}}
	case PhaseRunning:
		line.Hints = []components.KeyHint{{Key: "Enter", Desc: "Send"}, {Key: "PgUp/PgDn", Desc: "Scroll"}, {Key: "Ctrl+C", Desc: "Stop"}}
		line.Busy = "Running" + theme.SymbolEllipsis
	case PhaseDone:
		line.Hints = []components.KeyHint{{Key: "Enter", Desc: "Exit"}}
	default:
		line.Hints = []components.KeyHint{{Key: "Ctrl+C", Desc: "Quit"}}
	}
	if m.quitting {
		line.Busy = "Stopping" + theme.SymbolEllipsis
	}
	return line.Render(m.width)
}

const gitMissingNotice = "Git was not found. An existing setup can still be launched, but cloning the repository will fail.\n"

func missingTools(r domain.InstallationReport) string {
	var missing []string
	if !r.Go.Installed {
		missing = append(missing, fmt.Sprintf("Go (%s)", r.Go.Error))
	}
	if !r.Git.Installed {
		missing = append(missing, fmt.Sprintf("Git (%s)", r.Git.Error))
	}
	return "Missing tools: " + strings.Join(missing, ", ")
}
