package launcher

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Session calls can emit UI events, and the sink delivers those through
// Program.Send, which blocks until Update receives them. Every session call
// therefore runs in a command, never inside Update.

func checkInstallationCmd(ctx context.Context, s Session) tea.Cmd {
	return func() tea.Msg {
		return installCheckedMsg{Report: s.CheckInstallation(ctx)}
	}
}

func startSetupCmd(ctx context.Context, s Session, target string) tea.Cmd {
	return func() tea.Msg {
		return setupDoneMsg{Result: s.StartSetup(ctx, target)}
	}
}

func submitInputCmd(s Session, text string) tea.Cmd {
	return func() tea.Msg {
		return inputSentMsg{Err: s.SubmitInput(text)}
	}
}

func closeSessionCmd(s Session) tea.Cmd {
	return func() tea.Msg {
		s.Close()
		return sessionClosedMsg{}
	}
}
