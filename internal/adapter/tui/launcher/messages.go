// Package launcher implements the Bubble Tea front end for the Arbiter
// Signer setup: installation check, directory selection, the live output
// pane with credential and stdin input, and the final result.
package launcher

import "arbiter-launcher/internal/domain"

// uiEventMsg carries one event of the session's ordered output stream.
type uiEventMsg struct {
	Event domain.UIEvent
}

// installCheckedMsg carries the result of the go/git probe.
type installCheckedMsg struct {
	Report domain.InstallationReport
}

// setupDoneMsg carries the final outcome of StartSetup.
type setupDoneMsg struct {
	Result domain.SetupResult
}

// inputSentMsg reports how the session handled a submitted line.
type inputSentMsg struct {
	Err error
}

// sessionClosedMsg signals that the child has been killed and the program
// may exit.
type sessionClosedMsg struct{}
