package domain

// WizardState is the position of the credential prompt sequence.
type WizardState int

const (
	AwaitingBtcKey WizardState = iota
	AwaitingEscKey
	AwaitingPassword
	AwaitingArbiterAddress
	WizardComplete
)

// String returns a short label for the state.
func (s WizardState) String() string {
	switch s {
	case AwaitingBtcKey:
		return "btc-key"
	case AwaitingEscKey:
		return "esc-key"
	case AwaitingPassword:
		return "password"
	case AwaitingArbiterAddress:
		return "arbiter-address"
	case WizardComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Secret reports whether input for this state should be hidden while typed.
func (s WizardState) Secret() bool {
	return s == AwaitingBtcKey || s == AwaitingEscKey || s == AwaitingPassword
}

// Credentials are the values collected by the wizard. They are never logged.
type Credentials struct {
	BtcPrivateKey  string
	EscPrivateKey  string
	Password       string
	ArbiterAddress string
}

// SetupPath identifies which branch of the setup workflow ran.
type SetupPath string

const (
	SetupPathNone SetupPath = ""
	SetupPathFast SetupPath = "fast"
	SetupPathFull SetupPath = "full"
)

// SetupResult is the single typed outcome of StartSetup. Failures are
// reported here, never raised to the caller.
type SetupResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	Path    SetupPath `json:"path,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
}

// ToolStatus is the installation state of one external binary.
type ToolStatus struct {
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// InstallationReport covers the binaries the workflow depends on.
type InstallationReport struct {
	Go  ToolStatus `json:"go"`
	Git ToolStatus `json:"git"`
}

// Ready reports whether both tools were found and answered a version probe.
func (r InstallationReport) Ready() bool {
	return r.Go.Installed && r.Git.Installed
}

// CanStart reports whether a setup may begin. Only the clone step needs
// git, so a finished checkout still launches without it.
func (r InstallationReport) CanStart() bool {
	return r.Go.Installed
}
