package launcher

// Phase is a screen of the launcher.
type Phase int

const (
	PhaseChecking Phase = iota
	PhaseSelectDir
	PhaseRunning
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseChecking:
		return "Checking tools"
	case PhaseSelectDir:
		return "Choose directory"
	case PhaseRunning:
		return "Setup"
	case PhaseDone:
		return "Finished"
	default:
		return "Unknown"
	}
}
