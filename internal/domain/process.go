package domain

import "time"

// ProcessStatus is where a child is in its life.
type ProcessStatus string

const (
	ProcessStatusRunning   ProcessStatus = "running"
	ProcessStatusCompleted ProcessStatus = "completed"
	ProcessStatusFailed    ProcessStatus = "failed"
	ProcessStatusKilled    ProcessStatus = "killed"
)

// ProcessSession is the runner's record of the one live child.
// ExitCode and EndedAt stay nil until the child has been reaped.
type ProcessSession struct {
	ID        string        `json:"id"`
	Step      string        `json:"step"`
	Command   string        `json:"command"`
	Args      []string      `json:"args"`
	WorkDir   string        `json:"workdir"`
	Status    ProcessStatus `json:"status"`
	ExitCode  *int          `json:"exit_code,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// ProcessResult is what a step gets back once the child exited and both
// pipes drained. StderrTail quotes the end of stderr for error messages.
type ProcessResult struct {
	SessionID  string
	Step       string
	ExitCode   int
	StderrTail string
	StartedAt  time.Time
	EndedAt    time.Time
}
