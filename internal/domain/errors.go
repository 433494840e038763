package domain

import (
	"errors"
	"fmt"
)

// Category sentinels — use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrCancelled    = fmt.Errorf("operation cancelled")
)

// Sentinel errors for the setup workflow.
var (
	ErrBinaryNotFound    = fmt.Errorf("binary not found")
	ErrCommandFailed     = fmt.Errorf("command execution failed")
	ErrSpawnFailed       = fmt.Errorf("failed to start process")
	ErrConfigPatchFailed = fmt.Errorf("config update failed")
	ErrValidationFailed  = fmt.Errorf("validation failed")
	ErrIOWriteFailed     = fmt.Errorf("write to process input failed")
	ErrNoActiveProcess   = fmt.Errorf("no active process")
	ErrSetupInProgress   = fmt.Errorf("setup already in progress")
	ErrWizardComplete    = fmt.Errorf("setup wizard already complete")
	ErrConfigLoad        = fmt.Errorf("failed to load configuration")
	ErrPathOutsideTree   = fmt.Errorf("path escapes the checkout")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Runner.Run")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "process", "workflow"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// CommandError reports a child process that exited with a nonzero status.
type CommandError struct {
	Command    string
	ExitCode   int
	StderrTail string
}

func (e *CommandError) Error() string {
	if e.StderrTail != "" {
		return fmt.Sprintf("%s exited with code %d (stderr: %s)", e.Command, e.ExitCode, e.StderrTail)
	}
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return ErrCommandFailed }

// ExitCodeOf returns the exit code carried by err, or -1 if there is none.
func ExitCodeOf(err error) int {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}
	return -1
}

// ErrorCode is a machine-parseable error category for logs and results.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeCancelled         ErrorCode = "CANCELLED"
	CodeBinaryNotFound    ErrorCode = "BINARY_NOT_FOUND"
	CodeCommandFailed     ErrorCode = "COMMAND_FAILED"
	CodeSpawnFailed       ErrorCode = "SPAWN_FAILED"
	CodeConfigPatchFailed ErrorCode = "CONFIG_PATCH_FAILED"
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeIOWriteFailed     ErrorCode = "IO_WRITE_FAILED"
	CodeNoActiveProcess   ErrorCode = "NO_ACTIVE_PROCESS"
	CodeSetupInProgress   ErrorCode = "SETUP_IN_PROGRESS"
	CodeWizardComplete    ErrorCode = "WIZARD_COMPLETE"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"
	CodePathOutsideTree   ErrorCode = "PATH_OUTSIDE_TREE"

	// Subsystem-specific codes resolved through subSystemCodeMap.
	CodeCloneFailed    ErrorCode = "CLONE_FAILED"
	CodeTidyFailed     ErrorCode = "TIDY_FAILED"
	CodeKeystoreFailed ErrorCode = "KEYSTORE_FAILED"
	CodeLaunchFailed   ErrorCode = "LAUNCH_FAILED"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:          CodeNotFound,
	ErrTimeout:           CodeTimeout,
	ErrInvalidInput:      CodeInvalidInput,
	ErrCancelled:         CodeCancelled,
	ErrBinaryNotFound:    CodeBinaryNotFound,
	ErrCommandFailed:     CodeCommandFailed,
	ErrSpawnFailed:       CodeSpawnFailed,
	ErrConfigPatchFailed: CodeConfigPatchFailed,
	ErrValidationFailed:  CodeValidationFailed,
	ErrIOWriteFailed:     CodeIOWriteFailed,
	ErrNoActiveProcess:   CodeNoActiveProcess,
	ErrSetupInProgress:   CodeSetupInProgress,
	ErrWizardComplete:    CodeWizardComplete,
	ErrConfigLoad:        CodeConfigLoad,
	ErrPathOutsideTree:   CodePathOutsideTree,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrCommandFailed: {
		"clone":    CodeCloneFailed,
		"tidy":     CodeTidyFailed,
		"keystore": CodeKeystoreFailed,
		"launch":   CodeLaunchFailed,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// For DomainErrors with a SubSystem, the subSystemCodeMap is consulted first.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	for sentinel, subsysMap := range subSystemCodeMap {
		if e.SubSystem == "" || !errors.Is(e.Err, sentinel) {
			continue
		}
		if code, ok := subsysMap[e.SubSystem]; ok {
			return code
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(e.Err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
