// Package uxerror translates setup failures into user-friendly messages with
// recovery hints for the TUI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"arbiter-launcher/internal/adapter/tui/theme"
	"arbiter-launcher/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Go Not Found"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text
}

// Render formats the FriendlyError for display.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

// Markdown formats the message and hints as a markdown document. The title
// is left out so callers can style it themselves.
func (fe FriendlyError) Markdown() string {
	var sb strings.Builder
	if fe.Message != "" {
		sb.WriteString(fe.Message)
		sb.WriteString("\n")
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n**Suggestions**\n\n")
		for _, h := range fe.Hints {
			sb.WriteString("- " + h + "\n")
		}
	}
	if fe.Raw != "" && fe.Raw != fe.Message {
		sb.WriteString("\n```\n" + fe.Raw + "\n```\n")
	}
	return sb.String()
}

// byCode holds the friendly text for each failure code a setup can report.
var byCode = map[domain.ErrorCode]FriendlyError{
	domain.CodeBinaryNotFound: {
		Title:   "Toolchain Not Found",
		Message: "Go or Git could not be located on this machine.",
		Hints:   []string{"Install Go from https://go.dev/dl/", "Install Git and make sure it is on PATH", "Run 'arbiter-launcher doctor' to re-check"},
	},
	domain.CodeTimeout: {
		Title:   "Toolchain Check Timed Out",
		Message: "A version probe did not answer in time.",
		Hints:   []string{"Increase process.version_timeout in the launcher config"},
	},
	domain.CodeCloneFailed: {
		Title:   "Clone Failed",
		Message: "git could not clone the Arbiter Signer repository.",
		Hints:   []string{"Check your internet connection", "Verify setup.repo_url in the launcher config", "Remove a partially cloned checkout and retry"},
	},
	domain.CodeTidyFailed: {
		Title:   "Dependency Download Failed",
		Message: "go mod tidy did not finish successfully.",
		Hints:   []string{"Check your internet connection and GOPROXY", "Make sure your Go version matches the signer's go.mod"},
	},
	domain.CodeConfigPatchFailed: {
		Title:   "Config Update Failed",
		Message: "The signer config file could not be updated with the arbiter address.",
		Hints:   []string{"Check that the checkout contains the signer config file", "Make sure the file is writable"},
	},
	domain.CodeKeystoreFailed: {
		Title:   "Keystore Generation Failed",
		Message: "The keystore generator exited with an error.",
		Hints:   []string{"Double-check the private keys you entered", "Remove the keys directory and run setup again"},
	},
	domain.CodeLaunchFailed: {
		Title:   "Signer Exited",
		Message: "The Arbiter Signer stopped with an error.",
		Hints:   []string{"Read the error output above", "Check the keystore password"},
	},
	domain.CodeSpawnFailed: {
		Title:   "Could Not Start Process",
		Message: "A required command could not be started.",
		Hints:   []string{"Check that the setup directory is accessible"},
	},
	domain.CodeSetupInProgress: {
		Title:   "Setup Already Running",
		Message: "Wait for the current setup to finish.",
	},
	domain.CodePathOutsideTree: {
		Title:   "Unsafe Checkout Layout",
		Message: "A signer path resolves outside the checkout, so no keys were written.",
		Hints:   []string{"Look for symlinks under the signer's app directory", "Re-clone the repository into an empty directory"},
	},
	domain.CodeCancelled: {
		Title:   "Setup Cancelled",
		Message: "Nothing else will run in this session.",
	},
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// String patterns first: they refine a generic command failure.
	{
		match:   containsAny("could not resolve host", "unable to access", "connection refused", "no such host"),
		produce: constantError("Network Unreachable", "A download could not reach the remote host.", []string{"Check your internet connection", "Check proxy settings for git and go"}),
	},
	{
		match:   containsAny("permission denied", "operation not permitted"),
		produce: constantError("Permission Denied", "The launcher could not write to the setup directory.", []string{"Pick a directory you own", "Check the directory permissions"}),
	},
	{
		match:   containsAny("no space left"),
		produce: constantError("Disk Full", "There is not enough disk space to finish setup.", []string{"Free some disk space and retry"}),
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrConfigLoad) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Invalid Launcher Config",
				Message: "The launcher configuration could not be loaded.",
				Hints:   []string{"Check the YAML syntax", "Set ARBITER_LAUNCHER_CONFIG to a valid file"},
				Raw:     err.Error(),
			}
		},
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}
	if fe, ok := byCode[domain.ErrorCodeOf(err)]; ok {
		fe.Raw = err.Error()
		return fe
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Set ARBITER_LAUNCHER_LOGGER_LEVEL=debug and check the log file"},
		Raw:     err.Error(),
	}
}

// FromResult describes a failed setup result. The result's message is kept
// as Raw; the code picks the title and hints.
func FromResult(res domain.SetupResult) FriendlyError {
	if fe, ok := byCode[res.Code]; ok {
		fe.Raw = res.Error
		return fe
	}
	return FriendlyError{
		Title:   "Setup Failed",
		Message: res.Error,
		Hints:   []string{"Read the output above for details"},
		Raw:     res.Error,
	}
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
