// Package locator finds the go and git binaries the setup workflow shells
// out to. Lookup is best effort: PATH first, then well-known install paths.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"arbiter-launcher/internal/domain"
)

// Tool names an external binary.
type Tool string

const (
	ToolGo  Tool = "go"
	ToolGit Tool = "git"
)

// Locator resolves tool paths. The zero value is not usable; call New.
type Locator struct {
	lookPath func(string) (string, error)
	exists   func(string) bool
	getenv   func(string) string
	goos     string
	timeout  time.Duration
	logger   *slog.Logger
}

// Option customizes a Locator.
type Option func(*Locator)

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(l *Locator) { l.lookPath = fn }
}

// WithExists replaces the file existence check used for known paths.
func WithExists(fn func(string) bool) Option {
	return func(l *Locator) { l.exists = fn }
}

// WithGetenv replaces os.Getenv when expanding known paths.
func WithGetenv(fn func(string) string) Option {
	return func(l *Locator) { l.getenv = fn }
}

// WithGOOS overrides the platform used to pick known paths.
func WithGOOS(goos string) Option {
	return func(l *Locator) { l.goos = goos }
}

// New creates a Locator. timeout bounds each version probe.
func New(timeout time.Duration, logger *slog.Logger, opts ...Option) *Locator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := &Locator{
		lookPath: exec.LookPath,
		exists:   fileExists,
		getenv:   os.Getenv,
		goos:     runtime.GOOS,
		timeout:  timeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Find returns the path of tool. When nothing is found, go falls back to
// the bare name outside macOS and lets the OS resolve it at spawn time;
// git fails with domain.ErrBinaryNotFound.
func (l *Locator) Find(tool Tool) (string, error) {
	if p, err := l.lookPath(l.binaryName(tool)); err == nil && p != "" {
		return p, nil
	}

	for _, p := range l.knownPaths(tool) {
		if l.exists(p) {
			l.logger.Debug("binary found at known path", "tool", string(tool), "path", p)
			return p, nil
		}
	}

	if tool == ToolGo && l.goos != "darwin" {
		return string(ToolGo), nil
	}
	return "", domain.NewSubSystemError("locator", "Locator.Find", domain.ErrBinaryNotFound,
		fmt.Sprintf("%s binary not found; please ensure %s is installed", tool, displayName(tool)))
}

// Version runs path with args (e.g. "version") and returns its trimmed
// combined output.
func (l *Locator) Version(ctx context.Context, path string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			return "", domain.NewSubSystemError("locator", "Locator.Version", domain.ErrBinaryNotFound, path)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return "", domain.NewSubSystemError("locator", "Locator.Version", domain.ErrTimeout,
				fmt.Sprintf("%s did not answer within %s", path, l.timeout))
		default:
			detail := err.Error()
			if text != "" {
				detail += ": " + text
			}
			return "", domain.NewSubSystemError("locator", "Locator.Version", domain.ErrCommandFailed, detail)
		}
	}
	return text, nil
}

// Probe locates tool and asks it for its version.
func (l *Locator) Probe(ctx context.Context, tool Tool) domain.ToolStatus {
	path, err := l.Find(tool)
	if err != nil {
		return domain.ToolStatus{Error: err.Error()}
	}
	version, err := l.Version(ctx, path, "version")
	if err != nil {
		return domain.ToolStatus{Path: path, Error: err.Error()}
	}
	return domain.ToolStatus{Installed: true, Path: path, Version: version}
}

func (l *Locator) binaryName(tool Tool) string {
	if l.goos == "windows" {
		return string(tool) + ".exe"
	}
	return string(tool)
}

func (l *Locator) knownPaths(tool Tool) []string {
	home := l.getenv("HOME")
	switch {
	case tool == ToolGo && l.goos == "windows":
		return nil
	case tool == ToolGo:
		paths := []string{
			"/usr/local/go/bin/go",
			"/usr/local/bin/go",
			"/opt/homebrew/bin/go",
			"/opt/local/bin/go",
		}
		if home != "" {
			paths = append(paths, home+"/go/bin/go", home+"/.go/bin/go")
		}
		return paths
	case tool == ToolGit && l.goos == "windows":
		paths := []string{
			`C:\Program Files\Git\cmd\git.exe`,
			`C:\Program Files (x86)\Git\cmd\git.exe`,
		}
		if v := l.getenv("LOCALAPPDATA"); v != "" {
			paths = append(paths, v+`\Programs\Git\cmd\git.exe`)
		}
		if v := l.getenv("ProgramFiles"); v != "" {
			paths = append(paths, v+`\Git\cmd\git.exe`)
		}
		return paths
	case tool == ToolGit:
		return []string{
			"/usr/bin/git",
			"/usr/local/bin/git",
			"/opt/local/bin/git",
			"/opt/homebrew/bin/git",
		}
	}
	return nil
}

func displayName(tool Tool) string {
	switch tool {
	case ToolGo:
		return "Go"
	case ToolGit:
		return "Git"
	}
	return string(tool)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
