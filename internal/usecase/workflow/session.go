// Package workflow drives the Arbiter Signer setup: it owns the credential
// wizard, the process runner and the single live child of a session.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"arbiter-launcher/internal/adapter/signerconfig"
	"arbiter-launcher/internal/domain"
	"arbiter-launcher/internal/infra/config"
	"arbiter-launcher/internal/infra/tracer"
	"arbiter-launcher/internal/usecase/eventbus"
	"arbiter-launcher/internal/usecase/locator"
	"arbiter-launcher/internal/usecase/process"
	"arbiter-launcher/internal/usecase/sequencer"
)

// Executor runs external commands one at a time. *process.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, c process.Command) (*domain.ProcessResult, error)
	Write(text string) error
	Kill()
	Active() bool
	Current() (domain.ProcessSession, bool)
}

// Toolchain finds and probes external binaries. *locator.Locator satisfies it.
type Toolchain interface {
	Find(tool locator.Tool) (string, error)
	Version(ctx context.Context, path string, args ...string) (string, error)
	Probe(ctx context.Context, tool locator.Tool) domain.ToolStatus
}

// Session is one user's setup session. StartSetup may run at most once at a
// time; SubmitInput routes typed lines to the live child when there is one
// and to the credential wizard otherwise.
type Session struct {
	id     string
	cfg    config.SetupConfig
	exec   Executor
	tools  Toolchain
	sink   domain.Sink
	bus    domain.EventBus
	logger *slog.Logger
	patch  func(path, address string) error

	mu      sync.Mutex
	running bool
	closed  bool
	seq     *sequencer.Sequencer
	cancel  context.CancelFunc
}

// Option customizes a Session.
type Option func(*Session)

// WithPatcher replaces signerconfig.Patch.
func WithPatcher(fn func(path, address string) error) Option {
	return func(s *Session) { s.patch = fn }
}

// NewSession creates a Session. bus may be nil.
func NewSession(cfg config.SetupConfig, exec Executor, tools Toolchain, sink domain.Sink, bus domain.EventBus, logger *slog.Logger, opts ...Option) *Session {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	s := &Session{
		id:    ulid.MustNew(ulid.Timestamp(t), entropy).String(),
		cfg:   cfg,
		exec:  exec,
		tools: tools,
		sink:  sink,
		bus:   bus,
		patch: signerconfig.Patch,
	}
	s.logger = logger.With("session_id", s.id)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's ULID.
func (s *Session) ID() string { return s.id }

// StartSetup runs the setup workflow for target and blocks until it ends.
// Failures never escape as errors or panics: they are reported in the
// returned result and as an error banner on the output stream.
func (s *Session) StartSetup(ctx context.Context, target string) (result domain.SetupResult) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return s.reject(domain.NewSubSystemError("workflow", "Session.StartSetup", domain.ErrCancelled, "session closed"))
	case s.running:
		s.mu.Unlock()
		return s.reject(domain.NewSubSystemError("workflow", "Session.StartSetup", domain.ErrSetupInProgress, ""))
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.seq = nil
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	ctx, span := tracer.Start(ctx, "setup", attribute.String("session_id", s.id))

	var path domain.SetupPath
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("setup panicked", "panic", r)
			result = s.fail(ctx, span, path, fmt.Errorf("internal error: %v", r))
		}
	}()

	s.logger.Info("setup started", "target", target)
	eventbus.Emit(ctx, s.bus, domain.EventWorkflowStarted, s.id, map[string]string{"target": target})

	if err := s.run(ctx, target, &path); err != nil {
		return s.fail(ctx, span, path, err)
	}

	span.SetAttributes(attribute.String("path", string(path)))
	tracer.End(span, nil)
	s.logger.Info("setup finished", "path", string(path))
	eventbus.Emit(ctx, s.bus, domain.EventWorkflowCompleted, s.id, map[string]string{"path": string(path)})
	return domain.SetupResult{Success: true, Message: "Process completed successfully", Path: path}
}

// SubmitInput feeds one line of user input to the live child, or to the
// credential wizard when no child is running.
func (s *Session) SubmitInput(text string) error {
	echo := domain.UIEvent{Kind: domain.UIEventOutput, Source: domain.SourceUser, Text: text + "\n"}
	// The echo goes out before the write so the child's reply follows it.
	echoed := s.exec.Active()
	if echoed {
		s.sink.Emit(echo)
	}
	err := s.exec.Write(text)
	if err == nil {
		if !echoed {
			s.sink.Emit(echo)
		}
		return nil
	}
	if !errors.Is(err, domain.ErrNoActiveProcess) {
		domain.Output(s.sink, fmt.Sprintf("Stdin error: %v\n", err))
		return err
	}

	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()

	if seq == nil || seq.State() == domain.WizardComplete {
		domain.Output(s.sink, "No process is waiting for input.\n")
		return err
	}
	_, err = seq.Submit(text)
	return err
}

// IsSetupComplete reports whether the checkout and both keystore files
// exist under target. It only reads the file system.
func (s *Session) IsSetupComplete(target string) bool {
	btc, esc := s.cfg.KeyPaths(target)
	return pathExists(s.cfg.CheckoutPath(target)) && pathExists(btc) && pathExists(esc)
}

// CheckInstallation probes go and git independently and reports the
// outcome both as output lines and as one installation-check event.
func (s *Session) CheckInstallation(ctx context.Context) domain.InstallationReport {
	ctx, span := tracer.Start(ctx, "check-installation")
	defer tracer.End(span, nil)

	var report domain.InstallationReport
	report.Go = s.probe(ctx, locator.ToolGo, "Go")
	report.Git = s.probe(ctx, locator.ToolGit, "Git")

	span.SetAttributes(
		attribute.Bool("go_installed", report.Go.Installed),
		attribute.Bool("git_installed", report.Git.Installed),
	)
	s.sink.Emit(domain.UIEvent{
		Kind:         domain.UIEventInstallCheck,
		Source:       domain.SourceSystem,
		Installation: &report,
	})
	eventbus.Emit(ctx, s.bus, domain.EventInstallChecked, s.id, report)
	return report
}

// Close cancels a running setup and kills the live child. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if child, ok := s.exec.Current(); ok {
		s.logger.Info("stopping child", "step", child.Step, "process_id", child.ID)
	}
	s.exec.Kill()
	s.logger.Info("session closed")
}

// WizardState returns the state of the credential wizard, and false when
// no wizard is collecting input.
func (s *Session) WizardState() (domain.WizardState, bool) {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()
	if seq == nil {
		return domain.WizardComplete, false
	}
	st := seq.State()
	return st, st != domain.WizardComplete
}

func (s *Session) probe(ctx context.Context, tool locator.Tool, name string) domain.ToolStatus {
	domain.Output(s.sink, fmt.Sprintf("Checking for %s installation...\n", name))
	status := s.tools.Probe(ctx, tool)
	if status.Installed {
		domain.Output(s.sink, fmt.Sprintf("Found %s at: %s\n%s version: %s\n", name, status.Path, name, status.Version))
	} else {
		domain.Output(s.sink, fmt.Sprintf("%s not found: %s\n", name, status.Error))
	}
	return status
}

// reject reports a StartSetup call that never began.
func (s *Session) reject(err error) domain.SetupResult {
	msg := describe(err)
	domain.Output(s.sink, banner(msg))
	s.logger.Warn("setup rejected", "error", err)
	return domain.SetupResult{Success: false, Error: msg, Code: domain.ErrorCodeOf(err)}
}

func (s *Session) fail(ctx context.Context, span trace.Span, path domain.SetupPath, err error) domain.SetupResult {
	msg := describe(err)
	code := domain.ErrorCodeOf(err)

	tracer.End(span, err)
	domain.Output(s.sink, banner(msg))
	s.logger.Warn("setup failed", "path", string(path), "code", string(code), "exit_code", domain.ExitCodeOf(err), "error", err)
	eventbus.Emit(context.WithoutCancel(ctx), s.bus, domain.EventWorkflowFailed, s.id, map[string]string{
		"path":  string(path),
		"code":  string(code),
		"error": msg,
	})
	return domain.SetupResult{Success: false, Error: msg, Path: path, Code: code}
}

func banner(msg string) string {
	return "\n\n================ ERROR ================\n" + msg + "\n=======================================\n\n"
}

var stepTitles = map[string]string{
	stepClone:    "Repository clone",
	stepTidy:     "go mod tidy",
	stepKeystore: "Keystore generation",
	stepLaunch:   "Main program",
}

// describe turns err into the message shown in the error banner.
func describe(err error) string {
	var ce *domain.CommandError
	if errors.As(err, &ce) {
		title := ce.Command
		var de *domain.DomainError
		if errors.As(err, &de) && stepTitles[de.SubSystem] != "" {
			title = stepTitles[de.SubSystem]
		}
		return fmt.Sprintf("%s failed with code %d. Check the error output above for details.", title, ce.ExitCode)
	}
	if errors.Is(err, domain.ErrCancelled) {
		return "Setup cancelled."
	}
	return err.Error()
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
