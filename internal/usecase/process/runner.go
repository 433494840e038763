package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"arbiter-launcher/internal/domain"
	"arbiter-launcher/internal/usecase/eventbus"
)

// waitDelay bounds how long Wait keeps draining output after the child has
// exited or been killed.
const waitDelay = 2 * time.Second

// RunnerConfig holds configuration for the Runner.
type RunnerConfig struct {
	StderrPrefix  string        // prepended to every stderr chunk (default: "Error output: ")
	StderrTailMax int           // bytes of stderr kept for failure reports (default: 4KB)
	Matcher       PromptMatcher // prompt heuristic for stdout chunks (default: TokenMatcher)
}

// Command is one external command run by the Runner.
type Command struct {
	Step string // pipeline step name, used for error codes and logs
	Path string
	Args []string
	Dir  string
	Env  []string // appended to the launcher's environment

	// Sensitive marks arguments that carry secrets. They are kept out of
	// logs, events and error messages.
	Sensitive bool
}

// String renders the command for display.
func (c Command) String() string {
	name := filepath.Base(c.Path)
	if c.Sensitive {
		shown := c.Args[:min(len(c.Args), 2)]
		return strings.TrimSpace(name + " " + strings.Join(shown, " ") + " [redacted]")
	}
	return strings.TrimSpace(name + " " + strings.Join(c.Args, " "))
}

// child is the runtime state of the tracked process.
type child struct {
	session domain.ProcessSession
	stdin   io.WriteCloser
	writeMu sync.Mutex
	cancel  context.CancelFunc
	killed  atomic.Bool
	done    chan struct{}
}

// Runner executes external commands one at a time and mediates I/O with
// the current child. Output is forwarded to the sink in the order the child
// wrote it; lifecycle events go to the bus.
type Runner struct {
	config RunnerConfig
	sink   domain.Sink
	bus    domain.EventBus
	logger *slog.Logger

	mu      sync.Mutex
	current *child
	entropy io.Reader
}

// NewRunner creates a Runner. bus may be nil.
func NewRunner(cfg RunnerConfig, sink domain.Sink, bus domain.EventBus, logger *slog.Logger) *Runner {
	if cfg.StderrPrefix == "" {
		cfg.StderrPrefix = "Error output: "
	}
	if cfg.StderrTailMax <= 0 {
		cfg.StderrTailMax = 4096
	}
	if cfg.Matcher == nil {
		cfg.Matcher = NewTokenMatcher(DefaultPromptTokens...)
	}
	t := time.Now()
	return &Runner{
		config:  cfg,
		sink:    sink,
		bus:     bus,
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0),
	}
}

// Run starts c, kills any previously tracked child first, and blocks until
// the child has exited and its output has been forwarded. A nonzero exit
// is returned as a *domain.CommandError wrapped in a DomainError tagged
// with c.Step. Cancelling ctx or calling Kill terminates the child.
func (r *Runner) Run(ctx context.Context, c Command) (*domain.ProcessResult, error) {
	r.Kill()

	if err := ctx.Err(); err != nil {
		return nil, domain.NewSubSystemError(c.Step, "Runner.Run", domain.ErrCancelled, err.Error())
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	tail := newRingBuffer(r.config.StderrTailMax)
	cmd.Stdout = &streamWriter{runner: r}
	cmd.Stderr = &streamWriter{runner: r, stderr: true, tail: tail}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, domain.NewSubSystemError(c.Step, "Runner.Run", domain.ErrSpawnFailed, err.Error())
	}

	if err := cmd.Start(); err != nil {
		cancel()
		r.logger.Warn("process spawn failed", "step", c.Step, "command", filepath.Base(c.Path), "error", err)
		return nil, domain.NewSubSystemError(c.Step, "Runner.Run", domain.ErrSpawnFailed,
			fmt.Sprintf("%s: %v", c.String(), err))
	}

	ch := &child{
		session: domain.ProcessSession{
			ID:        r.newID(),
			Step:      c.Step,
			Command:   c.Path,
			Args:      publicArgs(c),
			WorkDir:   c.Dir,
			Status:    domain.ProcessStatusRunning,
			StartedAt: time.Now(),
		},
		stdin:  stdin,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.current = ch
	r.mu.Unlock()

	eventbus.Emit(ctx, r.bus, domain.EventProcessStarted, ch.session.ID, ch.session)
	r.logger.Info("process started", "session_id", ch.session.ID, "step", c.Step, "command", filepath.Base(c.Path))

	waitErr := cmd.Wait()
	cancel()

	r.mu.Lock()
	if r.current == ch {
		r.current = nil
	}
	now := time.Now()
	ch.session.EndedAt = &now
	r.mu.Unlock()
	close(ch.done)

	result := &domain.ProcessResult{
		SessionID:  ch.session.ID,
		Step:       c.Step,
		ExitCode:   -1,
		StderrTail: tail.Tail(),
		StartedAt:  ch.session.StartedAt,
		EndedAt:    now,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	ch.session.ExitCode = &result.ExitCode

	if ch.killed.Load() || ctx.Err() != nil {
		ch.session.Status = domain.ProcessStatusKilled
		eventbus.Emit(context.Background(), r.bus, domain.EventProcessKilled, ch.session.ID, ch.session)
		r.logger.Info("process killed", "session_id", ch.session.ID, "step", c.Step)
		return result, domain.NewSubSystemError(c.Step, "Runner.Run", domain.ErrCancelled, c.String())
	}

	if waitErr != nil && result.ExitCode != 0 {
		ch.session.Status = domain.ProcessStatusFailed
		eventbus.Emit(context.Background(), r.bus, domain.EventProcessCompleted, ch.session.ID, ch.session)
		r.logger.Info("process finished", "session_id", ch.session.ID, "step", c.Step, "status", ch.session.Status, "exit_code", result.ExitCode)
		return result, domain.NewSubSystemError(c.Step, "Runner.Run", &domain.CommandError{
			Command:    c.String(),
			ExitCode:   result.ExitCode,
			StderrTail: result.StderrTail,
		}, "")
	}

	// An exit status of 0 with ErrWaitDelay means a grandchild kept the
	// pipes open after the command itself succeeded.
	if waitErr != nil {
		r.logger.Debug("process output not fully drained", "session_id", ch.session.ID, "error", waitErr)
	}
	ch.session.Status = domain.ProcessStatusCompleted
	eventbus.Emit(context.Background(), r.bus, domain.EventProcessCompleted, ch.session.ID, ch.session)
	r.logger.Info("process finished", "session_id", ch.session.ID, "step", c.Step, "status", ch.session.Status, "exit_code", result.ExitCode)
	return result, nil
}

// Write sends text followed by a newline to the current child's stdin.
// Writes racing the child's exit (broken or closed pipe) are dropped.
func (r *Runner) Write(text string) error {
	r.mu.Lock()
	ch := r.current
	r.mu.Unlock()

	if ch == nil {
		return domain.NewSubSystemError("process", "Runner.Write", domain.ErrNoActiveProcess, "")
	}

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if _, err := io.WriteString(ch.stdin, text+"\n"); err != nil {
		if isClosedPipe(err) {
			r.logger.Debug("dropped input for exiting process", "session_id", ch.session.ID)
			return nil
		}
		return domain.NewSubSystemError("process", "Runner.Write", domain.ErrIOWriteFailed, err.Error())
	}
	return nil
}

// Kill hard-kills the current child and waits for Run to observe it.
// It is a no-op when no child is tracked.
func (r *Runner) Kill() {
	r.mu.Lock()
	ch := r.current
	r.mu.Unlock()

	if ch == nil {
		return
	}
	ch.killed.Store(true)
	ch.cancel()
	<-ch.done
}

// Active reports whether a child is currently tracked.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Current returns a snapshot of the tracked child's session.
func (r *Runner) Current() (domain.ProcessSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return domain.ProcessSession{}, false
	}
	return r.current.session, true
}

// --- internal ---

// streamWriter forwards each chunk the child writes as UI events.
type streamWriter struct {
	runner *Runner
	stderr bool
	tail   *ringBuffer
}

func (w *streamWriter) Write(p []byte) (int, error) {
	text := string(p)
	sink := w.runner.sink

	if w.stderr {
		w.tail.Write(p)
		sink.Emit(domain.UIEvent{
			Kind:   domain.UIEventOutput,
			Source: domain.SourceProcess,
			Text:   w.runner.config.StderrPrefix + text,
		})
		return len(p), nil
	}

	sink.Emit(domain.UIEvent{Kind: domain.UIEventOutput, Source: domain.SourceProcess, Text: text})
	if w.runner.config.Matcher.Match(text) {
		sink.Emit(domain.UIEvent{Kind: domain.UIEventPrompt, Source: domain.SourceProcess, Text: text})
	}
	return len(p), nil
}

func isClosedPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

func publicArgs(c Command) []string {
	if c.Sensitive {
		return nil
	}
	return c.Args
}

func (r *Runner) newID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Now(), r.entropy).String()
}
