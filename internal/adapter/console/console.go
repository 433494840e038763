// Package console is the line-oriented front end used by `arbiter-launcher run`.
// It prints the session's output stream to a writer and feeds lines read from
// the terminal back into the session. Secret wizard answers are read without
// echo when the input is a terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"arbiter-launcher/internal/domain"
)

// Session is the part of workflow.Session the console drives.
type Session interface {
	StartSetup(ctx context.Context, target string) domain.SetupResult
	SubmitInput(text string) error
	WizardState() (domain.WizardState, bool)
}

// Console renders UI events as plain text and relays typed lines.
type Console struct {
	in         *bufio.Reader
	out        io.Writer
	logger     *slog.Logger
	readSecret func() (string, error)

	mu        sync.Mutex
	ready     chan struct{}
	readyOnce sync.Once
}

// Option customizes a Console.
type Option func(*Console)

// WithSecretReader replaces the hidden terminal read used for secret answers.
func WithSecretReader(fn func() (string, error)) Option {
	return func(c *Console) { c.readSecret = fn }
}

// New creates a Console reading from in and writing to out. When in is a
// terminal, secret answers are read with echo disabled.
func New(in io.Reader, out io.Writer, logger *slog.Logger, opts ...Option) *Console {
	c := &Console{
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger,
		ready:  make(chan struct{}),
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		c.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(c.out)
			return string(b), err
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Emit writes an event to the output. It implements domain.Sink.
func (c *Console) Emit(ev domain.UIEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case domain.UIEventOutput:
		// The terminal already echoed what the user typed.
		if ev.Source == domain.SourceUser {
			return
		}
		io.WriteString(c.out, ev.Text)
		if ev.Source == domain.SourceProcess {
			c.markReady()
		}
	case domain.UIEventPrompt:
		if ev.Source == domain.SourceWizard {
			io.WriteString(c.out, ev.Text)
		}
		c.markReady()
	}
}

func (c *Console) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// AskString prints prompt and reads one line, returning defaultVal for an
// empty answer. Call it before Run; both read the same input.
func (c *Console) AskString(prompt, defaultVal string) (string, error) {
	c.mu.Lock()
	if defaultVal != "" {
		fmt.Fprintf(c.out, "%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(c.out, "%s: ", prompt)
	}
	c.mu.Unlock()

	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultVal, nil
	}
	return line, nil
}

// Run starts setup for target and relays input until it finishes.
func (c *Console) Run(ctx context.Context, s Session, target string) domain.SetupResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan domain.SetupResult, 1)
	go func() { done <- s.StartSetup(ctx, target) }()
	go c.readLoop(ctx, cancel, s)

	return <-done
}

// readLoop waits until something can consume input, then submits one line
// at a time. EOF while the wizard is still collecting answers cancels the
// setup since nothing else can complete it.
func (c *Console) readLoop(ctx context.Context, cancel context.CancelFunc, s Session) {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return
	}

	for {
		line, err := c.readLine(s)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Warn("console read failed", "error", err)
			}
			if _, collecting := s.WizardState(); collecting {
				cancel()
			}
			return
		}
		if err := s.SubmitInput(line); err != nil {
			c.logger.Debug("input rejected", "code", string(domain.ErrorCodeOf(err)))
		}
	}
}

func (c *Console) readLine(s Session) (string, error) {
	if state, collecting := s.WizardState(); collecting && state.Secret() && c.readSecret != nil {
		return c.readSecret()
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
