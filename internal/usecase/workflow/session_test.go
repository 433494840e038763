package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter-launcher/internal/domain"
	"arbiter-launcher/internal/infra/config"
	"arbiter-launcher/internal/usecase/locator"
	"arbiter-launcher/internal/usecase/process"
)

const (
	validBtc  = "1f2e3d4c5b6a79881f2e3d4c5b6a79881f2e3d4c5b6a79881f2e3d4c5b6a7988"
	validEsc  = "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
	validAddr = "0x52C4b3D2e0f1A7c9B8d6E5f4A3b2C1d0E9f8A7b6"
	password  = "correct horse"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExecutor records commands instead of spawning them.
type fakeExecutor struct {
	mu       sync.Mutex
	commands []process.Command
	writes   []string
	active   bool
	writeErr error
	onWrite  func(text string)
	kills    int
	onRun    func(ctx context.Context, c process.Command) error
}

func (f *fakeExecutor) Run(ctx context.Context, c process.Command) (*domain.ProcessResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, c)
	onRun := f.onRun
	f.mu.Unlock()

	if onRun != nil {
		if err := onRun(ctx, c); err != nil {
			return &domain.ProcessResult{Step: c.Step, ExitCode: domain.ExitCodeOf(err)}, err
		}
	}
	return &domain.ProcessResult{Step: c.Step}, nil
}

func (f *fakeExecutor) Write(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return domain.NewSubSystemError("process", "Runner.Write", domain.ErrNoActiveProcess, "")
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, text)
	if f.onWrite != nil {
		f.onWrite(text)
	}
	return nil
}

func (f *fakeExecutor) Kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills++
	f.active = false
}

func (f *fakeExecutor) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeExecutor) Current() (domain.ProcessSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active || len(f.commands) == 0 {
		return domain.ProcessSession{}, false
	}
	last := f.commands[len(f.commands)-1]
	return domain.ProcessSession{Step: last.Step, Status: domain.ProcessStatusRunning}, true
}

func (f *fakeExecutor) Steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	for i, c := range f.commands {
		out[i] = c.Step
	}
	return out
}

func (f *fakeExecutor) Commands() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]process.Command(nil), f.commands...)
}

// fakeTools resolves binaries without touching the host.
type fakeTools struct {
	goErr      error
	gitErr     error
	versionErr error
}

func (f *fakeTools) Find(tool locator.Tool) (string, error) {
	switch tool {
	case locator.ToolGo:
		if f.goErr != nil {
			return "", f.goErr
		}
		return "/usr/local/go/bin/go", nil
	default:
		if f.gitErr != nil {
			return "", f.gitErr
		}
		return "/usr/bin/git", nil
	}
}

func (f *fakeTools) Version(_ context.Context, path string, _ ...string) (string, error) {
	if f.versionErr != nil {
		return "", f.versionErr
	}
	return "go version go1.26.0 linux/amd64", nil
}

func (f *fakeTools) Probe(ctx context.Context, tool locator.Tool) domain.ToolStatus {
	p, err := f.Find(tool)
	if err != nil {
		return domain.ToolStatus{Error: err.Error()}
	}
	v, _ := f.Version(ctx, p)
	return domain.ToolStatus{Installed: true, Path: p, Version: v}
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.UIEvent
}

func (s *recordingSink) Emit(ev domain.UIEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) Events() []domain.UIEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UIEvent(nil), s.events...)
}

func (s *recordingSink) Output() string {
	var sb strings.Builder
	for _, ev := range s.Events() {
		if ev.Kind == domain.UIEventOutput {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

func (s *recordingSink) waitForPrompt(t *testing.T, state domain.WizardState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range s.Events() {
			if ev.Kind == domain.UIEventPrompt && ev.Source == domain.SourceWizard && ev.State == state {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s prompt", state)
}

type fixture struct {
	session *Session
	exec    *fakeExecutor
	tools   *fakeTools
	sink    *recordingSink
	cfg     config.SetupConfig
	target  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Defaults().Setup
	f := &fixture{
		exec:   &fakeExecutor{},
		tools:  &fakeTools{},
		sink:   &recordingSink{},
		cfg:    cfg,
		target: filepath.Join(t.TempDir(), "signer-home"),
	}
	f.session = NewSession(cfg, f.exec, f.tools, f.sink, nil, newTestLogger())
	t.Cleanup(f.session.Close)
	return f
}

// seedCheckout creates the checkout with a signer config file, optionally
// with both keystore files present.
func (f *fixture) seedCheckout(t *testing.T, withKeys bool, configBody string) {
	t.Helper()
	require.NoError(t, f.writeCheckout(withKeys, configBody))
}

func (f *fixture) writeCheckout(withKeys bool, configBody string) error {
	cfgPath := f.cfg.ConfigPath(f.target)
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(cfgPath, []byte(configBody), 0o644); err != nil {
		return err
	}
	if !withKeys {
		return nil
	}
	btc, esc := f.cfg.KeyPaths(f.target)
	if err := os.MkdirAll(filepath.Dir(btc), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(btc, []byte("{}"), 0o600); err != nil {
		return err
	}
	return os.WriteFile(esc, []byte("{}"), 0o600)
}

func (f *fixture) startAsync(ctx context.Context) <-chan domain.SetupResult {
	out := make(chan domain.SetupResult, 1)
	go func() { out <- f.session.StartSetup(ctx, f.target) }()
	return out
}

func (f *fixture) answerWizard(t *testing.T) {
	t.Helper()
	inputs := []struct {
		state domain.WizardState
		text  string
	}{
		{domain.AwaitingBtcKey, validBtc},
		{domain.AwaitingEscKey, validEsc},
		{domain.AwaitingPassword, password},
		{domain.AwaitingArbiterAddress, validAddr},
	}
	for _, in := range inputs {
		f.sink.waitForPrompt(t, in.state)
		require.NoError(t, f.session.SubmitInput(in.text))
	}
}

func awaitResult(t *testing.T, ch <-chan domain.SetupResult) domain.SetupResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for StartSetup")
		return domain.SetupResult{}
	}
}

const signerConfig = "arbiter:\n  escArbiterAddress: \"\"\n  listener: true\n"

func TestFastPathLaunchesOnce(t *testing.T) {
	f := newFixture(t)
	f.seedCheckout(t, true, signerConfig)

	res := f.session.StartSetup(context.Background(), f.target)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.SetupPathFast, res.Path)
	assert.Equal(t, []string{stepTidy, stepLaunch}, f.exec.Steps())

	launch := f.exec.Commands()[1]
	assert.Equal(t, []string{"run", "app/arbiter/main.go"}, launch.Args)
	assert.Equal(t, f.cfg.CheckoutPath(f.target), launch.Dir)
	assert.Contains(t, f.sink.Output(), "Setup already complete. Running main program...\n")

	data, err := os.ReadFile(f.cfg.ConfigPath(f.target))
	require.NoError(t, err)
	assert.Equal(t, signerConfig, string(data), "fast path must not patch the config")
}

func TestFullPathOrder(t *testing.T) {
	f := newFixture(t)
	cfgPath := f.cfg.ConfigPath(f.target)

	var patchedAtTidy, patchedAtKeystore []bool
	f.exec.onRun = func(_ context.Context, c process.Command) error {
		switch c.Step {
		case stepClone:
			return f.writeCheckout(false, signerConfig)
		case stepTidy, stepKeystore:
			data, err := os.ReadFile(cfgPath)
			if err != nil {
				return err
			}
			patched := strings.Contains(string(data), validAddr)
			if c.Step == stepTidy {
				patchedAtTidy = append(patchedAtTidy, patched)
			} else {
				patchedAtKeystore = append(patchedAtKeystore, patched)
			}
		}
		return nil
	}

	done := f.startAsync(context.Background())
	f.answerWizard(t)
	res := awaitResult(t, done)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.SetupPathFull, res.Path)
	assert.Equal(t, []string{stepClone, stepTidy, stepKeystore, stepKeystore, stepLaunch}, f.exec.Steps())
	assert.Equal(t, []bool{false}, patchedAtTidy)
	assert.Equal(t, []bool{true, true}, patchedAtKeystore)

	cmds := f.exec.Commands()
	assert.Equal(t, "/usr/bin/git", cmds[0].Path)
	assert.Equal(t, []string{"clone", f.cfg.RepoURL, "Arbiter_Signer"}, cmds[0].Args)
	assert.Equal(t, f.target, cmds[0].Dir)

	assert.Equal(t, []string{"run", "app/keystore-generator/main.go", "-c", "btc", "-s", validBtc, "-p", password, "-o", "app/arbiter/data/keys/btcKey"}, cmds[2].Args)
	assert.Equal(t, []string{"run", "app/keystore-generator/main.go", "-c", "eth", "-s", validEsc, "-p", password, "-o", "app/arbiter/data/keys/escKey"}, cmds[3].Args)
	assert.True(t, cmds[2].Sensitive)
	assert.True(t, cmds[3].Sensitive)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "arbiter:\n  escArbiterAddress: \""+validAddr+"\"\n  listener: true\n", string(data))

	info, err := os.Stat(filepath.Join(f.cfg.CheckoutPath(f.target), "app", "arbiter", "data", "keys"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	out := f.sink.Output()
	assert.Contains(t, out, "Setup required. Starting setup process...\n")
	assert.Less(t, strings.Index(out, "go mod tidy completed successfully"), strings.Index(out, "Successfully updated config file"))
	assert.Less(t, strings.Index(out, "Successfully updated config file"), strings.Index(out, "Starting keystore generation"))
}

func TestFullPathSkipsCloneForExistingCheckout(t *testing.T) {
	f := newFixture(t)
	f.seedCheckout(t, false, signerConfig)

	done := f.startAsync(context.Background())
	f.answerWizard(t)
	res := awaitResult(t, done)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{stepTidy, stepKeystore, stepKeystore, stepLaunch}, f.exec.Steps())
	assert.Contains(t, f.sink.Output(), "Directory already exists, skipping clone...\n")
}

func TestChildExitCodeOneIsReported(t *testing.T) {
	f := newFixture(t)
	f.seedCheckout(t, true, signerConfig)
	f.exec.onRun = func(_ context.Context, c process.Command) error {
		if c.Step == stepLaunch {
			return domain.NewSubSystemError(c.Step, "Runner.Run", &domain.CommandError{Command: "go run app/arbiter/main.go", ExitCode: 1}, "")
		}
		return nil
	}

	var res domain.SetupResult
	require.NotPanics(t, func() { res = f.session.StartSetup(context.Background(), f.target) })

	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeLaunchFailed, res.Code)
	assert.Equal(t, "Main program failed with code 1. Check the error output above for details.", res.Error)
	assert.Contains(t, f.sink.Output(), "\n\n================ ERROR ================\n"+res.Error+"\n=======================================\n\n")
}

func TestPatchFailureAbortsPipeline(t *testing.T) {
	f := newFixture(t)
	f.seedCheckout(t, false, "arbiter:\n  listener: true\n")

	done := f.startAsync(context.Background())
	f.answerWizard(t)
	res := awaitResult(t, done)

	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeConfigPatchFailed, res.Code)
	assert.Equal(t, []string{stepTidy}, f.exec.Steps(), "no keystore or launch after a failed patch")
}

func TestSymlinkedKeysDirRefused(t *testing.T) {
	f := newFixture(t)
	f.seedCheckout(t, false, signerConfig)

	outside := t.TempDir()
	dataDir := filepath.Dir(filepath.Join(f.cfg.CheckoutPath(f.target), filepath.FromSlash(f.cfg.KeysDir)))
	require.NoError(t, os.MkdirAll(filepath.Dir(dataDir), 0o755))
	if err := os.Symlink(outside, dataDir); err != nil {
		t.Skip("cannot create symlinks")
	}

	done := f.startAsync(context.Background())
	f.answerWizard(t)
	res := awaitResult(t, done)

	assert.False(t, res.Success)
	assert.Equal(t, domain.CodePathOutsideTree, res.Code)
	assert.Equal(t, []string{stepTidy}, f.exec.Steps(), "keystore generation must not run")
	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGoNotFound(t *testing.T) {
	f := newFixture(t)
	f.tools.goErr = domain.NewSubSystemError("locator", "Locator.Find", domain.ErrBinaryNotFound, "go")

	res := f.session.StartSetup(context.Background(), f.target)

	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeBinaryNotFound, res.Code)
	assert.Empty(t, f.exec.Steps())
}

func TestGoVersionFailure(t *testing.T) {
	f := newFixture(t)
	f.tools.versionErr = domain.NewSubSystemError("locator", "Locator.Version", domain.ErrCommandFailed, "exit status 1")

	res := f.session.StartSetup(context.Background(), f.target)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "failed to check Go installation")
	assert.Empty(t, f.exec.Steps())
}

func TestGitNotFoundDuringClone(t *testing.T) {
	f := newFixture(t)
	f.tools.gitErr = domain.NewSubSystemError("locator", "Locator.Find", domain.ErrBinaryNotFound, "git")

	done := f.startAsync(context.Background())
	f.answerWizard(t)
	res := awaitResult(t, done)

	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeBinaryNotFound, res.Code)
	assert.Empty(t, f.exec.Steps())
}

func TestSecondStartSetupRejected(t *testing.T) {
	f := newFixture(t)

	done := f.startAsync(context.Background())
	f.sink.waitForPrompt(t, domain.AwaitingBtcKey)

	res := f.session.StartSetup(context.Background(), f.target)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeSetupInProgress, res.Code)

	f.session.Close()
	first := awaitResult(t, done)
	assert.False(t, first.Success)
	assert.Equal(t, domain.CodeCancelled, first.Code)
}

func TestCancelDuringWizard(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := f.startAsync(ctx)
	f.sink.waitForPrompt(t, domain.AwaitingBtcKey)
	cancel()

	res := awaitResult(t, done)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeCancelled, res.Code)
	assert.Equal(t, "Setup cancelled.", res.Error)
	assert.Empty(t, f.exec.Steps())
}

func TestCancelBetweenSteps(t *testing.T) {
	f := newFixture(t)
	f.seedCheckout(t, true, signerConfig)
	ctx, cancel := context.WithCancel(context.Background())
	f.exec.onRun = func(_ context.Context, c process.Command) error {
		if c.Step == stepTidy {
			cancel()
		}
		return nil
	}

	res := f.session.StartSetup(ctx, f.target)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeCancelled, res.Code)
	assert.Equal(t, []string{stepTidy}, f.exec.Steps())
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.session.Close()
	f.session.Close()
	assert.Equal(t, 1, f.exec.kills)

	res := f.session.StartSetup(context.Background(), f.target)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeCancelled, res.Code)
}

func TestSubmitInputRelaysToChild(t *testing.T) {
	f := newFixture(t)
	f.exec.active = true

	require.NoError(t, f.session.SubmitInput("yes"))

	assert.Equal(t, []string{"yes"}, f.exec.writes)
	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.SourceUser, events[0].Source)
	assert.Equal(t, "yes\n", events[0].Text)
}

func TestSubmitInputWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.exec.active = true
	f.exec.writeErr = domain.NewSubSystemError("process", "Runner.Write", domain.ErrIOWriteFailed, "bad fd")

	err := f.session.SubmitInput("yes")
	assert.True(t, errors.Is(err, domain.ErrIOWriteFailed))
	assert.True(t, strings.HasPrefix(f.sink.Output(), "yes\nStdin error:"), f.sink.Output())
}

func TestSubmitInputEchoPrecedesChildReply(t *testing.T) {
	f := newFixture(t)
	f.exec.active = true
	f.exec.onWrite = func(text string) {
		f.sink.Emit(domain.UIEvent{Kind: domain.UIEventOutput, Source: domain.SourceProcess, Text: "got:" + text + "\n"})
	}

	require.NoError(t, f.session.SubmitInput("pw"))
	assert.Equal(t, "pw\ngot:pw\n", f.sink.Output())
}

func TestSubmitInputWithoutSetup(t *testing.T) {
	f := newFixture(t)

	err := f.session.SubmitInput("hello")
	assert.True(t, errors.Is(err, domain.ErrNoActiveProcess))
	assert.Equal(t, "No process is waiting for input.\n", f.sink.Output())
}

func TestSubmitInputInvalidReprompts(t *testing.T) {
	f := newFixture(t)
	done := f.startAsync(context.Background())
	f.sink.waitForPrompt(t, domain.AwaitingBtcKey)

	err := f.session.SubmitInput("not-hex")
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
	state, ok := f.session.WizardState()
	assert.True(t, ok)
	assert.Equal(t, domain.AwaitingBtcKey, state)

	f.session.Close()
	awaitResult(t, done)
}

func TestIsSetupCompleteIdempotent(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.session.IsSetupComplete(f.target))
	assert.False(t, f.session.IsSetupComplete(f.target))

	f.seedCheckout(t, true, signerConfig)
	assert.True(t, f.session.IsSetupComplete(f.target))
	assert.True(t, f.session.IsSetupComplete(f.target))

	_, esc := f.cfg.KeyPaths(f.target)
	require.NoError(t, os.Remove(esc))
	assert.False(t, f.session.IsSetupComplete(f.target))
}

func TestCheckInstallation(t *testing.T) {
	f := newFixture(t)
	f.tools.gitErr = errors.New("git binary not found")

	report := f.session.CheckInstallation(context.Background())

	assert.True(t, report.Go.Installed)
	assert.Equal(t, "go version go1.26.0 linux/amd64", report.Go.Version)
	assert.False(t, report.Git.Installed)
	assert.Equal(t, "git binary not found", report.Git.Error)
	assert.False(t, report.Ready())
	assert.True(t, report.CanStart(), "a missing git must not block a launch")

	out := f.sink.Output()
	assert.Contains(t, out, "Checking for Go installation...\nFound Go at: /usr/local/go/bin/go\n")
	assert.Contains(t, out, "Git not found: git binary not found\n")

	var checks int
	for _, ev := range f.sink.Events() {
		if ev.Kind == domain.UIEventInstallCheck {
			checks++
			require.NotNil(t, ev.Installation)
			assert.Equal(t, report, *ev.Installation)
		}
	}
	assert.Equal(t, 1, checks)
}

func TestSessionIDIsULID(t *testing.T) {
	f := newFixture(t)
	assert.Len(t, f.session.ID(), 26)
}
