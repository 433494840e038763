package console

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter-launcher/internal/domain"
)

// lockedBuffer guards a bytes.Buffer shared by the console and the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeSession asks for `want` lines starting in state, then switches the
// wizard off and waits for the remaining lines.
type fakeSession struct {
	console *Console
	state   domain.WizardState
	wizard  int // number of answers consumed by the wizard
	want    int

	mu        sync.Mutex
	submitted []string
	got       chan struct{}
}

func newFakeSession(state domain.WizardState, wizard, want int) *fakeSession {
	return &fakeSession{state: state, wizard: wizard, want: want, got: make(chan struct{})}
}

func (f *fakeSession) StartSetup(ctx context.Context, _ string) domain.SetupResult {
	f.console.Emit(domain.UIEvent{Kind: domain.UIEventPrompt, Source: domain.SourceWizard, State: f.state, Text: "Answer: "})
	select {
	case <-f.got:
		return domain.SetupResult{Success: true}
	case <-ctx.Done():
		return domain.SetupResult{Code: domain.CodeCancelled}
	}
}

func (f *fakeSession) SubmitInput(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, text)
	if len(f.submitted) == f.want {
		close(f.got)
	}
	return nil
}

func (f *fakeSession) WizardState() (domain.WizardState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitted) >= f.wizard {
		return domain.WizardComplete, false
	}
	return f.state, true
}

func (f *fakeSession) Submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runWithTimeout(t *testing.T, c *Console, s Session) domain.SetupResult {
	t.Helper()
	out := make(chan domain.SetupResult, 1)
	go func() { out <- c.Run(context.Background(), s, "/tmp/target") }()
	select {
	case r := <-out:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("console run did not finish")
		return domain.SetupResult{}
	}
}

func TestRunRelaysLines(t *testing.T) {
	out := &lockedBuffer{}
	c := New(strings.NewReader("0xabc\r\nsecond\n"), out, discardLogger())
	s := newFakeSession(domain.AwaitingArbiterAddress, 1, 2)
	s.console = c

	res := runWithTimeout(t, c, s)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"0xabc", "second"}, s.Submitted())
	assert.Equal(t, "Answer: ", out.String())
}

func TestRunReadsSecretsHidden(t *testing.T) {
	out := &lockedBuffer{}
	var secretReads int
	c := New(strings.NewReader("visible\n"), out, discardLogger(),
		WithSecretReader(func() (string, error) {
			secretReads++
			return "hunter2", nil
		}))
	s := newFakeSession(domain.AwaitingPassword, 1, 2)
	s.console = c

	res := runWithTimeout(t, c, s)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"hunter2", "visible"}, s.Submitted())
	assert.Equal(t, 1, secretReads)
}

func TestRunLastLineWithoutNewline(t *testing.T) {
	c := New(strings.NewReader("only"), &lockedBuffer{}, discardLogger())
	s := newFakeSession(domain.AwaitingArbiterAddress, 1, 1)
	s.console = c

	res := runWithTimeout(t, c, s)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"only"}, s.Submitted())
}

func TestRunEOFDuringWizardCancels(t *testing.T) {
	c := New(strings.NewReader(""), &lockedBuffer{}, discardLogger())
	s := newFakeSession(domain.AwaitingBtcKey, 4, 4)
	s.console = c

	res := runWithTimeout(t, c, s)

	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeCancelled, res.Code)
	assert.Empty(t, s.Submitted())
}

func TestEmitFiltersEvents(t *testing.T) {
	out := &lockedBuffer{}
	c := New(strings.NewReader(""), out, discardLogger())

	c.Emit(domain.UIEvent{Kind: domain.UIEventOutput, Source: domain.SourceSystem, Text: "Cloning repository...\n"})
	c.Emit(domain.UIEvent{Kind: domain.UIEventOutput, Source: domain.SourceUser, Text: "typed\n"})
	c.Emit(domain.UIEvent{Kind: domain.UIEventOutput, Source: domain.SourceProcess, Text: "Enter value? "})
	c.Emit(domain.UIEvent{Kind: domain.UIEventPrompt, Source: domain.SourceProcess, Text: "Enter value? "})
	c.Emit(domain.UIEvent{Kind: domain.UIEventInstallCheck, Source: domain.SourceSystem, Installation: &domain.InstallationReport{}})

	require.Equal(t, "Cloning repository...\nEnter value? ", out.String())

	select {
	case <-c.ready:
	default:
		t.Fatal("process output should unblock the input loop")
	}
}

func TestAskString(t *testing.T) {
	out := &lockedBuffer{}
	c := New(strings.NewReader("  /srv/signer  \n\n"), out, discardLogger())

	got, err := c.AskString("Setup directory", "/home/me")
	require.NoError(t, err)
	assert.Equal(t, "/srv/signer", got)
	assert.Equal(t, "Setup directory [/home/me]: ", out.String())

	got, err = c.AskString("Setup directory", "/home/me")
	require.NoError(t, err)
	assert.Equal(t, "/home/me", got)

	_, err = c.AskString("Setup directory", "")
	assert.ErrorIs(t, err, io.EOF)
}
