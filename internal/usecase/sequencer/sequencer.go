// Package sequencer walks the user through the four credential prompts
// that gate keystore generation.
package sequencer

import (
	"strings"
	"sync"

	"arbiter-launcher/internal/domain"
)

var prompts = map[domain.WizardState]string{
	domain.AwaitingBtcKey:         "Please enter your BTC Private Key (64 hex characters):",
	domain.AwaitingEscKey:         "Please enter your ESC Private Key (64 hex characters):",
	domain.AwaitingPassword:       "Please enter your Password:",
	domain.AwaitingArbiterAddress: "Please enter your ESC Arbiter Address (starts with 0x followed by 40 hex characters):",
}

// Prompt returns the prompt text for state, or "" once the wizard is complete.
func Prompt(state domain.WizardState) string {
	return prompts[state]
}

// Step validates input for state, stores it in creds and returns the next
// state. On invalid input creds is untouched and state is returned with a
// *ValidationError. Keys and the address are trimmed; the password is
// stored as typed.
func Step(state domain.WizardState, creds *domain.Credentials, input string) (domain.WizardState, error) {
	switch state {
	case domain.AwaitingBtcKey:
		v := strings.TrimSpace(input)
		if !ValidateKey(v) {
			return state, &ValidationError{Field: FieldBtcPrivateKey,
				Message: "BTC Private Key must be exactly 64 hexadecimal characters (0-9, a-f)."}
		}
		creds.BtcPrivateKey = v
		return domain.AwaitingEscKey, nil
	case domain.AwaitingEscKey:
		v := strings.TrimSpace(input)
		if !ValidateKey(v) {
			return state, &ValidationError{Field: FieldEscPrivateKey,
				Message: "ESC Private Key must be exactly 64 hexadecimal characters (0-9, a-f)."}
		}
		creds.EscPrivateKey = v
		return domain.AwaitingPassword, nil
	case domain.AwaitingPassword:
		if !ValidatePassword(input) {
			return state, &ValidationError{Field: FieldPassword, Message: "Password cannot be empty."}
		}
		creds.Password = input
		return domain.AwaitingArbiterAddress, nil
	case domain.AwaitingArbiterAddress:
		v := strings.TrimSpace(input)
		if !ValidateAddress(v) {
			return state, &ValidationError{Field: FieldArbiterAddress,
				Message: "ESC Arbiter Address must start with 0x followed by 40 hexadecimal characters."}
		}
		creds.ArbiterAddress = v
		return domain.WizardComplete, nil
	default:
		return state, domain.NewSubSystemError("wizard", "sequencer.Step", domain.ErrWizardComplete, "")
	}
}

// Sequencer is the stateful wrapper around Step used by a setup session.
// It emits prompts and validation errors to the sink and hands the
// collected credentials to onComplete exactly once.
type Sequencer struct {
	mu         sync.Mutex
	state      domain.WizardState
	creds      domain.Credentials
	sink       domain.Sink
	onComplete func(domain.Credentials)
}

// New creates a Sequencer in AwaitingBtcKey.
func New(sink domain.Sink, onComplete func(domain.Credentials)) *Sequencer {
	return &Sequencer{state: domain.AwaitingBtcKey, sink: sink, onComplete: onComplete}
}

// Start emits the prompt for the current state.
func (s *Sequencer) Start() {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	s.emitPrompt(state)
}

// State returns the current wizard state.
func (s *Sequencer) State() domain.WizardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit feeds one line of user input into the wizard.
func (s *Sequencer) Submit(input string) (domain.WizardState, error) {
	s.mu.Lock()
	if s.state == domain.WizardComplete {
		s.mu.Unlock()
		return domain.WizardComplete, domain.NewSubSystemError("wizard", "Sequencer.Submit", domain.ErrWizardComplete, "")
	}

	next, err := Step(s.state, &s.creds, input)
	if err != nil {
		state := s.state
		s.mu.Unlock()
		if ve, ok := err.(*ValidationError); ok {
			s.sink.Emit(domain.UIEvent{
				Kind:   domain.UIEventOutput,
				Source: domain.SourceWizard,
				State:  state,
				Text:   "\nERROR: " + ve.Message + "\n",
			})
		}
		s.emitPrompt(state)
		return state, err
	}

	s.state = next
	creds := s.creds
	s.mu.Unlock()

	if next == domain.WizardComplete {
		if s.onComplete != nil {
			s.onComplete(creds)
		}
		return next, nil
	}
	s.emitPrompt(next)
	return next, nil
}

func (s *Sequencer) emitPrompt(state domain.WizardState) {
	text := Prompt(state)
	if text == "" {
		return
	}
	s.sink.Emit(domain.UIEvent{
		Kind:   domain.UIEventPrompt,
		Source: domain.SourceWizard,
		State:  state,
		Text:   text,
	})
}
