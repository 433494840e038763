package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType names a lifecycle event published on the bus.
type EventType string

const (
	EventProcessStarted   EventType = "process.started"
	EventProcessCompleted EventType = "process.completed"
	EventProcessKilled    EventType = "process.killed"

	EventWorkflowStarted   EventType = "workflow.started"
	EventWorkflowStep      EventType = "workflow.step"
	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowFailed    EventType = "workflow.failed"

	EventWizardCompleted EventType = "wizard.completed"
	EventConfigPatched   EventType = "config.patched"
	EventInstallChecked  EventType = "install.checked"
)

// Event is one bus message. Payload never carries credentials.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type EventHandler func(ctx context.Context, event Event)

// EventBus fans lifecycle events out to observers such as the event log.
// Subscribe and SubscribeAll return their own unsubscribe func.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
	// Close waits for running handlers; later publishes are dropped.
	Close()
}

// UIEventKind classifies events delivered to a front end.
type UIEventKind string

const (
	UIEventOutput       UIEventKind = "output"
	UIEventPrompt       UIEventKind = "prompt"
	UIEventInstallCheck UIEventKind = "installation-check"
)

// UIEventSource names who produced a UIEvent.
type UIEventSource string

const (
	SourceSystem  UIEventSource = "system"
	SourceWizard  UIEventSource = "wizard"
	SourceProcess UIEventSource = "process"
	SourceUser    UIEventSource = "user"
)

// UIEvent is a single item of the ordered stream shown to the user.
type UIEvent struct {
	Kind   UIEventKind
	Source UIEventSource
	// State is the wizard state that produced a wizard prompt.
	State        WizardState
	Text         string
	Installation *InstallationReport
}

// Sink receives UI events in emission order. Implementations must be safe
// for concurrent use; Emit may block until the event is accepted.
type Sink interface {
	Emit(ev UIEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(UIEvent)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev UIEvent) { f(ev) }

// Output emits a system output event.
func Output(s Sink, text string) {
	s.Emit(UIEvent{Kind: UIEventOutput, Source: SourceSystem, Text: text})
}
