package launcher

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"arbiter-launcher/internal/domain"
)

// Sink forwards UI events into a running Bubble Tea program. Events emitted
// before Attach are queued and flushed in order.
type Sink struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending []domain.UIEvent
}

var _ domain.Sink = (*Sink)(nil)

// NewSink creates a detached Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Attach connects the sink to send, usually (*tea.Program).Send.
func (s *Sink) Attach(send func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = send
	for _, ev := range s.pending {
		send(uiEventMsg{Event: ev})
	}
	s.pending = nil
}

// Emit delivers ev, blocking until the program accepts it. Holding the
// lock across send keeps concurrent emitters in order.
func (s *Sink) Emit(ev domain.UIEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.send == nil {
		s.pending = append(s.pending, ev)
		return
	}
	s.send(uiEventMsg{Event: ev})
}
