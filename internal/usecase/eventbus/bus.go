package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"arbiter-launcher/internal/domain"
)

// subscription matches a single event type, or every type when eventType is empty.
type subscription struct {
	id        uint64
	eventType domain.EventType
	handler   domain.EventHandler
}

func (s subscription) matches(t domain.EventType) bool {
	return s.eventType == "" || s.eventType == t
}

// Bus is an in-process, goroutine-safe event bus for launcher lifecycle
// events. Delivery is asynchronous and unordered; ordered user-facing output
// travels through domain.Sink instead.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID atomic.Uint64
	logger *slog.Logger
	wg     sync.WaitGroup
	closed atomic.Bool
}

var _ domain.EventBus = (*Bus)(nil)

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Publish hands event to every matching handler, each on its own goroutine.
// A handler panic is logged and swallowed.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(event.Type) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		b.dispatch(ctx, event, sub)
	}
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event, sub subscription) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked",
					"event", string(event.Type),
					"panic", r,
				)
			}
		}()
		sub.handler(ctx, event)
	}()
}

func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	return b.add(eventType, handler)
}

func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	return b.add("", handler)
}

func (b *Bus) add(eventType domain.EventType, handler domain.EventHandler) func() {
	id := b.nextID.Add(1)

	b.mu.Lock()
	b.subs = append(b.subs, subscription{id: id, eventType: eventType, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Close drops later publishes and waits for running handlers. Repeat calls
// return at once.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.wg.Wait()
}

// Emit marshals payload to JSON and publishes it as an event of type t.
// A nil bus is a no-op so callers can run without lifecycle reporting.
func Emit(ctx context.Context, bus domain.EventBus, t domain.EventType, sessionID string, payload any) {
	if bus == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		raw = data
	}
	bus.Publish(ctx, domain.Event{
		Type:      t,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Payload:   raw,
	})
}

// LogEvents subscribes a handler that writes every lifecycle event to logger
// at debug level, or warn for failures. Returns the unsubscribe function.
func LogEvents(bus domain.EventBus, logger *slog.Logger) func() {
	return bus.SubscribeAll(func(ctx context.Context, e domain.Event) {
		level := slog.LevelDebug
		if e.Type == domain.EventWorkflowFailed {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "lifecycle event",
			"event", string(e.Type),
			"session_id", e.SessionID,
			"payload", string(e.Payload),
		)
	})
}
