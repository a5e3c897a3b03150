package observe

import (
	"log/slog"
	"sync"
)

// Subscriber receives events. Implementations must be fast and must not
// block; they are called inline on the sandbox's goroutine.
type Subscriber interface {
	OnEvent(ev Event)
}

// Dispatcher fans events out to registered subscribers. A nil *Dispatcher
// is valid and drops everything, so event emission never needs a nil check.
type Dispatcher struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewDispatcher returns a dispatcher with no subscribers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a subscriber for all future events.
func (d *Dispatcher) Subscribe(s Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, s)
}

// Emit delivers an event to every subscriber in registration order.
func (d *Dispatcher) Emit(ev Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	subs := d.subs
	d.mu.RUnlock()
	for _, s := range subs {
		s.OnEvent(ev)
	}
}

// LogSubscriber writes events to a slog logger.
type LogSubscriber struct {
	Logger *slog.Logger
}

func (s *LogSubscriber) OnEvent(ev Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch ev.Type {
	case PermissionDenied:
		logger.Warn("permission denied", "sandbox", ev.SandboxID, "capability", ev.Capability, "detail", ev.Detail)
	case LimitExceeded:
		logger.Warn("limit exceeded", "sandbox", ev.SandboxID, "limit", ev.Limit, "used", ev.Used)
	case ExecutionFinished:
		if ev.Err != "" {
			logger.Info("execution failed", "sandbox", ev.SandboxID, "fn", ev.Function, "duration", ev.Duration, "error", ev.Err)
			return
		}
		logger.Info("execution finished", "sandbox", ev.SandboxID, "fn", ev.Function, "duration", ev.Duration)
	case ExecutionStarted:
		logger.Debug("execution started", "sandbox", ev.SandboxID, "fn", ev.Function)
	case HostCall:
		logger.Debug("host call", "sandbox", ev.SandboxID, "fn", ev.Function)
	}
}

// CollectingSubscriber buffers events for later inspection.
type CollectingSubscriber struct {
	mu     sync.Mutex
	events []Event
}

func (s *CollectingSubscriber) OnEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of everything collected so far.
func (s *CollectingSubscriber) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// ByType returns collected events of one type.
func (s *CollectingSubscriber) ByType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
