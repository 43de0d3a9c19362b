package runner

import (
	"context"
	"time"
)

// EventKind names the four event types a run produces.
type EventKind string

const (
	EventStatus   EventKind = "status"
	EventProgress EventKind = "progress"
	EventError    EventKind = "error"
	EventComplete EventKind = "complete"
)

// Event is one progress notification from a run.
type Event struct {
	RunID   string    `json:"runId,omitempty"`
	Kind    EventKind `json:"kind"`
	Step    string    `json:"step"`
	Message string    `json:"message"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// Terminal reports whether no further events follow e.
func (e Event) Terminal() bool {
	return e.Kind == EventError || e.Kind == EventComplete
}

// Emitter receives run events. Emit must not block the run.
type Emitter interface {
	Emit(event Event)
}

type emitterKey struct{}

// WithEmitter attaches an emitter to the context.
func WithEmitter(ctx context.Context, emitter Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}

// EmitterFrom retrieves the emitter from context, or returns a no-op emitter.
func EmitterFrom(ctx context.Context) Emitter {
	if e, ok := ctx.Value(emitterKey{}).(Emitter); ok && e != nil {
		return e
	}
	return noopEmitter{}
}

type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

// ChannelEmitter sends events to a channel, dropping them when it is full.
// The consumer drains Ch on its own goroutine.
type ChannelEmitter struct {
	Ch chan<- Event
}

func (e *ChannelEmitter) Emit(event Event) {
	select {
	case e.Ch <- event:
	default: // non-blocking
	}
}

// FuncEmitter adapts a function. A panic in the function is swallowed.
type FuncEmitter func(Event)

func (f FuncEmitter) Emit(event Event) {
	defer func() { _ = recover() }()
	f(event)
}

// MultiEmitter forwards every event to each emitter in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
