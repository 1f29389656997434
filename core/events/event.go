package events

import "evregistry/core/types"

// Event represents a structured state change emitted by the registry.
type Event interface {
	EventType() string
}

// Recorder is implemented by events that can render themselves into the
// generic attribute representation consumed by sinks.
type Recorder interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (RPC streams, indexers,
// audit logs). Emission is best effort: a sink failure must never influence
// the outcome of the operation that produced the event.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines whose caller has not wired a sink.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
