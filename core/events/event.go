package events

// Event represents a structured state change emitted by the protocol engines.
// Attributes renders the event payload as flat string pairs for downstream
// sinks (audit store, gateway, indexers).
type Event interface {
	EventType() string
	Attributes() map[string]string
}

// Emitter broadcasts events to downstream subscribers.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into engines so event emission stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans an event out to every configured sink in order.
type MultiEmitter struct {
	sinks []Emitter
}

// NewMultiEmitter builds a fan-out emitter, dropping nil sinks.
func NewMultiEmitter(sinks ...Emitter) *MultiEmitter {
	kept := make([]Emitter, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	return &MultiEmitter{sinks: kept}
}

// Emit implements the Emitter interface.
func (m *MultiEmitter) Emit(evt Event) {
	if m == nil {
		return
	}
	for _, sink := range m.sinks {
		sink.Emit(evt)
	}
}
