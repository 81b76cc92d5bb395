package manager

// Event represents a manager lifecycle event.
// Minimal and stable: name + pipeline ID + generation and optional fields.
type Event struct {
	Name       string
	PipelineID string
	Generation uint64
	Fields     map[string]any
}

// Lifecycle event names.
const (
	EventLoadStart     = "load_start"
	EventLoaded        = "loaded"
	EventLoadFailed    = "load_failed"
	EventLoadDiscarded = "load_discarded"
	EventUnloaded      = "unloaded"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
