package physics

// EventQueueSize bounds the per-tick contact/trigger event queue.
// Events beyond the bound are dropped and counted.
const EventQueueSize = 256

type EventType int

const (
	// EventTypeContact is emitted when two dynamic bodies collide.
	EventTypeContact EventType = iota
	// EventTypeTriggerEnter is emitted when a free-falling dynamic body
	// enters a trigger volume. Kinematic bodies do not emit trigger events.
	EventTypeTriggerEnter
)

// Event is a collision or trigger event produced during Step.
// Events are queued in deterministic order and drained once per tick
// rather than delivered via callbacks during stepping.
type Event struct {
	Type EventType

	// Contact fields.
	BodyA BodyID
	BodyB BodyID
	// Speed is the relative speed of the two bodies at impact.
	Speed float64

	// Trigger fields.
	Trigger string
	Body    BodyID
}

func (w *World) pushEvent(e Event) {
	if len(w.events) >= EventQueueSize {
		w.droppedEvents++
		return
	}
	w.events = append(w.events, e)
}

// DrainEvents returns all events produced since the last drain and clears
// the queue. The returned slice is reused on the next Step and must not be
// retained across ticks.
func (w *World) DrainEvents() []Event {
	events := w.events
	w.events = w.eventsSpare[:0]
	w.eventsSpare = events[:0]
	return events
}

// DroppedEvents returns the number of events dropped due to queue overflow.
func (w *World) DroppedEvents() uint64 {
	return w.droppedEvents
}
