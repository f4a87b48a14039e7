package orchestrator

import "time"

// EventType enumerates run lifecycle signals emitted to the event sink.
type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventRunCompleted  EventType = "run_completed"
	EventUnitStarted   EventType = "unit_started"
	EventUnitCompleted EventType = "unit_completed"
	EventUnitSkipped   EventType = "unit_skipped"
	EventStepStarted   EventType = "step_started"
	EventStepResolved  EventType = "step_resolved"
)

// Event is a phase-transition notification. Purely observational; sinks must
// not mutate run state.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventSink receives lifecycle events. Safe to omit entirely.
type EventSink interface {
	OnEvent(Event)
}

// SinkFunc adapts a plain function to the EventSink interface.
type SinkFunc func(Event)

// OnEvent implements EventSink.
func (f SinkFunc) OnEvent(e Event) { f(e) }

func (o *Orchestrator) emit(eventType EventType, data map[string]any) {
	if o.sink == nil {
		return
	}
	o.sink.OnEvent(Event{Type: eventType, Timestamp: time.Now(), Data: data})
}
