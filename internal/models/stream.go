package models

// EventType tags a StreamEvent.
type EventType string

const (
	EventContent EventType = "content"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// StreamEvent is the unit of incremental generation. A stream carries zero or more
// content events followed by exactly one done or error event.
type StreamEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// ContentEvent returns a content event carrying delta.
func ContentEvent(delta string) StreamEvent {
	return StreamEvent{Type: EventContent, Content: delta}
}

// DoneEvent returns the successful terminal event.
func DoneEvent() StreamEvent {
	return StreamEvent{Type: EventDone}
}

// ErrorEvent returns the failing terminal event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Content: message}
}
