package coordinator

import (
	"time"

	"github.com/Tiliavir/ttr/internal/model"
)

// EventKind classifies an Event.
type EventKind string

const (
	EventLoaded      EventKind = "loaded"
	EventLoadFailed  EventKind = "load_failed"
	EventSucceeded   EventKind = "ok"
	EventRolledBack  EventKind = "rolled_back"
	EventUndoExpired EventKind = "undo_expired"
)

// Event describes the outcome of a coordinator operation.
type Event struct {
	Kind     EventKind
	Method   model.Method
	RecordID string
	TmpID    string
	Err      error
	At       time.Time
}

// Observer receives events synchronously, after the coordinator has released
// its lock. Implementations must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }
