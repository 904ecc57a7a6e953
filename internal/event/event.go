// Package event defines the Event value: the immutable-after-construction
// unit of work that flows from producers through the router, dispatcher,
// and plugins.
package event

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/eventd-go/internal/value"
)

// Event is a (category, name) occurrence carrying typed data. Events are
// built with New and mutated only by Set before being handed to the
// dispatcher; once dispatched they are treated as read-only by every
// component downstream.
type Event struct {
	UUID     uuid.UUID
	Category string
	Name     string
	// Timeout is in milliseconds; <= 0 means no timeout.
	Timeout int
	Data    map[string]value.Value
}

// New creates an Event with a fresh UUID and an empty data map.
func New(category, name string) *Event {
	return &Event{
		UUID:     uuid.New(),
		Category: category,
		Name:     name,
		Data:     make(map[string]value.Value),
	}
}

// Internal reports whether this event's category marks it as internal
// (bypasses the router per spec §4.3).
func (e *Event) Internal() bool {
	return strings.HasPrefix(e.Category, ".")
}

// Set adds or replaces a data key. Intended for use only by the
// producer during construction, before the event is handed to the
// dispatcher.
func (e *Event) Set(key string, v value.Value) {
	e.Data[key] = v
}

// Get returns the data value at key, if present.
func (e *Event) Get(key string) (value.Value, bool) {
	v, ok := e.Data[key]
	return v, ok
}

// WithTimeout sets the event's timeout in milliseconds and returns the
// receiver for chaining during construction.
func (e *Event) WithTimeout(ms int) *Event {
	e.Timeout = ms
	return e
}

// Internal event categories and names used as the control-plane
// mechanism described in spec.md §9 ("internal events as control
// plane"). Kept here since both the dispatcher and the notification
// compositor need to agree on these literal strings.
const (
	CategoryNotification = ".notification"

	NameDismiss = "dismiss"
	NameTimeout = "timeout"

	// DataSourceEvent names the data key carrying the dismissed/timed-out
	// notification's source event UUID (as a string).
	DataSourceEvent = "source-event"
)

// NewNotificationEvent builds the synthetic internal event a
// notification emits on dismissal or timeout, per spec.md §4.7/§7.
func NewNotificationEvent(name string, sourceUUID uuid.UUID) *Event {
	e := New(CategoryNotification, name)
	e.Set(DataSourceEvent, value.String(sourceUUID.String()))
	return e
}

// Clock is a seam for reading the current time without depending on
// wall time directly, in the teacher's dependency-injection style for
// external collaborators (internal/connwatch.ProbeFunc,
// internal/mqtt.StatsSource). No component in this module takes a Clock
// yet: relay backoff and notification timeouts use package time
// directly.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the default Clock backed by time.Now.
var RealClock Clock = realClock{}
