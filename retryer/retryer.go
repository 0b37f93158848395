// Package retryer implements the per-element connection state machine.
//
// A Controller tracks the lifecycle of one long-lived streaming connection
// owned by one element: whether it is connected, how many consecutive
// attempts have failed, and when the next attempt should be made. The
// request interceptor feeds lifecycle facts into the Controller through a
// privileged Notifier handle; the Controller decides what to do about them
// and asks its backoff Calculator when (or whether) to try again.
package retryer

import (
	"errors"
	"time"
)

// Status is a connection lifecycle state as seen by observers.
type Status string

const (
	// StatusConnecting means a new attempt is about to be made.
	StatusConnecting Status = "connecting"

	// StatusConnected means the last attempt completed successfully.
	StatusConnected Status = "connected"

	// StatusDisconnected means the connection stopped.
	StatusDisconnected Status = "disconnected"
)

// Element event names dispatched to an EventTarget.
const (
	EventConnect      = "connect"
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Element identifies the owner of a resilient connection. The Controller
// holds it only for identity and liveness checks; once Alive reports false
// the Controller stops scheduling attempts and the registry reclaims it.
type Element interface {
	// ID returns a stable identifier for the element.
	ID() string

	// Alive reports whether the element still exists in its owner's tree.
	Alive() bool
}

// EventTarget is optionally implemented by elements that want lifecycle
// events delivered directly. The "connect" event is always dispatched when
// a new attempt is about to be made; "connected" and "disconnected" are
// gated behind Options.EnableConnectionEvents.
type EventTarget interface {
	DispatchEvent(event string)
}

// Notification describes one lifecycle transition.
type Notification struct {
	// Element is the ID of the element the transition belongs to.
	Element string

	// Status is the new lifecycle state.
	Status Status

	// At is when the transition happened.
	At time.Time
}

// Subscriber receives lifecycle notifications through a chosen delivery
// mechanism. Implementations must not block.
type Subscriber interface {
	// Send delivers a notification to this subscriber.
	Send(n Notification)

	// Close terminates the subscriber and releases resources.
	Close()
}

// ErrNilElement is returned when constructing a Controller without an element.
var ErrNilElement = errors.New("retryer: nil element")
