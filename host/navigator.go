// Package host defines the boundary between the engine and the application's
// stack navigator: the route handle, the command surface the engine drives,
// and the lifecycle events the engine reconciles against.
//
// The package also ships MemoryNavigator, a complete in-process navigator for
// tests, demos, and headless embedding.
package host

import "github.com/navkit-dev/navkit/core/navstate"

// EventKind identifies a navigator lifecycle event.
type EventKind string

const (
	KindPushed   EventKind = "pushed"
	KindPopped   EventKind = "popped"
	KindReplaced EventKind = "replaced"
	KindRemoved  EventKind = "removed"
)

// Transition selects how a route enters the stack.
type Transition int

const (
	// TransitionDefault is the standard forward-animated push.
	TransitionDefault Transition = iota
	// TransitionNone enters with zero forward duration but keeps the
	// default reverse animation, so the route still pops normally.
	TransitionNone
)

// Route is a live entry on the host stack. Token is assigned at creation and
// is the stable identity for all back-reference checks: two Route values
// refer to the same mounted route exactly when their tokens match.
type Route struct {
	Token      string
	Name       string
	Payload    any
	Transition Transition
}

// Event is a navigator lifecycle notification. Route is the subject of the
// event (the pushed, popped, replaced-in, or removed route) and Previous is
// the route beneath it at the time, nil at the bottom of the stack. For
// KindReplaced, Previous is the route that was replaced.
type Event struct {
	Kind     EventKind
	Route    *Route
	Previous *Route
}

// Observer receives lifecycle events. Callbacks run synchronously on the
// goroutine performing the stack mutation, in mutation order, and must not
// call back into the navigator.
type Observer func(Event)

// Request describes a route to place on the stack. State carries the
// engine's payload marker; a nil State produces a route with no payload,
// which downstream reconciliation treats as foreign.
type Request struct {
	Path       string
	State      *navstate.State
	Transition Transition
}

// Navigator is the host stack the engine observes and drives. Implementations
// must guarantee stable route identity per mounted route and deliver events
// in stack-mutation order.
type Navigator interface {
	// Push places a new route on top of the stack.
	Push(req Request) (*Route, error)
	// Pop removes the top route, reporting whether a route was popped.
	// The result value is handed to the host's route completion, if any.
	Pop(result any) bool
	// CanPop reports whether the stack can pop without emptying.
	CanPop() bool
	// Replace swaps the top route for a new one at the same depth.
	Replace(req Request) (*Route, error)
	// PushAndTrim pushes a new route, then removes the discard most recent
	// pre-existing routes beneath it. discard < 0 removes everything
	// beneath the new route.
	PushAndTrim(req Request, discard int) (*Route, error)
	// Remove deletes the route with the given token from anywhere in the
	// stack, with no animation. Reports whether a route was removed.
	Remove(token string) bool
	// Subscribe attaches an observer. The returned cancel detaches it.
	Subscribe(obs Observer) (cancel func())
	// Mounted reports whether a navigation context is currently available.
	Mounted() bool
}
