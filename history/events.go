package history

import "github.com/navkit-dev/navkit/observability"

// Reconciler event types emitted as host events are applied to the store.
const (
	EventPush    observability.EventType = "nav.history.push"
	EventPop     observability.EventType = "nav.history.pop"
	EventReplace observability.EventType = "nav.history.replace"
	EventRemove  observability.EventType = "nav.history.remove"
	EventClear   observability.EventType = "nav.history.clear"
)
