package persist

import "github.com/navkit-dev/navkit/observability"

// Scheduler event types.
const (
	EventFlush   observability.EventType = "nav.persist.flush"
	EventRestore observability.EventType = "nav.persist.restore"
)
