package deeplink

import "github.com/navkit-dev/navkit/observability"

// Resolver event types emitted while opening URLs.
const (
	EventOpen  observability.EventType = "nav.link.open"
	EventMatch observability.EventType = "nav.link.match"
	EventMiss  observability.EventType = "nav.link.miss"
	EventSkip  observability.EventType = "nav.link.skip"
)
