package engine

import "github.com/navkit-dev/navkit/observability"

// Engine event types emitted by the navigation command layer.
const (
	EventPush    observability.EventType = "nav.engine.push"
	EventPop     observability.EventType = "nav.engine.pop"
	EventReplace observability.EventType = "nav.engine.replace"
	EventTrim    observability.EventType = "nav.engine.navigate.trim"
	EventBulk    observability.EventType = "nav.engine.bulk"
	EventLaunch  observability.EventType = "nav.engine.launch"
	EventSkip    observability.EventType = "nav.engine.skip"
)
