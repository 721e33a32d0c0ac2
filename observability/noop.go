package observability

import "context"

// NoOpObserver discards all events with zero overhead. Components constructed
// without an explicit observer default to it.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}
