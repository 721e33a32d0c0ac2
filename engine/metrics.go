package engine

import (
	"context"
	"sync/atomic"

	"github.com/navkit-dev/navkit/deeplink"
	"github.com/navkit-dev/navkit/history"
	"github.com/navkit-dev/navkit/observability"
	"github.com/navkit-dev/navkit/persist"
)

// MetricsSnapshot is a point-in-time view of the engine's counters.
type MetricsSnapshot struct {
	Pushes     int64 `json:"pushes"`
	Pops       int64 `json:"pops"`
	Replaces   int64 `json:"replaces"`
	Removals   int64 `json:"removals"`
	Trims      int64 `json:"trims"`
	Clears     int64 `json:"clears"`
	Persists   int64 `json:"persists"`
	Restores   int64 `json:"restores"`
	LinkOpens  int64 `json:"link_opens"`
	LinkMisses int64 `json:"link_misses"`
}

// Metrics counts navigation activity. The counters are fed from the
// observability stream, so host-driven reconciliation counts the same as
// command-driven navigation.
type Metrics struct {
	pushes     atomic.Int64
	pops       atomic.Int64
	replaces   atomic.Int64
	removals   atomic.Int64
	trims      atomic.Int64
	clears     atomic.Int64
	persists   atomic.Int64
	restores   atomic.Int64
	linkOpens  atomic.Int64
	linkMisses atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Pushes:     m.pushes.Load(),
		Pops:       m.pops.Load(),
		Replaces:   m.replaces.Load(),
		Removals:   m.removals.Load(),
		Trims:      m.trims.Load(),
		Clears:     m.clears.Load(),
		Persists:   m.persists.Load(),
		Restores:   m.restores.Load(),
		LinkOpens:  m.linkOpens.Load(),
		LinkMisses: m.linkMisses.Load(),
	}
}

// metricsObserver derives counters from events as they flow through the
// engine's observer fan-out.
type metricsObserver struct {
	metrics *Metrics
}

func (o metricsObserver) OnEvent(_ context.Context, event observability.Event) {
	switch event.Type {
	case history.EventPush:
		o.metrics.pushes.Add(1)
	case history.EventPop:
		o.metrics.pops.Add(1)
	case history.EventReplace:
		o.metrics.replaces.Add(1)
	case history.EventRemove:
		o.metrics.removals.Add(1)
	case history.EventClear:
		o.metrics.clears.Add(1)
	case EventTrim:
		o.metrics.trims.Add(1)
	case persist.EventFlush:
		if event.Level == observability.LevelVerbose {
			o.metrics.persists.Add(1)
		}
	case persist.EventRestore:
		if event.Level == observability.LevelInfo {
			o.metrics.restores.Add(1)
		}
	case deeplink.EventOpen:
		o.metrics.linkOpens.Add(1)
	case deeplink.EventMiss:
		o.metrics.linkMisses.Add(1)
	}
}
