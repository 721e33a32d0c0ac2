package persist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/navkit-dev/navkit/observability"
)

// Schedule selects when snapshots are taken. The zero value means manual
// persistence only.
type Schedule struct {
	// Immediate persists after every reconciled store mutation.
	Immediate bool
	// Interval, when positive, persists on a recurring timer.
	Interval time.Duration
}

// SnapshotFunc produces the current snapshot bytes, typically by encoding
// the history store.
type SnapshotFunc func() ([]byte, error)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedule sets the persistence schedule.
func WithSchedule(schedule Schedule) SchedulerOption {
	return func(s *Scheduler) { s.schedule = schedule }
}

// WithObserver overrides the default NoOpObserver.
func WithObserver(obs observability.Observer) SchedulerOption {
	return func(s *Scheduler) { s.observer = obs }
}

// WithRestoreFallback sets the hook invoked when a restore attempt fails
// outright (a store error, not an absent snapshot). The default does
// nothing; it exists as a seam for recovery strategies.
func WithRestoreFallback(fallback func(error)) SchedulerOption {
	return func(s *Scheduler) { s.fallback = fallback }
}

// Scheduler drives snapshot persistence. Store failures are logged and
// swallowed, never propagated: navigation continues uninterrupted with the
// previous snapshot in place. All scheduled persistence is gated behind the
// launched flag, suppressing writes during initial setup before the caller
// has established the real stack.
//
// A nil store produces an inert scheduler whose methods all no-op; that is
// the disabled-persistence configuration.
type Scheduler struct {
	store    Store
	snapshot SnapshotFunc
	schedule Schedule
	observer observability.Observer
	fallback func(error)
	launched atomic.Bool

	mu   sync.Mutex
	stop chan struct{}
}

// NewScheduler creates a Scheduler reading snapshots from snapshot and
// writing them to store.
func NewScheduler(store Store, snapshot SnapshotFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:    store,
		snapshot: snapshot,
		observer: observability.NoOpObserver{},
		fallback: func(error) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkLaunched opens the persistence gate. Called once the restored or
// default stack is about to be established, so the resulting reconciliation
// events are themselves eligible for immediate persistence.
func (s *Scheduler) MarkLaunched() {
	s.launched.Store(true)
}

// Launched reports whether the persistence gate is open.
func (s *Scheduler) Launched() bool {
	return s.launched.Load()
}

// Touch is the reconciler's mutation hook: it persists immediately when the
// scheduler is enabled, in immediate mode, and launched.
func (s *Scheduler) Touch(ctx context.Context) {
	if s.store == nil || !s.schedule.Immediate || !s.launched.Load() {
		return
	}
	s.Flush(ctx)
}

// Flush takes a snapshot and saves it now, regardless of schedule or launch
// gate. Failures are logged and swallowed.
func (s *Scheduler) Flush(ctx context.Context) {
	if s.store == nil {
		return
	}

	data, err := s.snapshot()
	if err != nil {
		s.observer.OnEvent(ctx, observability.Event{
			Type:   EventFlush,
			Level:  observability.LevelWarning,
			Time:   time.Now(),
			Scope:  "persist.Scheduler",
			Fields: map[string]any{"error": err.Error()},
		})
		return
	}

	if err := s.store.Save(ctx, data); err != nil {
		s.observer.OnEvent(ctx, observability.Event{
			Type:   EventFlush,
			Level:  observability.LevelWarning,
			Time:   time.Now(),
			Scope:  "persist.Scheduler",
			Fields: map[string]any{"error": err.Error()},
		})
		return
	}

	s.observer.OnEvent(ctx, observability.Event{
		Type:   EventFlush,
		Level:  observability.LevelVerbose,
		Time:   time.Now(),
		Scope:  "persist.Scheduler",
		Fields: map[string]any{"bytes": len(data)},
	})
}

// Restore loads and decodes the stored snapshot. Store errors and an absent
// snapshot both come back as ok=false, treated as "no data"; a store error
// additionally invokes the restore fallback hook. Malformed entries inside
// the snapshot are dropped individually, never failing the restore.
func (s *Scheduler) Restore(ctx context.Context) ([]Record, bool) {
	if s.store == nil {
		return nil, false
	}

	data, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			s.observer.OnEvent(ctx, observability.Event{
				Type:   EventRestore,
				Level:  observability.LevelVerbose,
				Time:   time.Now(),
				Scope:  "persist.Scheduler",
				Fields: map[string]any{"snapshot": false},
			})
			return nil, false
		}

		s.observer.OnEvent(ctx, observability.Event{
			Type:   EventRestore,
			Level:  observability.LevelWarning,
			Time:   time.Now(),
			Scope:  "persist.Scheduler",
			Fields: map[string]any{"error": err.Error()},
		})
		s.fallback(err)
		return nil, false
	}

	records, warns := Decode(data)
	for _, warn := range warns {
		s.observer.OnEvent(ctx, observability.Event{
			Type:   EventRestore,
			Level:  observability.LevelWarning,
			Time:   time.Now(),
			Scope:  "persist.Scheduler",
			Fields: map[string]any{"error": warn.Error()},
		})
	}

	if len(records) == 0 {
		return nil, false
	}

	s.observer.OnEvent(ctx, observability.Event{
		Type:   EventRestore,
		Level:  observability.LevelInfo,
		Time:   time.Now(),
		Scope:  "persist.Scheduler",
		Fields: map[string]any{"records": len(records)},
	})
	return records, true
}

// Start begins the interval timer when one is configured. Calling Start
// again cancels the previous timer and starts a fresh one, so repeated
// launches replace rather than accumulate timers. ctx cancellation also
// stops the timer.
func (s *Scheduler) Start(ctx context.Context) {
	if s.store == nil || s.schedule.Interval <= 0 {
		return
	}

	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	go s.run(ctx, stop)
}

// Stop halts the interval timer, if running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Scheduler) run(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(s.schedule.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.launched.Load() {
				s.Flush(ctx)
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
