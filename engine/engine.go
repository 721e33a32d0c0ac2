// Package engine composes the route table, history store, event reconciler,
// deep-link resolver, and persistence scheduler into the navigation command
// layer that drives a host navigator.
//
// The engine initializes from configuration via New, creating all subsystems
// internally. Functional options allow overrides of any collaborator.
//
//	e, err := engine.New(&cfg, engine.WithNavigator(nav))
//	e.Launch(ctx, defaults)
//	e.Push(ctx, "/product/detail", navstate.Extra{"id": "42"})
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/navkit-dev/navkit/core/navstate"
	"github.com/navkit-dev/navkit/deeplink"
	"github.com/navkit-dev/navkit/history"
	"github.com/navkit-dev/navkit/host"
	"github.com/navkit-dev/navkit/observability"
	"github.com/navkit-dev/navkit/persist"
	"github.com/navkit-dev/navkit/route"
)

// RouteInfo is the unit of the bulk commands: a destination path plus its
// navigation payload.
type RouteInfo struct {
	Path  string
	Extra navstate.Extra
}

// Option configures an Engine during New, overriding config-created
// defaults.
type Option func(*Engine)

// WithNavigator sets the host navigator the engine drives. The reconciler
// subscribes to it before New returns; Attach can swap it later.
func WithNavigator(nav host.Navigator) Option {
	return func(e *Engine) { e.nav = nav }
}

// WithObserver overrides the config-resolved observer.
func WithObserver(obs observability.Observer) Option {
	return func(e *Engine) { e.observer = obs }
}

// WithPersistStore overrides the config-selected snapshot store. Passing nil
// disables persistence regardless of configuration.
func WithPersistStore(store persist.Store) Option {
	return func(e *Engine) {
		e.snapshots = store
		e.snapshotsSet = true
	}
}

// WithBindings appends link redirect bindings to those declared in
// configuration. A binding without an OnMatch callback uses the engine's
// default redirect, which navigates to the matched template path with the
// captured path and query parameters merged into the extra.
func WithBindings(bindings ...deeplink.Binding) Option {
	return func(e *Engine) { e.bindings = append(e.bindings, bindings...) }
}

// Engine is the navigation command layer. Commands compute what to ask the
// host navigator to do from current history state, issue the host commands,
// and let the reconciler apply the resulting events; the engine itself never
// writes the step store. Any command issued without an available navigation
// context is a logged no-op.
type Engine struct {
	table     *route.Table
	store     *history.Store
	rec       *history.Reconciler
	resolver  *deeplink.Resolver
	sched     *persist.Scheduler
	observer  observability.Observer
	metrics   *Metrics
	snapshots persist.Store
	closer    io.Closer

	snapshotsSet bool
	bindings     []deeplink.Binding

	mu     sync.RWMutex
	nav    host.Navigator
	detach func()
}

// New creates an Engine from configuration. The observer is resolved from
// the config's observer name (default: slog), the snapshot store from the
// persistence block, and the resolver from the configured prefixes and
// links. Functional options applied during initialization can override any
// collaborator. A duplicate link template anywhere in the configured and
// optional bindings fails construction.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}

	observer := observability.Observer(observability.NewSlogObserver(slog.Default()))
	if cfg.Observer != "" {
		resolved, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		observer = resolved
	}

	e := &Engine{
		table:    route.NewTable(),
		store:    history.NewStore(),
		observer: observer,
		metrics:  NewMetrics(),
	}

	for _, opt := range opts {
		opt(e)
	}

	// Counters are derived from the event stream, so every subsystem logs
	// through the same fan-out.
	e.observer = observability.NewMultiObserver(e.observer, metricsObserver{metrics: e.metrics})

	if !e.snapshotsSet {
		store, closer, err := openSnapshotStore(&cfg.Persistence)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		e.snapshots = store
		e.closer = closer
	}

	e.sched = persist.NewScheduler(e.snapshots, e.encodeSnapshot,
		persist.WithSchedule(persist.Schedule{
			Immediate: cfg.Persistence.Immediate,
			Interval:  cfg.Persistence.Interval,
		}),
		persist.WithObserver(e.observer),
	)

	e.rec = history.NewReconciler(e.store,
		history.WithObserver(e.observer),
		history.WithMutationHook(e.sched.Touch),
	)

	if len(cfg.Routes) > 0 {
		descs := make([]route.Descriptor, 0, len(cfg.Routes))
		for _, path := range cfg.Routes {
			descs = append(descs, route.Descriptor{Path: path})
		}
		e.table.Register(descs)
	}

	bindings := make([]deeplink.Binding, 0, len(cfg.Links)+len(e.bindings))
	for _, link := range cfg.Links {
		bindings = append(bindings, deeplink.Binding{Templates: slices.Clone(link.Templates)})
	}
	bindings = append(bindings, e.bindings...)
	for i := range bindings {
		if bindings[i].OnMatch == nil {
			bindings[i].OnMatch = e.redirect
		}
	}

	resolver, err := deeplink.NewResolver(cfg.Prefixes, bindings,
		deeplink.WithObserver(e.observer),
		deeplink.WithContextCheck(e.contextAvailable),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build link resolver: %w", err)
	}
	e.resolver = resolver

	if e.nav != nil {
		e.detach = e.rec.Attach(e.nav)
	}

	return e, nil
}

// openSnapshotStore builds the snapshot store the persistence block selects.
// A disabled block yields no store, which leaves the scheduler inert.
func openSnapshotStore(cfg *PersistenceConfig) (persist.Store, io.Closer, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	switch {
	case cfg.DSN != "":
		store, err := persist.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case cfg.Path != "":
		return persist.NewFileStore(cfg.Path), nil, nil
	default:
		return persist.NewMemStore(), nil, nil
	}
}

// Attach binds the engine to a host navigator, replacing any previous
// subscription. Passing nil detaches.
func (e *Engine) Attach(nav host.Navigator) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.detach != nil {
		e.detach()
		e.detach = nil
	}
	e.nav = nav
	if nav != nil {
		e.detach = e.rec.Attach(nav)
	}
}

// Close stops the interval timer, unsubscribes from the navigator, and
// closes the snapshot store when the engine opened it.
func (e *Engine) Close() error {
	e.sched.Stop()

	e.mu.Lock()
	if e.detach != nil {
		e.detach()
		e.detach = nil
	}
	e.mu.Unlock()

	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

// RegisterRoutes replaces the entire route table, including any routes
// declared in configuration. Duplicate paths in the input silently
// overwrite, last wins.
func (e *Engine) RegisterRoutes(descs []route.Descriptor) {
	e.table.Register(descs)
}

// RoutePaths returns the registered route paths, sorted.
func (e *Engine) RoutePaths() []string {
	return e.table.Paths()
}

// Depth returns the number of tracked history steps.
func (e *Engine) Depth() int {
	return e.store.Len()
}

// History returns the tracked steps in persistence shape, oldest first.
func (e *Engine) History() []persist.Record {
	steps := e.store.Steps()
	records := make([]persist.Record, 0, len(steps))
	for _, step := range steps {
		records = append(records, persist.Record{Path: step.Path, Extra: step.Current.Extra})
	}
	return records
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Push looks up path and issues a forward-animated push carrying the
// canonicalized extra. An unknown path is a logged no-op.
func (e *Engine) Push(ctx context.Context, path string, extra navstate.Extra) {
	nav, ok := e.ready(ctx, "push")
	if !ok {
		return
	}
	if !e.registered(ctx, "push", path) {
		return
	}
	e.push(ctx, nav, path, extra)
}

// Pop delegates to the host navigator's pop, handing result to the route
// below.
func (e *Engine) Pop(ctx context.Context, result any) {
	nav, ok := e.ready(ctx, "pop")
	if !ok {
		return
	}
	if !nav.Pop(result) {
		e.emit(ctx, EventPop, observability.LevelWarning, map[string]any{"reason": "empty stack"})
		return
	}
	e.emit(ctx, EventPop, observability.LevelVerbose, nil)
}

// CanPop reports whether the host navigator has a route to pop back to.
func (e *Engine) CanPop() bool {
	nav := e.navigator()
	return nav != nil && nav.CanPop()
}

// MaybePop pops only when the host allows it, reporting whether a pop
// occurred.
func (e *Engine) MaybePop(ctx context.Context, result any) bool {
	nav, ok := e.ready(ctx, "maybe_pop")
	if !ok {
		return false
	}
	if !nav.CanPop() {
		return false
	}
	if !nav.Pop(result) {
		return false
	}
	e.emit(ctx, EventPop, observability.LevelVerbose, nil)
	return true
}

// PushReplacement swaps the top route using the forward push animation.
func (e *Engine) PushReplacement(ctx context.Context, path string, extra navstate.Extra) {
	e.replaceTop(ctx, "push_replacement", path, extra, host.TransitionDefault)
}

// Replace swaps the top route with no entry animation, keeping the default
// exit animation for the eventual pop.
func (e *Engine) Replace(ctx context.Context, path string, extra navstate.Extra) {
	e.replaceTop(ctx, "replace", path, extra, host.TransitionNone)
}

// Navigate is smart navigation: when path already exists in history and
// force is false, the engine pushes the destination while trimming every
// route from the previous occurrence upward in a single host command,
// instead of accumulating a duplicate. A miss or force falls back to an
// ordinary push.
func (e *Engine) Navigate(ctx context.Context, path string, extra navstate.Extra, force bool) {
	nav, ok := e.ready(ctx, "navigate")
	if !ok {
		return
	}
	if !e.registered(ctx, "navigate", path) {
		return
	}

	idx, found := e.store.FindLast(path)
	if !found || force {
		e.push(ctx, nav, path, extra)
		return
	}

	discard := e.store.Len() - idx
	if _, err := nav.PushAndTrim(e.request(ctx, path, extra, host.TransitionDefault), discard); err != nil {
		e.emit(ctx, EventTrim, observability.LevelWarning, map[string]any{"path": path, "error": err.Error()})
		return
	}
	e.emit(ctx, EventTrim, observability.LevelInfo, map[string]any{"path": path, "discard": discard})
}

// PushAll pushes infos in order. Intermediate routes enter without animation
// so only the final destination is seen transitioning, while every pushed
// route keeps the default exit animation for later pops. Empty input is a
// no-op.
func (e *Engine) PushAll(ctx context.Context, infos []RouteInfo) {
	nav, ok := e.ready(ctx, "push_all")
	if !ok {
		return
	}
	if n := e.pushSequence(ctx, nav, "push_all", infos); n > 0 {
		e.emit(ctx, EventBulk, observability.LevelVerbose, map[string]any{"op": "push_all", "routes": n})
	}
}

// PopAll unwinds the tracked stack. A single-step store pops with the
// normal animation; deeper stacks are torn down synchronously from the top
// without per-route animation.
func (e *Engine) PopAll(ctx context.Context) {
	nav, ok := e.ready(ctx, "pop_all")
	if !ok {
		return
	}

	depth := e.store.Len()
	switch depth {
	case 0:
		return
	case 1:
		nav.Pop(nil)
	default:
		e.removeTracked(nav)
	}
	e.emit(ctx, EventBulk, observability.LevelVerbose, map[string]any{"op": "pop_all", "routes": depth})
}

// RemoveAll detaches every tracked route from the host stack topmost first,
// with no animation. Intended as a hand-off primitive before ceding stack
// control to an external router; the caller is responsible for the host
// stack not being left empty underneath.
func (e *Engine) RemoveAll(ctx context.Context) {
	nav, ok := e.ready(ctx, "remove_all")
	if !ok {
		return
	}
	if n := e.removeTracked(nav); n > 0 {
		e.emit(ctx, EventBulk, observability.LevelVerbose, map[string]any{"op": "remove_all", "routes": n})
	}
}

// ReplaceAll rebuilds the stack as infos. With more than one tracked step
// the existing routes are removed outright before the bulk push; with at
// most one, the first destination is pushed while trimming everything
// beneath it, and the remainder follows as a bulk push. Empty input is a
// logged no-op.
func (e *Engine) ReplaceAll(ctx context.Context, infos []RouteInfo) {
	nav, ok := e.ready(ctx, "replace_all")
	if !ok {
		return
	}
	if len(infos) == 0 {
		e.emit(ctx, EventSkip, observability.LevelWarning, map[string]any{"op": "replace_all", "reason": "empty input"})
		return
	}

	if e.store.Len() > 1 {
		e.removeTracked(nav)
		n := e.pushSequence(ctx, nav, "replace_all", infos)
		e.emit(ctx, EventBulk, observability.LevelVerbose, map[string]any{"op": "replace_all", "routes": n})
		return
	}
	e.rebuildFromFirst(ctx, nav, "replace_all", infos)
}

// PushReplacementAll rebuilds like ReplaceAll but preserves earlier steps
// when more than one exists: only the last tracked step is removed before
// the bulk push.
func (e *Engine) PushReplacementAll(ctx context.Context, infos []RouteInfo) {
	nav, ok := e.ready(ctx, "push_replacement_all")
	if !ok {
		return
	}
	if len(infos) == 0 {
		e.emit(ctx, EventSkip, observability.LevelWarning, map[string]any{"op": "push_replacement_all", "reason": "empty input"})
		return
	}

	if e.store.Len() > 1 {
		if last, ok := e.store.Last(); ok && last.Live != nil {
			nav.Remove(last.Live.Token)
		}
		n := e.pushSequence(ctx, nav, "push_replacement_all", infos)
		e.emit(ctx, EventBulk, observability.LevelVerbose, map[string]any{"op": "push_replacement_all", "routes": n})
		return
	}
	e.rebuildFromFirst(ctx, nav, "push_replacement_all", infos)
}

// OpenURL feeds a raw deep-link URL to the resolver. Matched bindings run
// their redirect callbacks synchronously; the returned matches describe
// what was found.
func (e *Engine) OpenURL(ctx context.Context, rawURL string) []deeplink.Match {
	return e.resolver.Open(ctx, rawURL)
}

// Launch restores persisted history and establishes the initial stack. A
// restored route list is filtered against the route table; when anything
// valid survives it wins over defaults. The launched flag opens before the
// stack is rebuilt so the resulting reconciliation events are eligible for
// immediate persistence, then the interval timer starts. Every failure in
// the sequence is logged and absorbed.
func (e *Engine) Launch(ctx context.Context, defaults []RouteInfo) {
	infos := defaults
	restored := false

	if records, ok := e.sched.Restore(ctx); ok {
		valid := make([]RouteInfo, 0, len(records))
		for _, record := range records {
			if _, known := e.table.Lookup(record.Path); !known {
				e.emit(ctx, EventLaunch, observability.LevelWarning,
					map[string]any{"path": record.Path, "reason": "unregistered route"})
				continue
			}
			valid = append(valid, RouteInfo{Path: record.Path, Extra: record.Extra})
		}
		if len(valid) > 0 {
			infos = valid
			restored = true
		}
	}

	e.sched.MarkLaunched()
	e.ReplaceAll(ctx, infos)
	e.sched.Start(ctx)

	e.emit(ctx, EventLaunch, observability.LevelInfo,
		map[string]any{"routes": len(infos), "restored": restored})
}

// Persist takes a snapshot now, regardless of schedule or launch state.
// Failures are logged by the scheduler, never returned.
func (e *Engine) Persist(ctx context.Context) {
	e.sched.Flush(ctx)
}

func (e *Engine) navigator() host.Navigator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nav
}

func (e *Engine) contextAvailable() bool {
	nav := e.navigator()
	return nav != nil && nav.Mounted()
}

// ready returns the navigator when a navigation context is available,
// logging a skipped command otherwise.
func (e *Engine) ready(ctx context.Context, op string) (host.Navigator, bool) {
	nav := e.navigator()
	if nav == nil || !nav.Mounted() {
		e.emit(ctx, EventSkip, observability.LevelWarning,
			map[string]any{"op": op, "reason": "no navigation context"})
		return nil, false
	}
	return nav, true
}

// registered reports whether path is in the route table, logging a skipped
// command when it is not.
func (e *Engine) registered(ctx context.Context, op, path string) bool {
	if _, ok := e.table.Lookup(path); !ok {
		e.emit(ctx, EventSkip, observability.LevelWarning,
			map[string]any{"op": op, "path": path, "reason": "unknown route"})
		return false
	}
	return true
}

// request canonicalizes extra into the navigation state for path. A payload
// that fails canonicalization is dropped with a warning and the navigation
// proceeds with a path-only state.
func (e *Engine) request(ctx context.Context, path string, extra navstate.Extra, transition host.Transition) host.Request {
	st, err := navstate.New(path, extra)
	if err != nil {
		e.emit(ctx, EventSkip, observability.LevelWarning,
			map[string]any{"path": path, "reason": "extra dropped", "error": err.Error()})
		st, _ = navstate.New(path, nil)
	}
	return host.Request{Path: path, State: st, Transition: transition}
}

func (e *Engine) push(ctx context.Context, nav host.Navigator, path string, extra navstate.Extra) {
	if _, err := nav.Push(e.request(ctx, path, extra, host.TransitionDefault)); err != nil {
		e.emit(ctx, EventPush, observability.LevelWarning, map[string]any{"path": path, "error": err.Error()})
		return
	}
	e.emit(ctx, EventPush, observability.LevelVerbose, map[string]any{"path": path})
}

func (e *Engine) replaceTop(ctx context.Context, op, path string, extra navstate.Extra, transition host.Transition) {
	nav, ok := e.ready(ctx, op)
	if !ok {
		return
	}
	if !e.registered(ctx, op, path) {
		return
	}
	if _, err := nav.Replace(e.request(ctx, path, extra, transition)); err != nil {
		e.emit(ctx, EventReplace, observability.LevelWarning,
			map[string]any{"op": op, "path": path, "error": err.Error()})
		return
	}
	e.emit(ctx, EventReplace, observability.LevelVerbose, map[string]any{"op": op, "path": path})
}

// pushSequence pushes the registered members of infos, intermediates
// without entry animation and the final destination with the default push
// transition. Returns how many routes were pushed.
func (e *Engine) pushSequence(ctx context.Context, nav host.Navigator, op string, infos []RouteInfo) int {
	known := e.knownRoutes(ctx, op, infos)
	for i, info := range known {
		transition := host.TransitionNone
		if i == len(known)-1 {
			transition = host.TransitionDefault
		}
		if _, err := nav.Push(e.request(ctx, info.Path, info.Extra, transition)); err != nil {
			e.emit(ctx, EventPush, observability.LevelWarning,
				map[string]any{"op": op, "path": info.Path, "error": err.Error()})
		}
	}
	return len(known)
}

func (e *Engine) knownRoutes(ctx context.Context, op string, infos []RouteInfo) []RouteInfo {
	known := make([]RouteInfo, 0, len(infos))
	for _, info := range infos {
		if e.registered(ctx, op, info.Path) {
			known = append(known, info)
		}
	}
	return known
}

// removeTracked removes every tracked route from the host, topmost first,
// over a snapshot of the store taken before the first removal mutates it.
func (e *Engine) removeTracked(nav host.Navigator) int {
	steps := e.store.Steps()
	removed := 0
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Live == nil {
			continue
		}
		if nav.Remove(steps[i].Live.Token) {
			removed++
		}
	}
	return removed
}

// rebuildFromFirst serves the at-most-one-step branch of the stack rebuild
// commands: the first destination is pushed while trimming every host route
// beneath it, then the remainder follows as a bulk push.
func (e *Engine) rebuildFromFirst(ctx context.Context, nav host.Navigator, op string, infos []RouteInfo) {
	known := e.knownRoutes(ctx, op, infos)
	if len(known) == 0 {
		return
	}

	first, rest := known[0], known[1:]
	transition := host.TransitionDefault
	if len(rest) > 0 {
		transition = host.TransitionNone
	}
	if _, err := nav.PushAndTrim(e.request(ctx, first.Path, first.Extra, transition), -1); err != nil {
		e.emit(ctx, EventReplace, observability.LevelWarning,
			map[string]any{"op": op, "path": first.Path, "error": err.Error()})
		return
	}
	e.pushSequence(ctx, nav, op, rest)
	e.emit(ctx, EventBulk, observability.LevelVerbose, map[string]any{"op": op, "routes": len(known)})
}

// redirect is the default binding callback: navigate to the matched
// template path with the captured parameters as the payload. Path
// parameters win over query parameters on a key collision.
func (e *Engine) redirect(match deeplink.Match) {
	extra := make(navstate.Extra, len(match.PathParams)+len(match.QueryParams))
	for key, value := range match.QueryParams {
		extra[key] = value
	}
	for key, value := range match.PathParams {
		extra[key] = value
	}
	if len(extra) == 0 {
		extra = nil
	}
	e.Navigate(context.Background(), match.Template, extra, false)
}

func (e *Engine) encodeSnapshot() ([]byte, error) {
	return persist.Encode(e.store.Steps())
}

func (e *Engine) emit(ctx context.Context, typ observability.EventType, level observability.Level, fields map[string]any) {
	e.observer.OnEvent(ctx, observability.Event{
		Type:   typ,
		Level:  level,
		Time:   time.Now(),
		Scope:  "engine.Engine",
		Fields: fields,
	})
}
