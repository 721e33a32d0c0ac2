package history

import (
	"context"
	"time"

	"github.com/navkit-dev/navkit/core/navstate"
	"github.com/navkit-dev/navkit/host"
	"github.com/navkit-dev/navkit/observability"
)

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithObserver overrides the default NoOpObserver.
func WithObserver(obs observability.Observer) ReconcilerOption {
	return func(r *Reconciler) { r.observer = obs }
}

// WithMutationHook sets a hook invoked after every applied store mutation.
// The persistence scheduler attaches its immediate-persist trigger here.
func WithMutationHook(hook func(ctx context.Context)) ReconcilerOption {
	return func(r *Reconciler) { r.onMutate = hook }
}

// Reconciler consumes host navigator lifecycle events and applies them to
// the Store. It is the store's only writer. The host navigator is the
// authority on visual stack order: the reconciler never reorders steps, it
// only appends, removes, or replaces in response to confirmed events, which
// avoids races between an issued command and the animation that eventually
// fires the corresponding event.
type Reconciler struct {
	store    *Store
	observer observability.Observer
	onMutate func(ctx context.Context)
}

// NewReconciler creates a Reconciler writing to store.
func NewReconciler(store *Store, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:    store,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes the reconciler to nav's event stream. The returned
// cancel detaches it.
func (r *Reconciler) Attach(nav host.Navigator) (cancel func()) {
	return nav.Subscribe(r.Apply)
}

// Apply dispatches a single host event to the matching handler. Events must
// arrive in stack-mutation order; the host's serialized delivery guarantees
// a given event is fully applied, including the mutation hook, before the
// next one arrives.
func (r *Reconciler) Apply(ev host.Event) {
	if ev.Route == nil {
		return
	}

	ctx := context.Background()
	switch ev.Kind {
	case host.KindPushed:
		r.onPushed(ctx, ev)
	case host.KindPopped:
		r.onPopped(ctx, ev)
	case host.KindReplaced:
		r.onReplaced(ctx, ev)
	case host.KindRemoved:
		r.onRemoved(ctx, ev)
	}
}

// onPushed appends a step for a recognized push. A push whose payload is not
// engine-issued means the host stack was mutated by some other navigation
// mechanism; index correspondence can no longer be trusted, so the whole
// store is cleared.
func (r *Reconciler) onPushed(ctx context.Context, ev host.Event) {
	st, ok := navstate.FromPayload(ev.Route.Payload)
	if !ok {
		dropped := r.store.clear()
		r.observer.OnEvent(ctx, observability.Event{
			Type:  EventClear,
			Level: observability.LevelWarning,
			Time:  time.Now(),
			Scope: "history.Reconciler",
			Fields: map[string]any{
				"path":    ev.Route.Name,
				"dropped": dropped,
			},
		})
		r.mutated(ctx)
		return
	}

	var prev *navstate.State
	if last, ok := r.store.Last(); ok {
		cur := last.Current
		prev = &cur
	}

	r.store.append(Step{
		Path:     ev.Route.Name,
		Previous: prev,
		Current:  *st,
		Live:     ev.Route,
		Prev:     ev.Previous,
	})

	r.observer.OnEvent(ctx, observability.Event{
		Type:  EventPush,
		Level: observability.LevelVerbose,
		Time:  time.Now(),
		Scope: "history.Reconciler",
		Fields: map[string]any{
			"path":  ev.Route.Name,
			"depth": r.store.Len(),
		},
	})
	r.mutated(ctx)
}

// onPopped removes the tail step. Pop always removes the last step with no
// identity check against the popped route; routes with an empty name are not
// tracked and are ignored outright.
func (r *Reconciler) onPopped(ctx context.Context, ev host.Event) {
	if ev.Route.Name == "" {
		return
	}

	step, removed := r.store.removeLast()

	fields := map[string]any{
		"removed": removed,
		"depth":   r.store.Len(),
	}
	if removed {
		fields["path"] = step.Path
	}
	r.observer.OnEvent(ctx, observability.Event{
		Type:   EventPop,
		Level:  observability.LevelVerbose,
		Time:   time.Now(),
		Scope:  "history.Reconciler",
		Fields: fields,
	})
	if removed {
		r.mutated(ctx)
	}
}

// onReplaced swaps the step tracking the replaced route in place, preserving
// its previous-state linkage. A replacement without recognized state removes
// the step instead; a replace of an untracked route is a no-op.
func (r *Reconciler) onReplaced(ctx context.Context, ev host.Event) {
	if ev.Previous == nil {
		return
	}

	idx, found := r.store.IndexOfToken(ev.Previous.Token)
	if !found {
		return
	}

	old, _ := r.store.at(idx)
	if st, ok := navstate.FromPayload(ev.Route.Payload); ok {
		r.store.replaceAt(idx, Step{
			Path:     ev.Route.Name,
			Previous: old.Previous,
			Current:  *st,
			Live:     ev.Route,
			Prev:     old.Prev,
		})
		r.observer.OnEvent(ctx, observability.Event{
			Type:  EventReplace,
			Level: observability.LevelVerbose,
			Time:  time.Now(),
			Scope: "history.Reconciler",
			Fields: map[string]any{
				"index": idx,
				"from":  old.Path,
				"to":    ev.Route.Name,
			},
		})
	} else {
		r.store.removeAt(idx)
		r.observer.OnEvent(ctx, observability.Event{
			Type:  EventReplace,
			Level: observability.LevelWarning,
			Time:  time.Now(),
			Scope: "history.Reconciler",
			Fields: map[string]any{
				"index":      idx,
				"from":       old.Path,
				"recognized": false,
			},
		})
	}
	r.mutated(ctx)
}

// onRemoved deletes every step tracking the removed route. The token is
// expected to match at most one step.
func (r *Reconciler) onRemoved(ctx context.Context, ev host.Event) {
	n := r.store.removeToken(ev.Route.Token)

	r.observer.OnEvent(ctx, observability.Event{
		Type:  EventRemove,
		Level: observability.LevelVerbose,
		Time:  time.Now(),
		Scope: "history.Reconciler",
		Fields: map[string]any{
			"path":    ev.Route.Name,
			"removed": n,
			"depth":   r.store.Len(),
		},
	})
	if n > 0 {
		r.mutated(ctx)
	}
}

func (r *Reconciler) mutated(ctx context.Context) {
	if r.onMutate != nil {
		r.onMutate(ctx)
	}
}
