package host

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryOption configures a MemoryNavigator.
type MemoryOption func(*MemoryNavigator)

// WithMounted sets the initial mounted state. Defaults to true.
func WithMounted(mounted bool) MemoryOption {
	return func(n *MemoryNavigator) { n.mounted = mounted }
}

type subscription struct {
	id  int
	obs Observer
}

// MemoryNavigator is an in-process Navigator holding the live stack in a
// slice. Routes are assigned UUIDv7 tokens at creation. Events are delivered
// synchronously in mutation order while the stack lock is held, so observers
// must not call back into the navigator.
type MemoryNavigator struct {
	mu         sync.Mutex
	stack      []*Route
	subs       []subscription
	nextSubID  int
	mounted    bool
	lastResult any
}

// NewMemoryNavigator creates an empty, mounted MemoryNavigator.
func NewMemoryNavigator(opts ...MemoryOption) *MemoryNavigator {
	n := &MemoryNavigator{mounted: true}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func newRoute(req Request) *Route {
	var payload any
	if req.State != nil {
		payload = req.State
	}
	return &Route{
		Token:      uuid.Must(uuid.NewV7()).String(),
		Name:       req.Path,
		Payload:    payload,
		Transition: req.Transition,
	}
}

func (n *MemoryNavigator) emit(ev Event) {
	for _, s := range n.subs {
		s.obs(ev)
	}
}

func (n *MemoryNavigator) top() *Route {
	if len(n.stack) == 0 {
		return nil
	}
	return n.stack[len(n.stack)-1]
}

func (n *MemoryNavigator) Push(req Request) (*Route, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.mounted {
		return nil, ErrNotMounted
	}

	rt := newRoute(req)
	prev := n.top()
	n.stack = append(n.stack, rt)
	n.emit(Event{Kind: KindPushed, Route: rt, Previous: prev})
	return rt, nil
}

func (n *MemoryNavigator) Pop(result any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.mounted || len(n.stack) == 0 {
		return false
	}

	popped := n.stack[len(n.stack)-1]
	n.stack = n.stack[:len(n.stack)-1]
	n.lastResult = result
	n.emit(Event{Kind: KindPopped, Route: popped, Previous: n.top()})
	return true
}

func (n *MemoryNavigator) CanPop() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mounted && len(n.stack) > 1
}

func (n *MemoryNavigator) Replace(req Request) (*Route, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.mounted {
		return nil, ErrNotMounted
	}
	if len(n.stack) == 0 {
		return nil, ErrEmptyStack
	}

	old := n.stack[len(n.stack)-1]
	rt := newRoute(req)
	n.stack[len(n.stack)-1] = rt
	n.emit(Event{Kind: KindReplaced, Route: rt, Previous: old})
	return rt, nil
}

func (n *MemoryNavigator) PushAndTrim(req Request, discard int) (*Route, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.mounted {
		return nil, ErrNotMounted
	}

	beneath := len(n.stack)
	if discard < 0 || discard > beneath {
		discard = beneath
	}

	rt := newRoute(req)
	prev := n.top()
	n.stack = append(n.stack, rt)
	n.emit(Event{Kind: KindPushed, Route: rt, Previous: prev})

	for i := 0; i < discard; i++ {
		idx := len(n.stack) - 2
		victim := n.stack[idx]
		var under *Route
		if idx > 0 {
			under = n.stack[idx-1]
		}
		n.stack = append(n.stack[:idx], n.stack[idx+1:]...)
		n.emit(Event{Kind: KindRemoved, Route: victim, Previous: under})
	}

	return rt, nil
}

func (n *MemoryNavigator) Remove(token string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.mounted {
		return false
	}

	for i := len(n.stack) - 1; i >= 0; i-- {
		if n.stack[i].Token != token {
			continue
		}
		victim := n.stack[i]
		var under *Route
		if i > 0 {
			under = n.stack[i-1]
		}
		n.stack = append(n.stack[:i], n.stack[i+1:]...)
		n.emit(Event{Kind: KindRemoved, Route: victim, Previous: under})
		return true
	}
	return false
}

func (n *MemoryNavigator) Subscribe(obs Observer) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextSubID
	n.nextSubID++
	n.subs = append(n.subs, subscription{id: id, obs: obs})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.subs = slices.DeleteFunc(n.subs, func(s subscription) bool {
			return s.id == id
		})
	}
}

func (n *MemoryNavigator) Mounted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mounted
}

// SetMounted flips the mounted state, simulating the host context appearing
// or disappearing.
func (n *MemoryNavigator) SetMounted(mounted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mounted = mounted
}

// Routes returns a defensive copy of the live stack, bottom first.
func (n *MemoryNavigator) Routes() []*Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.stack)
}

// Depth returns the number of routes on the stack.
func (n *MemoryNavigator) Depth() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.stack)
}

// Top returns the topmost route, or false when the stack is empty.
func (n *MemoryNavigator) Top() (*Route, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) == 0 {
		return nil, false
	}
	return n.stack[len(n.stack)-1], true
}

// LastPopResult returns the result value passed to the most recent Pop.
func (n *MemoryNavigator) LastPopResult() any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastResult
}
