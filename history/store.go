// Package history maintains the shadow history of navigation steps mirroring
// the host navigator's live stack. The Store is the single source of truth
// for "where are we"; all mutation flows through the Reconciler in response
// to confirmed host events, never from command code directly.
package history

import (
	"sync"

	"github.com/navkit-dev/navkit/core/navstate"
	"github.com/navkit-dev/navkit/host"
)

// Step is one shadow-tracked entry corresponding to a live host route.
// Live is a non-owning back-reference into the host navigator, valid only
// while that route is mounted; identity checks go through its token.
type Step struct {
	Path     string
	Previous *navstate.State
	Current  navstate.State
	Live     *host.Route
	Prev     *host.Route
}

// Store holds the ordered history steps, oldest first, in host navigator
// depth order. Reads are concurrent-safe; writes are package-private and
// restricted to the Reconciler.
type Store struct {
	mu    sync.RWMutex
	steps []Step
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Len returns the number of tracked steps.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.steps)
}

// Steps returns a defensive copy of the tracked steps, oldest first.
func (s *Store) Steps() []Step {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]Step, len(s.steps))
	copy(copied, s.steps)
	return copied
}

// Last returns the most recent step, or false when the store is empty.
func (s *Store) Last() (Step, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.steps) == 0 {
		return Step{}, false
	}
	return s.steps[len(s.steps)-1], true
}

// FindLast scans from the most recent step backward for the first step whose
// path equals path, returning its index and true, or -1 and false.
func (s *Store) FindLast(path string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.steps) - 1; i >= 0; i-- {
		if s.steps[i].Path == path {
			return i, true
		}
	}
	return -1, false
}

// IndexOfToken returns the index of the step whose live route carries the
// given token, scanning oldest first.
func (s *Store) IndexOfToken(token string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, step := range s.steps {
		if step.Live != nil && step.Live.Token == token {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) at(i int) (Step, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.steps) {
		return Step{}, false
	}
	return s.steps[i], true
}

func (s *Store) append(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
}

func (s *Store) removeLast() (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.steps) == 0 {
		return Step{}, false
	}
	last := s.steps[len(s.steps)-1]
	s.steps = s.steps[:len(s.steps)-1]
	return last, true
}

func (s *Store) replaceAt(i int, step Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.steps) {
		return false
	}
	s.steps[i] = step
	return true
}

func (s *Store) removeAt(i int) (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.steps) {
		return Step{}, false
	}
	removed := s.steps[i]
	s.steps = append(s.steps[:i], s.steps[i+1:]...)
	return removed, true
}

// removeToken removes every step whose live route carries token, returning
// how many were removed. Expected to match at most one.
func (s *Store) removeToken(token string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.steps[:0]
	removed := 0
	for _, step := range s.steps {
		if step.Live != nil && step.Live.Token == token {
			removed++
			continue
		}
		kept = append(kept, step)
	}
	s.steps = kept
	return removed
}

func (s *Store) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.steps)
	s.steps = nil
	return n
}
