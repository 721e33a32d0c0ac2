// Package route maintains the static mapping from path strings to route
// descriptors. The table is rebuilt wholesale on each Register call; the
// engine consults it before issuing any host navigation command.
package route

import (
	"context"
	"sort"
	"sync"

	"github.com/navkit-dev/navkit/core/navstate"
)

// Factory builds the renderable for a route when the host mounts it. The
// engine never invokes factories itself; they ride along on the descriptor
// for the host to call.
type Factory func(ctx context.Context, st *navstate.State) any

// Descriptor pairs a path with its screen factory. Immutable after
// registration; Path is the unique key.
type Descriptor struct {
	Path   string
	Render Factory
}

// Table holds the registered route descriptors. Thread-safe for concurrent
// access. Construct one per engine instance rather than sharing globally so
// tests can run independent tables side by side.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]Descriptor),
	}
}

// Register replaces the entire table with the given descriptors, atomically
// from the point of view of readers. Duplicate paths in the input silently
// overwrite earlier ones (last wins).
func (t *Table) Register(descs []Descriptor) {
	entries := make(map[string]Descriptor, len(descs))
	for _, d := range descs {
		entries[d.Path] = d
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = entries
}

// Lookup retrieves the descriptor registered for path.
// Returns the descriptor and true if found, a zero descriptor and false otherwise.
func (t *Table) Lookup(path string) (Descriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, exists := t.entries[path]
	return d, exists
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Paths returns the registered paths in sorted order.
func (t *Table) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	paths := make([]string, 0, len(t.entries))
	for p := range t.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
