// Package persist serializes history snapshots through pluggable stores and
// schedules when snapshots are taken: immediately after each reconciled
// mutation, on a recurring interval, or both, gated behind the launched flag
// so setup-time churn is never persisted.
package persist

import "context"

// Store holds at most one snapshot as raw bytes. Implementations are
// stateless between calls and safe for concurrent use.
type Store interface {
	// Save persists the snapshot, overwriting any previous one.
	Save(ctx context.Context, snapshot []byte) error
	// Load retrieves the current snapshot. Returns ErrNoSnapshot when none
	// has been saved.
	Load(ctx context.Context) ([]byte, error)
}
