// Package store provides persistence backends for the identity registry.
// Every backend round-trips a registry snapshot without altering vector
// values, sample order, or counters.
package store

import (
	"context"

	"github.com/blackshadow-software/face-auth/internal/identity"
)

// Store loads and saves complete registry snapshots. Implementations must be
// safe for concurrent use; the registry serializes Save calls itself.
type Store interface {
	identity.Saver

	// Load reads the persisted registry state. A missing database is not an
	// error: implementations return an empty snapshot so a fresh process can
	// start with a new registry.
	Load(ctx context.Context) (*identity.Snapshot, error)
}
