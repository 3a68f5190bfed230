package store

import (
	"context"
	"sync"

	"github.com/blackshadow-software/face-auth/internal/identity"
)

// MemoryStore keeps the latest snapshot in memory. Used in tests and for
// ephemeral deployments that never persist.
type MemoryStore struct {
	mu   sync.Mutex
	snap *identity.Snapshot

	// SaveError, when set, is returned by Save. For failure-path tests.
	SaveError error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the last saved snapshot, or an empty one.
func (s *MemoryStore) Load(_ context.Context) (*identity.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return &identity.Snapshot{Version: identity.DatabaseVersion}, nil
	}
	return s.snap, nil
}

// Save retains the snapshot.
func (s *MemoryStore) Save(_ context.Context, snap *identity.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveError != nil {
		return s.SaveError
	}
	s.snap = snap
	return nil
}
