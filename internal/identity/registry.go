package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	// DatabaseVersion is the persisted layout version, carried through
	// snapshots and export files.
	DatabaseVersion = "1.0"

	// DefaultThreshold is the accept tolerance calibrated for the
	// face_recognition embedding space.
	DefaultThreshold = 0.6
)

// Saver persists registry snapshots. Implementations live in internal/store;
// the registry only requires that an acknowledged mutation is reflected in
// the next saved snapshot. A mutation whose save fails is rolled back, so a
// rejected enrollment is never matchable and never rides into a later save.
type Saver interface {
	Save(ctx context.Context, snap *Snapshot) error
}

// Snapshot is the complete persistable state of a registry. Records are
// ordered by user ID so snapshots are deterministic.
type Snapshot struct {
	Version   string
	Threshold float64
	Created   time.Time
	Records   []*Record
}

// Registry is the in-memory collection of enrolled identities. All exported
// methods are safe for concurrent use; reads run under a shared lock and
// mutations under an exclusive one.
type Registry struct {
	mu        sync.RWMutex
	dimension int
	threshold float64
	created   time.Time
	records   map[string]*Record
	now       func() time.Time
	saver     Saver
}

// RegistryOption configures a registry at construction time.
type RegistryOption func(*Registry)

// WithThreshold overrides the default accept tolerance.
func WithThreshold(threshold float64) RegistryOption {
	return func(r *Registry) {
		if threshold >= 0 {
			r.threshold = threshold
		}
	}
}

// WithClock injects the time source used for enrollment and match
// timestamps. Defaults to time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSaver attaches a persistence collaborator that is invoked after every
// acknowledged mutation.
func WithSaver(s Saver) RegistryOption {
	return func(r *Registry) {
		r.saver = s
	}
}

// NewRegistry creates an empty registry enforcing the given encoding
// dimension for every stored and compared sample.
func NewRegistry(dimension int, opts ...RegistryOption) *Registry {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	r := &Registry{
		dimension: dimension,
		threshold: DefaultThreshold,
		records:   make(map[string]*Record),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.created = r.now()
	return r
}

// FromSnapshot hydrates a registry from a persisted snapshot. Every record is
// validated on load; malformed state fails fast instead of propagating into
// matching logic.
func FromSnapshot(snap *Snapshot, dimension int, opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(dimension, opts...)
	if snap == nil {
		return r, nil
	}
	if snap.Threshold > 0 {
		r.threshold = snap.Threshold
	}
	if !snap.Created.IsZero() {
		r.created = snap.Created
	}
	for _, rec := range snap.Records {
		if err := rec.Validate(r.dimension); err != nil {
			return nil, fmt.Errorf("invalid record %q in snapshot: %w", rec.UserID, err)
		}
		if _, ok := r.records[rec.UserID]; ok {
			return nil, fmt.Errorf("duplicate record %q in snapshot: %w", rec.UserID, ErrDuplicateIdentity)
		}
		r.records[rec.UserID] = rec.Clone()
	}
	return r, nil
}

// Dimension returns the fixed encoding dimension enforced by this registry.
func (r *Registry) Dimension() int { return r.dimension }

// Threshold returns the default accept tolerance.
func (r *Registry) Threshold() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threshold
}

// Count returns the number of enrolled identities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Get returns a copy of the record for the given user ID.
func (r *Registry) Get(userID string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[userID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Insert stores a new record. When overwrite is false and the user ID is
// already enrolled, ErrDuplicateIdentity is returned and nothing changes.
func (r *Registry) Insert(ctx context.Context, rec *Record, overwrite bool) error {
	if err := rec.Validate(r.dimension); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.records[rec.UserID]
	if existed && !overwrite {
		return fmt.Errorf("%w: %q", ErrDuplicateIdentity, rec.UserID)
	}
	r.records[rec.UserID] = rec.Clone()

	if err := r.saveLocked(ctx); err != nil {
		if existed {
			r.records[rec.UserID] = prev
		} else {
			delete(r.records, rec.UserID)
		}
		return err
	}
	return nil
}

// AppendSamples adds validated samples to an existing record without
// resetting its counters. Returns the record's new sample total.
func (r *Registry) AppendSamples(ctx context.Context, userID string, samples []Sample) (int, error) {
	if len(samples) == 0 {
		return 0, ErrInsufficientSamples
	}
	for i := range samples {
		if err := samples[i].Validate(r.dimension); err != nil {
			return 0, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownIdentity, userID)
	}
	prevLen := len(rec.Samples)
	for _, s := range samples {
		cp := s
		cp.Encoding = append([]float64(nil), s.Encoding...)
		rec.Samples = append(rec.Samples, cp)
	}
	rec.SampleCount = len(rec.Samples)

	if err := r.saveLocked(ctx); err != nil {
		rec.Samples = rec.Samples[:prevLen]
		rec.SampleCount = prevLen
		return 0, err
	}
	return rec.SampleCount, nil
}

// RecordSuccessfulMatch updates the matched identity's verification counters.
// Invoked by the caller only after an accepted authentication; the scoring
// path itself never mutates the registry.
func (r *Registry) RecordSuccessfulMatch(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownIdentity, userID)
	}
	prevLast := rec.LastAuthentication
	prevCount := rec.AuthenticationCount
	matched := at
	rec.LastAuthentication = &matched
	rec.AuthenticationCount++

	if err := r.saveLocked(ctx); err != nil {
		rec.LastAuthentication = prevLast
		rec.AuthenticationCount = prevCount
		return err
	}
	return nil
}

// Remove deletes an identity and its samples.
func (r *Registry) Remove(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.records[userID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownIdentity, userID)
	}
	delete(r.records, userID)

	if err := r.saveLocked(ctx); err != nil {
		r.records[userID] = prev
		return err
	}
	return nil
}

// List returns a summary of every enrolled identity, ordered by user ID.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, Summary{
			UserID:      rec.UserID,
			SampleCount: rec.SampleCount,
			EnrolledAt:  rec.EnrolledAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Snapshot returns a deep copy of the full registry state with records
// ordered by user ID.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		Version:   DatabaseVersion,
		Threshold: r.threshold,
		Created:   r.created,
		Records:   make([]*Record, 0, len(r.records)),
	}
	for _, rec := range r.records {
		snap.Records = append(snap.Records, rec.Clone())
	}
	sort.Slice(snap.Records, func(i, j int) bool {
		return snap.Records[i].UserID < snap.Records[j].UserID
	})
	return snap
}

func (r *Registry) saveLocked(ctx context.Context) error {
	if r.saver == nil {
		return nil
	}
	if err := r.saver.Save(ctx, r.snapshotLocked()); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// readView returns the live records under a shared lock together with the
// release function. Used by the matching engine so scoring never copies the
// sample vectors.
func (r *Registry) readView() (map[string]*Record, func()) {
	r.mu.RLock()
	return r.records, r.mu.RUnlock
}
