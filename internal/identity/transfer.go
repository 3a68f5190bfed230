package identity

import (
	"context"
	"fmt"
	"time"
)

// ExportRecord is the portable single-identity transfer format. JSON field
// names match the original export file layout and must not change.
type ExportRecord struct {
	UserID     string    `json:"user_id"`
	UserData   *Record   `json:"user_data"`
	ExportedAt time.Time `json:"exported_at"`
	Version    string    `json:"version"`
}

// Export wraps the identity's full record (sample history and counters) for
// transfer to another registry.
func (r *Registry) Export(userID string) (*ExportRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdentity, userID)
	}
	return &ExportRecord{
		UserID:     userID,
		UserData:   rec.Clone(),
		ExportedAt: r.now(),
		Version:    DatabaseVersion,
	}, nil
}

// Import installs an exported record. When the identity already exists it is
// replaced atomically if overwrite is set, otherwise ErrDuplicateIdentity is
// returned. A replaced record's samples are fully substituted, never merged.
func (r *Registry) Import(ctx context.Context, exp *ExportRecord, overwrite bool) (*Record, error) {
	if exp == nil || exp.UserData == nil {
		return nil, fmt.Errorf("export record has no user data: %w", ErrInsufficientSamples)
	}
	rec := exp.UserData.Clone()
	if rec.UserID == "" {
		rec.UserID = exp.UserID
	}
	if exp.UserID != "" && rec.UserID != exp.UserID {
		return nil, fmt.Errorf("export user_id %q does not match record user_id %q", exp.UserID, rec.UserID)
	}
	if err := rec.Validate(r.dimension); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.records[rec.UserID]
	if existed && !overwrite {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateIdentity, rec.UserID)
	}
	r.records[rec.UserID] = rec

	if err := r.saveLocked(ctx); err != nil {
		if existed {
			r.records[rec.UserID] = prev
		} else {
			delete(r.records, rec.UserID)
		}
		return nil, err
	}
	return rec.Clone(), nil
}
