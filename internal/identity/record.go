package identity

import (
	"time"
)

// Record holds one enrolled user's face samples and lifecycle counters.
// JSON field names match the persisted database layout and must not change.
type Record struct {
	UserID              string     `json:"user_id"`
	Samples             []Sample   `json:"face_encodings"`
	EnrolledAt          time.Time  `json:"enrollment_date"`
	SampleCount         int        `json:"sample_count"`
	LastAuthentication  *time.Time `json:"last_authentication"`
	AuthenticationCount int        `json:"authentication_count"`
}

// Clone returns a deep copy of the record so callers never share slices with
// the registry's internal state.
func (r *Record) Clone() *Record {
	out := &Record{
		UserID:              r.UserID,
		EnrolledAt:          r.EnrolledAt,
		SampleCount:         r.SampleCount,
		AuthenticationCount: r.AuthenticationCount,
	}
	if r.LastAuthentication != nil {
		at := *r.LastAuthentication
		out.LastAuthentication = &at
	}
	out.Samples = make([]Sample, len(r.Samples))
	for i, s := range r.Samples {
		cp := s
		cp.Encoding = make([]float64, len(s.Encoding))
		copy(cp.Encoding, s.Encoding)
		out.Samples[i] = cp
	}
	return out
}

// Validate checks the record invariants: non-empty user ID, at least one
// sample, and every sample at the given dimension.
func (r *Record) Validate(dimension int) error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if len(r.Samples) == 0 {
		return ErrInsufficientSamples
	}
	for i := range r.Samples {
		if err := r.Samples[i].Validate(dimension); err != nil {
			return err
		}
	}
	return nil
}

// Summary is the read-only projection returned by registry listings.
type Summary struct {
	UserID      string    `json:"user_id"`
	SampleCount int       `json:"sample_count"`
	EnrolledAt  time.Time `json:"enrollment_date"`
}
