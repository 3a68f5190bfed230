package identity

import (
	"context"
	"fmt"
	"time"
)

// DefaultMinSamples is the enrollment policy default: a single valid sample
// is enough to enroll.
const DefaultMinSamples = 1

// EnrollPolicy controls how many validated samples an enrollment needs to
// succeed. Samples that fail validation are dropped and counted, they never
// abort the batch on their own.
type EnrollPolicy struct {
	MinSamples int
}

// Enroller turns a sequence of candidate samples into a validated record.
type Enroller struct {
	dimension int
	policy    EnrollPolicy
	now       func() time.Time
}

// NewEnroller creates an enrollment pipeline for the given encoding
// dimension. A zero policy minimum falls back to DefaultMinSamples.
func NewEnroller(dimension int, policy EnrollPolicy) *Enroller {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if policy.MinSamples <= 0 {
		policy.MinSamples = DefaultMinSamples
	}
	return &Enroller{
		dimension: dimension,
		policy:    policy,
		now:       time.Now,
	}
}

// WithClock injects the time source used for the enrollment timestamp.
func (e *Enroller) WithClock(now func() time.Time) *Enroller {
	if now != nil {
		e.now = now
	}
	return e
}

// Build collects the candidates that pass validation, in the order received,
// and constructs a fresh record. It returns the number of dropped candidates
// alongside the record. Fails with ErrInsufficientSamples when fewer than the
// policy minimum survive.
func (e *Enroller) Build(userID string, candidates []Sample) (*Record, int, error) {
	if userID == "" {
		return nil, 0, ErrEmptyUserID
	}

	accepted := make([]Sample, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		if err := c.Validate(e.dimension); err != nil {
			dropped++
			continue
		}
		cp := c
		cp.Encoding = append([]float64(nil), c.Encoding...)
		if cp.CapturedAt.IsZero() {
			cp.CapturedAt = e.now()
		}
		accepted = append(accepted, cp)
	}

	if len(accepted) < e.policy.MinSamples {
		return nil, dropped, fmt.Errorf("%w: accepted %d of %d, need %d",
			ErrInsufficientSamples, len(accepted), len(candidates), e.policy.MinSamples)
	}

	return &Record{
		UserID:      userID,
		Samples:     accepted,
		EnrolledAt:  e.now(),
		SampleCount: len(accepted),
	}, dropped, nil
}

// Enroll runs Build and inserts the resulting record into the registry.
func (e *Enroller) Enroll(ctx context.Context, reg *Registry, userID string, candidates []Sample, overwrite bool) (*Record, int, error) {
	rec, dropped, err := e.Build(userID, candidates)
	if err != nil {
		return nil, dropped, err
	}
	if err := reg.Insert(ctx, rec, overwrite); err != nil {
		return nil, dropped, err
	}
	return rec, dropped, nil
}

// Append adds the valid candidates to an already enrolled identity, keeping
// its counters. Returns the accepted and dropped counts and the identity's
// new sample total.
func (e *Enroller) Append(ctx context.Context, reg *Registry, userID string, candidates []Sample) (int, int, int, error) {
	accepted := make([]Sample, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		if err := c.Validate(e.dimension); err != nil {
			dropped++
			continue
		}
		cp := c
		if cp.CapturedAt.IsZero() {
			cp.CapturedAt = e.now()
		}
		accepted = append(accepted, cp)
	}
	if len(accepted) == 0 {
		return 0, dropped, 0, fmt.Errorf("%w: no candidate passed validation", ErrInsufficientSamples)
	}
	total, err := reg.AppendSamples(ctx, userID, accepted)
	if err != nil {
		return 0, dropped, 0, err
	}
	return len(accepted), dropped, total, nil
}
