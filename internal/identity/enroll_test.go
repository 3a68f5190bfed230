package identity

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return at }
}

func sample(vec ...float64) Sample {
	return Sample{Encoding: vec}
}

func TestEnrollerBuild(t *testing.T) {
	tests := []struct {
		name        string
		userID      string
		candidates  []Sample
		minSamples  int
		wantSamples int
		wantDropped int
		wantErr     error
	}{
		{
			name:        "all valid",
			userID:      "alice",
			candidates:  []Sample{sample(1, 0, 0), sample(0, 1, 0), sample(0, 0, 1)},
			minSamples:  1,
			wantSamples: 3,
		},
		{
			// one of three samples has the wrong dimension: enrollment
			// still succeeds with the two survivors.
			name:        "wrong dimension dropped",
			userID:      "bob",
			candidates:  []Sample{sample(1, 0, 0), sample(1, 0), sample(0, 0, 1)},
			minSamples:  1,
			wantSamples: 2,
			wantDropped: 1,
		},
		{
			name:        "non-finite dropped",
			userID:      "carol",
			candidates:  []Sample{sample(1, math.NaN(), 0), sample(0, 1, 0)},
			minSamples:  1,
			wantSamples: 1,
			wantDropped: 1,
		},
		{
			name:       "below minimum",
			userID:     "dave",
			candidates: []Sample{sample(1, 0), sample(2, 0)},
			minSamples: 2,
			wantErr:    ErrInsufficientSamples,
		},
		{
			name:       "no candidates",
			userID:     "erin",
			candidates: nil,
			minSamples: 1,
			wantErr:    ErrInsufficientSamples,
		},
		{
			name:       "empty user id",
			userID:     "",
			candidates: []Sample{sample(1, 0, 0)},
			minSamples: 1,
			wantErr:    ErrEmptyUserID,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEnroller(3, EnrollPolicy{MinSamples: tc.minSamples}).WithClock(fixedClock(t))

			rec, dropped, err := e.Build(tc.userID, tc.candidates)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Build() error = %v; want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if dropped != tc.wantDropped {
				t.Errorf("dropped = %d; want %d", dropped, tc.wantDropped)
			}
			if rec.SampleCount != tc.wantSamples || len(rec.Samples) != tc.wantSamples {
				t.Errorf("sample_count = %d (len %d); want %d", rec.SampleCount, len(rec.Samples), tc.wantSamples)
			}
			if rec.AuthenticationCount != 0 || rec.LastAuthentication != nil {
				t.Errorf("fresh record has counters: count=%d last=%v", rec.AuthenticationCount, rec.LastAuthentication)
			}
			if rec.EnrolledAt.IsZero() {
				t.Error("enrollment date not set")
			}
		})
	}
}

func TestEnrollerBuildPreservesInputOrder(t *testing.T) {
	e := NewEnroller(2, EnrollPolicy{})
	candidates := []Sample{
		{Encoding: []float64{1, 0}, SampleID: "first"},
		{Encoding: []float64{0}, SampleID: "bad"},
		{Encoding: []float64{0, 1}, SampleID: "second"},
	}

	rec, _, err := e.Build("alice", candidates)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if rec.Samples[0].SampleID != "first" || rec.Samples[1].SampleID != "second" {
		t.Errorf("sample order = [%s %s]; want [first second]",
			rec.Samples[0].SampleID, rec.Samples[1].SampleID)
	}
}

// Permuting the candidate sequence must not change which samples are
// accepted or the identity's subsequent match score, since min and mean are
// order independent.
func TestEnrollmentOrderIndependentScore(t *testing.T) {
	ctx := context.Background()
	base := []Sample{sample(0.1, 0.2), sample(0.3, 0.1), sample(0.2, 0.4)}
	permuted := []Sample{base[2], base[0], base[1]}
	probe := []float64{0.15, 0.25}

	scoreFor := func(candidates []Sample) float64 {
		reg := NewRegistry(2)
		e := NewEnroller(2, EnrollPolicy{})
		if _, _, err := e.Enroll(ctx, reg, "alice", candidates, false); err != nil {
			t.Fatalf("Enroll() error = %v", err)
		}
		res, err := NewMatcher().Authenticate(ctx, reg, probe, -1)
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		return res.Score
	}

	if a, b := scoreFor(base), scoreFor(permuted); a != b {
		t.Errorf("score depends on enrollment order: %v vs %v", a, b)
	}
}

func TestEnrollerAppend(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(2)
	e := NewEnroller(2, EnrollPolicy{})

	if _, _, err := e.Enroll(ctx, reg, "alice", []Sample{sample(1, 0)}, false); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	accepted, dropped, total, err := e.Append(ctx, reg, "alice", []Sample{sample(0, 1), sample(0)})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if accepted != 1 || dropped != 1 {
		t.Errorf("Append() = (%d accepted, %d dropped); want (1, 1)", accepted, dropped)
	}
	if total != 2 {
		t.Errorf("Append() total = %d; want 2", total)
	}

	rec, ok := reg.Get("alice")
	if !ok {
		t.Fatal("record missing after append")
	}
	if rec.SampleCount != 2 {
		t.Errorf("sample_count = %d; want 2", rec.SampleCount)
	}

	if _, _, _, err := e.Append(ctx, reg, "ghost", []Sample{sample(0, 1)}); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("Append(unknown) error = %v; want ErrUnknownIdentity", err)
	}
	if _, _, _, err := e.Append(ctx, reg, "alice", []Sample{sample(0)}); !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("Append(all invalid) error = %v; want ErrInsufficientSamples", err)
	}
}
