package identity

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"
)

// DefaultWeights is the calibrated score blend: the closest sample dominates,
// the sample average keeps outlier enrollments in check. The accept tolerance
// default is tuned against these constants.
var DefaultWeights = Weights{Min: 0.7, Mean: 0.3}

// Weights blends the minimum and mean probe-to-sample distances into one
// identity score.
type Weights struct {
	Min  float64
	Mean float64
}

// CandidateScore is the per-identity scoring breakdown.
type CandidateScore struct {
	UserID       string  `json:"user_id"`
	MinDistance  float64 `json:"min_distance"`
	MeanDistance float64 `json:"mean_distance"`
	Score        float64 `json:"score"`
}

// MatchResult is the outcome of one authentication attempt. A probe that
// matches nobody is a normal result with Accepted=false, never an error.
type MatchResult struct {
	MatchedUserID string           // empty when the registry is empty
	Accepted      bool
	Score         float64
	MinDistance   float64
	MeanDistance  float64
	Confidence    float64
	Threshold     float64
	Candidates    []CandidateScore // every identity's breakdown, best first
	Elapsed       time.Duration
}

// Matcher scores a probe encoding against a registry and renders the
// accept/reject decision. It is read-only and safe for concurrent use.
type Matcher struct {
	weights         Weights
	parallelism     int
	confidenceFloor float64
}

// MatcherOption configures a matcher.
type MatcherOption func(*Matcher)

// WithWeights overrides the score blend. Intended for re-calibration against
// a different embedding model, not for per-call tuning.
func WithWeights(w Weights) MatcherOption {
	return func(m *Matcher) {
		if w.Min > 0 || w.Mean > 0 {
			m.weights = w
		}
	}
}

// WithConfidenceFloor sets the lowest confidence reported for a scored
// candidate. Zero keeps the natural clamp at 0.
func WithConfidenceFloor(f float64) MatcherOption {
	return func(m *Matcher) {
		if f > 0 {
			m.confidenceFloor = f
		}
	}
}

// WithParallelism caps the number of scoring workers. Defaults to
// runtime.NumCPU; 1 forces sequential evaluation.
func WithParallelism(n int) MatcherOption {
	return func(m *Matcher) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// NewMatcher creates a matcher with the calibrated default weights.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		weights:     DefaultWeights,
		parallelism: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// identities below this count are scored sequentially; goroutine overhead
// dwarfs the distance math on tiny registries.
const parallelCutoff = 16

// Authenticate ranks every enrolled identity by its weighted distance score
// and accepts the best one if its score is within tolerance. A negative
// tolerance selects the registry default. The per-identity scoring runs in
// parallel; the final selection is a deterministic sequential reduce, so the
// result never depends on evaluation order.
func (m *Matcher) Authenticate(ctx context.Context, reg *Registry, probe []float64, tolerance float64) (*MatchResult, error) {
	start := time.Now()

	if err := ValidateEncoding(probe, reg.Dimension()); err != nil {
		return nil, err
	}
	if tolerance < 0 {
		tolerance = reg.Threshold()
	}

	records, release := reg.readView()
	defer release()

	result := &MatchResult{
		Score:       math.Inf(1),
		MinDistance: math.Inf(1),
		Threshold:   tolerance,
	}

	if len(records) == 0 {
		result.Elapsed = time.Since(start)
		return result, nil
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	scores := make([]CandidateScore, len(ids))
	if err := m.scoreAll(ctx, ids, records, probe, scores); err != nil {
		return nil, err
	}

	// Deterministic reduce: ids are sorted, so strict less-than keeps the
	// lexicographically smaller user on an exact score tie.
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].Score < scores[best].Score {
			best = i
		}
	}

	result.MatchedUserID = scores[best].UserID
	result.Score = scores[best].Score
	result.MinDistance = scores[best].MinDistance
	result.MeanDistance = scores[best].MeanDistance
	result.Accepted = result.Score <= tolerance
	result.Confidence = math.Max(m.confidenceFloor, 1-result.MinDistance)
	result.Candidates = scores
	sort.Slice(result.Candidates, func(i, j int) bool {
		if result.Candidates[i].Score != result.Candidates[j].Score {
			return result.Candidates[i].Score < result.Candidates[j].Score
		}
		return result.Candidates[i].UserID < result.Candidates[j].UserID
	})
	result.Elapsed = time.Since(start)

	return result, nil
}

func (m *Matcher) scoreAll(ctx context.Context, ids []string, records map[string]*Record, probe []float64, scores []CandidateScore) error {
	if m.parallelism <= 1 || len(ids) < parallelCutoff {
		for i, id := range ids {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("authentication cancelled: %w", err)
			}
			scores[i] = m.scoreIdentity(probe, records[id])
		}
		return nil
	}

	workers := m.parallelism
	if workers > len(ids) {
		workers = len(ids)
	}

	var wg sync.WaitGroup
	work := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				scores[i] = m.scoreIdentity(probe, records[ids[i]])
			}
		}()
	}

	var cancelled error
feed:
	for i := range ids {
		select {
		case work <- i:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(work)
	wg.Wait()

	if cancelled != nil {
		return fmt.Errorf("authentication cancelled: %w", cancelled)
	}
	return nil
}

// scoreIdentity computes the probe's distance to every sample of one
// identity and blends min and mean into the final score.
func (m *Matcher) scoreIdentity(probe []float64, rec *Record) CandidateScore {
	minDist := math.Inf(1)
	var sum float64
	for i := range rec.Samples {
		d := EuclideanDistance(probe, rec.Samples[i].Encoding)
		sum += d
		if d < minDist {
			minDist = d
		}
	}
	mean := sum / float64(len(rec.Samples))
	return CandidateScore{
		UserID:       rec.UserID,
		MinDistance:  minDist,
		MeanDistance: mean,
		Score:        m.weights.Min*minDist + m.weights.Mean*mean,
	}
}
