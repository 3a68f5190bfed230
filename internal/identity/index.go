package identity

import (
	"errors"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// hnswMaxNeighbors is the HNSW graph connectivity (M parameter).
const hnswMaxNeighbors = 16

type sampleRef struct {
	userID   string
	sampleID string
	encoding []float64
}

// SampleMatch is one approximate nearest-neighbor hit from the sample index.
type SampleMatch struct {
	UserID   string  `json:"user_id"`
	SampleID string  `json:"sample_id,omitempty"`
	Distance float64 `json:"distance"`
}

// SampleIndex is an in-memory HNSW graph over every stored sample, used for
// fast "who looks like this" listings across large registries. It is an
// approximate accelerator only - the authenticate decision path always scores
// exactly against every identity.
type SampleIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[int64]
	samples map[int64]sampleRef
}

// NewSampleIndex creates an empty sample index.
func NewSampleIndex() *SampleIndex {
	return &SampleIndex{
		samples: make(map[int64]sampleRef),
	}
}

// Rebuild replaces the index contents from a registry snapshot. Snapshot
// records are already ordered by user ID, so rebuilds are deterministic.
func (x *SampleIndex) Rebuild(snap *Snapshot) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.samples = make(map[int64]sampleRef)
	if snap == nil || len(snap.Records) == 0 {
		x.graph = nil
		return
	}

	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	var next int64
	for _, rec := range snap.Records {
		for i := range rec.Samples {
			s := &rec.Samples[i]
			if len(s.Encoding) == 0 {
				continue
			}
			vec := make([]float32, len(s.Encoding))
			for j, v := range s.Encoding {
				vec[j] = float32(v)
			}
			g.Add(hnsw.MakeNode(next, vec))
			x.samples[next] = sampleRef{
				userID:   rec.UserID,
				sampleID: s.SampleID,
				encoding: s.Encoding,
			}
			next++
		}
	}

	x.graph = g
}

// Len returns the number of indexed samples.
func (x *SampleIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.samples)
}

// Search returns the k nearest stored samples to the probe. Distances are
// recomputed exactly from the stored float64 encodings; only the candidate
// selection is approximate.
func (x *SampleIndex) Search(probe []float64, k int) ([]SampleMatch, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return nil, errors.New("sample index not built")
	}

	query := make([]float32, len(probe))
	for i, v := range probe {
		query[i] = float32(v)
	}
	neighbors := x.graph.Search(query, k)

	out := make([]SampleMatch, 0, len(neighbors))
	for _, n := range neighbors {
		ref, ok := x.samples[n.Key]
		if !ok {
			continue
		}
		out = append(out, SampleMatch{
			UserID:   ref.userID,
			SampleID: ref.sampleID,
			Distance: EuclideanDistance(probe, ref.encoding),
		})
	}
	// Order by the exact distances, not the graph's approximate ranking.
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}
