package identity

import (
	"math"
	"time"
)

// DefaultDimension is the encoding length produced by the dlib/ResNet face
// embedding model the system is calibrated against.
const DefaultDimension = 128

// Sample is a single stored face encoding with its capture provenance.
// JSON field names match the persisted database layout and must not change.
type Sample struct {
	Encoding   []float64 `json:"encoding"`
	CapturedAt time.Time `json:"timestamp"`
	ImagePath  string    `json:"image_path,omitempty"`
	SampleID   string    `json:"sample_id,omitempty"`
}

// ValidateEncoding checks that vec has the expected dimension and only finite
// components. Encodings are stored and compared exactly as received - no
// normalization is applied, so raw Euclidean distance stays meaningful.
func ValidateEncoding(vec []float64, dimension int) error {
	if len(vec) != dimension {
		return &DimensionError{Expected: dimension, Actual: len(vec)}
	}
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &EncodingValueError{Index: i, Value: v}
		}
	}
	return nil
}

// Validate checks the sample's encoding against the registry dimension.
func (s *Sample) Validate(dimension int) error {
	return ValidateEncoding(s.Encoding, dimension)
}

// EuclideanDistance computes the Euclidean distance between two encodings.
// Assumes both vectors have the same length (caller's responsibility).
func EuclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
