// Package extract turns face images into encoding vectors using an
// external face encoding server.
package extract

import (
	"context"
	"errors"
)

// ErrNoFace is returned when no face could be located in the image.
var ErrNoFace = errors.New("no face found in image")

// Face is a single detected face with its encoding vector.
type Face struct {
	FaceIndex int       `json:"face_index"`
	Encoding  []float64 `json:"encoding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// Extractor computes face encodings from raw image bytes.
type Extractor interface {
	// ExtractFaces returns one entry per detected face, in detection order.
	// Returns ErrNoFace when the image contains no detectable face.
	ExtractFaces(ctx context.Context, imageData []byte) ([]Face, error)
}
