package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIdentity is returned when inserting or importing a record
	// whose user ID already exists and overwrite was not requested.
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrUnknownIdentity is returned when an operation references a user ID
	// that is not present in the registry.
	ErrUnknownIdentity = errors.New("identity not found")

	// ErrInsufficientSamples is returned when enrollment ends with fewer
	// accepted samples than the policy minimum.
	ErrInsufficientSamples = errors.New("insufficient valid samples")

	// ErrEmptyUserID is returned when an enrollment or import carries an
	// empty user ID.
	ErrEmptyUserID = errors.New("user ID must not be empty")
)

// DimensionError indicates an encoding whose length disagrees with the
// registry dimension.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("encoding dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// EncodingValueError indicates a non-finite component (NaN or Inf) in an
// encoding vector.
type EncodingValueError struct {
	Index int
	Value float64
}

func (e *EncodingValueError) Error() string {
	return fmt.Sprintf("encoding component %d is not finite: %v", e.Index, e.Value)
}
