package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrExpertNotFound = fmt.Errorf("%w: expert", ErrNotFound)
	ErrItemNotFound   = fmt.Errorf("%w: item", ErrNotFound)
	ErrCaseNotFound   = fmt.Errorf("%w: case", ErrNotFound)

	// Input errors
	ErrInvalidLevels     = errors.New("quantile levels must be 3 or 5 strictly increasing probabilities in (0,1)")
	ErrMalformedEstimate = errors.New("malformed quantile estimate")
	ErrInsufficientData  = errors.New("insufficient data for analysis")
	ErrInvalidSample     = errors.New("invalid PIT sample")
	ErrInvalidSettings   = errors.New("invalid scoring settings")

	// Numerical errors
	ErrNonFiniteScore    = errors.New("non-finite calibration score")
	ErrNonFiniteWeight   = errors.New("non-finite expert weight")
	ErrDegenerateWeights = errors.New("all expert weights are zero")
	ErrInfeasibleFit     = errors.New("no feasible distribution fit")

	// Aggregation errors
	ErrRosterInvariant = errors.New("roster length invariant violated")
	ErrInvalidState    = errors.New("invalid aggregation state transition")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewRosterError(got, real, synthetic int) error {
	return fmt.Errorf("%w: roster has %d experts, want %d real + %d synthetic", ErrRosterInvariant, got, real, synthetic)
}

func NewNonFiniteScoreError(method string, score float64) error {
	return fmt.Errorf("%w: %s produced %v", ErrNonFiniteScore, method, score)
}

func NewMalformedEstimateError(expert ExpertID, item ItemID, reason string) error {
	return fmt.Errorf("%w: expert %s item %s: %s", ErrMalformedEstimate, expert, item, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFatal reports whether err must abort the current case's pass.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRosterInvariant) ||
		errors.Is(err, ErrNonFiniteScore) ||
		errors.Is(err, ErrNonFiniteWeight) ||
		errors.Is(err, ErrDegenerateWeights) ||
		errors.Is(err, ErrInvalidSample) ||
		errors.Is(err, ErrInvalidState)
}

// IsInputError reports whether err stems from malformed input rather than computation.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidLevels) ||
		errors.Is(err, ErrMalformedEstimate) ||
		errors.Is(err, ErrInvalidSettings)
}
