package trapr

import (
	"errors"
	"fmt"
)

// Configuration errors detected by Problem.Validate. A run rejects the
// problem on the root worker and aborts every other worker before any
// partial result is produced.
var (
	ErrNonPositiveSubintervals = errors.New("subinterval count must be positive")
	ErrInvertedBounds          = errors.New("upper bound is less than lower bound")
)

// Problem describes the global integration task. It is immutable once
// broadcast: every worker holds an identical copy for the whole run.
type Problem struct {
	Lower        float64 `json:"lower"`
	Upper        float64 `json:"upper"`
	Subintervals int64   `json:"subintervals"`
}

// Validate reports whether the problem is well formed. A zero-width
// interval (Lower == Upper) is legal and integrates to zero.
func (p Problem) Validate() error {
	if p.Subintervals <= 0 {
		return fmt.Errorf("%w: got %d", ErrNonPositiveSubintervals, p.Subintervals)
	}
	if p.Upper < p.Lower {
		return fmt.Errorf("%w: [%f, %f]", ErrInvertedBounds, p.Lower, p.Upper)
	}
	return nil
}

// Step returns the global trapezoid base length h. It is computed from the
// global parameters only, so it is identical on every worker.
func (p Problem) Step() float64 {
	return (p.Upper - p.Lower) / float64(p.Subintervals)
}

// IsConfigurationError reports whether err stems from a malformed Problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrNonPositiveSubintervals) || errors.Is(err, ErrInvertedBounds)
}
