// Package simerr holds the error taxonomy shared by the matrix, circuit and
// analysis packages. Drivers match on these with errors.As / errors.Is.
package simerr

import (
	"errors"
	"fmt"
)

var (
	ErrTopology       = errors.New("topology error")
	ErrSingularMatrix = errors.New("singular matrix")
	ErrNonConvergence = errors.New("nonlinear iteration did not converge")
)

// TopologyError reports a malformed or unregistered terminal reference.
type TopologyError struct {
	Device string
	Node   int
	Reason string
}

func (e *TopologyError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("topology error: node %d: %s", e.Node, e.Reason)
	}
	return fmt.Sprintf("topology error: device %s: node %d: %s", e.Device, e.Node, e.Reason)
}

func (e *TopologyError) Is(target error) bool { return target == ErrTopology }

// SingularMatrixError reports that no usable pivot exists in a column of the
// system matrix, typically because a node floats.
type SingularMatrixError struct {
	Column int
	Pivot  float64
	Cause  error
}

func (e *SingularMatrixError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("singular matrix at column %d: %v", e.Column, e.Cause)
	}
	return fmt.Sprintf("singular matrix at column %d (pivot=%g)", e.Column, e.Pivot)
}

func (e *SingularMatrixError) Is(target error) bool { return target == ErrSingularMatrix }

func (e *SingularMatrixError) Unwrap() error { return e.Cause }

// NonConvergenceError reports that the iteration controller gave up.
type NonConvergenceError struct {
	Iterations int
	MaxDelta   float64
	Time       float64
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("failed to converge in %d iterations at t=%g (max delta %g)", e.Iterations, e.Time, e.MaxDelta)
}

func (e *NonConvergenceError) Is(target error) bool { return target == ErrNonConvergence }
