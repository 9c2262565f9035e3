package matrix

import "fmt"

const DefaultPivotTolerance = 1e-12

// Solver factorizes and solves a 1-based system of the given size. Row and
// column 0 of a are ignored.
type Solver interface {
	Solve(a [][]float64, rhs []float64, size int) (Solution, error)
	Name() string
}

func NewSolver(kind string, pivotTol float64) (Solver, error) {
	switch kind {
	case "", "dense":
		return NewDenseSolver(pivotTol), nil
	case "sparse":
		return NewSparseSolver(), nil
	default:
		return nil, fmt.Errorf("unknown solver backend: %s", kind)
	}
}
