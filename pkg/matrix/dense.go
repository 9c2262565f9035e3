package matrix

import (
	"math"

	"github.com/edp1096/toy-mna/pkg/simerr"
)

// DenseSolver is LU-style Gaussian elimination with partial pivoting.
type DenseSolver struct {
	PivotTolerance float64 // relative to the largest entry of the pivot column

	work   [][]float64
	b      []float64
	colMax []float64
}

func NewDenseSolver(pivotTol float64) *DenseSolver {
	if pivotTol <= 0 {
		pivotTol = DefaultPivotTolerance
	}
	return &DenseSolver{PivotTolerance: pivotTol}
}

func (s *DenseSolver) Name() string { return "dense" }

func (s *DenseSolver) Solve(a [][]float64, rhs []float64, size int) (Solution, error) {
	n := size
	if len(s.work) != n {
		s.work = newSquare(n)
		s.b = make([]float64, n)
		s.colMax = make([]float64, n)
	}

	// column scale, so a high impedance node is judged against its own
	// conductances rather than the stiffest branch in the circuit
	clear(s.colMax)
	for i := 0; i < n; i++ {
		copy(s.work[i], a[i+1][1:n+1])
		s.b[i] = rhs[i+1]
		for j, v := range s.work[i] {
			s.colMax[j] = math.Max(s.colMax[j], math.Abs(v))
		}
	}

	w, b := s.work, s.b
	for k := 0; k < n; k++ {
		p := k
		best := math.Abs(w[k][k])
		for i := k + 1; i < n; i++ {
			if v := math.Abs(w[i][k]); v > best {
				best, p = v, i
			}
		}
		if best == 0 || best <= s.PivotTolerance*s.colMax[k] {
			return nil, &simerr.SingularMatrixError{Column: k + 1, Pivot: best}
		}
		if p != k {
			w[k], w[p] = w[p], w[k]
			b[k], b[p] = b[p], b[k]
		}

		pivot := w[k][k]
		for i := k + 1; i < n; i++ {
			f := w[i][k] / pivot
			if f == 0 {
				continue
			}
			w[i][k] = 0
			for j := k + 1; j < n; j++ {
				w[i][j] -= f * w[k][j]
			}
			b[i] -= f * b[k]
		}
	}

	x := make(Solution, n+1)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= w[i][j] * x[j+1]
		}
		x[i+1] = sum / w[i][i]
	}
	return x, nil
}
