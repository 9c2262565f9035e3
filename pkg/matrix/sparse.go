package matrix

import (
	"errors"
	"math"

	"github.com/edp1096/sparse"
	"github.com/edp1096/toy-mna/pkg/simerr"
)

// SparseSolver delegates factorization to the Sparse 1.3 port. The sparse
// matrix is kept between solves and recreated only when the size changes.
type SparseSolver struct {
	matrix *sparse.Matrix
	size   int
	config *sparse.Configuration
}

func NewSparseSolver() *SparseSolver {
	return &SparseSolver{
		config: &sparse.Configuration{
			Real:                    true,
			Complex:                 false,
			SeparatedComplexVectors: false,
			Expandable:              true,
			Translate:               false,
			ModifiedNodal:           true,
			TiesMultiplier:          5,
			PrinterWidth:            140,
			Annotate:                0,
		},
	}
}

func (s *SparseSolver) Name() string { return "sparse" }

func (s *SparseSolver) Solve(a [][]float64, rhs []float64, size int) (Solution, error) {
	if col := emptyLine(a, size); col > 0 {
		return nil, &simerr.SingularMatrixError{Column: col}
	}

	if s.matrix == nil || s.size != size {
		s.Destroy()
		mat, err := sparse.Create(int64(size), s.config)
		if err != nil {
			return nil, err
		}
		s.matrix = mat
		s.size = size
	}

	s.matrix.Clear()
	for i := 1; i <= size; i++ {
		for j := 1; j <= size; j++ {
			if a[i][j] != 0 {
				s.matrix.GetElement(int64(i), int64(j)).Real += a[i][j]
			}
		}
	}

	if err := s.matrix.Factor(); err != nil {
		return nil, &simerr.SingularMatrixError{Cause: err}
	}

	b := make([]float64, size+1)
	copy(b, rhs)
	x, err := s.matrix.Solve(b)
	if err != nil {
		return nil, &simerr.SingularMatrixError{Cause: err}
	}
	for i := 1; i <= size && i < len(x); i++ {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
			return nil, &simerr.SingularMatrixError{Column: i, Cause: errors.New("non-finite solution")}
		}
	}

	return Solution(x), nil
}

// emptyLine returns the first structurally empty row or column, or 0.
func emptyLine(a [][]float64, size int) int {
	for i := 1; i <= size; i++ {
		rowEmpty, colEmpty := true, true
		for j := 1; j <= size; j++ {
			if a[i][j] != 0 {
				rowEmpty = false
			}
			if a[j][i] != 0 {
				colEmpty = false
			}
		}
		if rowEmpty || colEmpty {
			return i
		}
	}
	return 0
}

func (s *SparseSolver) Destroy() {
	if s.matrix != nil {
		s.matrix.Destroy()
		s.matrix = nil
	}
}
