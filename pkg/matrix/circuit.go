package matrix

import (
	"fmt"
	"io"

	"github.com/edp1096/toy-mna/pkg/simerr"
)

type CircuitMatrix struct {
	Size      int
	nodeCount int
	auxCount  int
	a         [][]float64 // 1-based, row/col 0 is ground
	rhs       []float64
	baseA     [][]float64 // linear part, restored every iteration
	baseRHS   []float64
	solution  Solution
	solver    Solver
	err       error
}

var _ Assembler = (*CircuitMatrix)(nil)

func NewMatrix(nodeCount, auxCount int, solver Solver) *CircuitMatrix {
	if solver == nil {
		solver = NewDenseSolver(DefaultPivotTolerance)
	}
	m := &CircuitMatrix{solver: solver}
	m.BeginAssembly(nodeCount, auxCount)
	return m
}

// BeginAssembly sizes the system for nodeCount non-ground nodes plus auxCount
// branch unknowns and zeroes it.
func (m *CircuitMatrix) BeginAssembly(nodeCount, auxCount int) {
	size := nodeCount + auxCount
	if size != m.Size || m.a == nil {
		m.a = newSquare(size + 1)
		m.baseA = newSquare(size + 1)
		m.rhs = make([]float64, size+1)
		m.baseRHS = make([]float64, size+1)
		m.solution = make(Solution, size+1)
	}
	m.Size = size
	m.nodeCount = nodeCount
	m.auxCount = auxCount
	m.Clear()
}

func newSquare(n int) [][]float64 {
	rows := make([][]float64, n)
	backing := make([]float64, n*n)
	for i := range rows {
		rows[i] = backing[i*n : (i+1)*n]
	}
	return rows
}

func (m *CircuitMatrix) NodeCount() int { return m.nodeCount }
func (m *CircuitMatrix) AuxCount() int  { return m.auxCount }

func (m *CircuitMatrix) Clear() {
	for i := range m.a {
		clear(m.a[i])
	}
	clear(m.rhs)
	m.err = nil
}

// Commit snapshots the current contents as the linear baseline.
func (m *CircuitMatrix) Commit() {
	for i := range m.a {
		copy(m.baseA[i], m.a[i])
	}
	copy(m.baseRHS, m.rhs)
}

// Restore resets the system to the last committed baseline.
func (m *CircuitMatrix) Restore() {
	for i := range m.a {
		copy(m.a[i], m.baseA[i])
	}
	copy(m.rhs, m.baseRHS)
}

// Err returns the first topology violation recorded since the last Clear.
func (m *CircuitMatrix) Err() error { return m.err }

func (m *CircuitMatrix) checkIndex(i int) bool {
	if i < 0 || i > m.Size {
		if m.err == nil {
			m.err = &simerr.TopologyError{Node: i, Reason: fmt.Sprintf("index outside system of size %d", m.Size)}
		}
		return false
	}
	return true
}

func (m *CircuitMatrix) addElement(i, j int, value float64) {
	if i == 0 || j == 0 {
		return
	}
	m.a[i][j] += value
}

func (m *CircuitMatrix) addRHS(i int, value float64) {
	if i == 0 {
		return
	}
	m.rhs[i] += value
}

func (m *CircuitMatrix) AddConductance(i, j int, g float64) {
	if !m.checkIndex(i) || !m.checkIndex(j) {
		return
	}
	m.addElement(i, i, g)
	m.addElement(j, j, g)
	m.addElement(i, j, -g)
	m.addElement(j, i, -g)
}

func (m *CircuitMatrix) AddCurrentSource(i, j int, value float64) {
	if !m.checkIndex(i) || !m.checkIndex(j) {
		return
	}
	m.addRHS(i, -value)
	m.addRHS(j, value)
}

func (m *CircuitMatrix) AddTransconductance(i, j, k, l int, g float64) {
	if !m.checkIndex(i) || !m.checkIndex(j) || !m.checkIndex(k) || !m.checkIndex(l) {
		return
	}
	m.addElement(i, k, g)
	m.addElement(i, l, -g)
	m.addElement(j, k, -g)
	m.addElement(j, l, g)
}

func (m *CircuitMatrix) AddVoltageConstraint(i, j, branch int, value float64) {
	if !m.checkIndex(i) || !m.checkIndex(j) {
		return
	}
	if branch <= m.nodeCount || branch > m.Size {
		if m.err == nil {
			m.err = &simerr.TopologyError{Node: branch, Reason: "branch index outside auxiliary range"}
		}
		return
	}

	// v(i) - v(j) = value
	m.addElement(branch, i, 1)
	m.addElement(i, branch, 1)
	m.addElement(branch, j, -1)
	m.addElement(j, branch, -1)
	m.addRHS(branch, value)
}

func (m *CircuitMatrix) Get(i, j int) float64 {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return 0
	}
	return m.a[i][j]
}

func (m *CircuitMatrix) RHS() []float64 {
	return m.rhs
}

func (m *CircuitMatrix) Solve() error {
	if m.err != nil {
		return m.err
	}
	if m.Size == 0 {
		clear(m.solution)
		return nil
	}

	x, err := m.solver.Solve(m.a, m.rhs, m.Size)
	if err != nil {
		return fmt.Errorf("%s solve: %w", m.solver.Name(), err)
	}
	copy(m.solution, x)
	m.solution[0] = 0
	return nil
}

func (m *CircuitMatrix) Solution() Solution {
	return m.solution
}

func (m *CircuitMatrix) SolverName() string {
	return m.solver.Name()
}

func (m *CircuitMatrix) PrintSystem(w io.Writer) {
	fmt.Fprintf(w, "\nCircuit Equations (%dx%d):\n", m.Size, m.Size)
	fmt.Fprintln(w, "Node equations 1..n, followed by branch equations")

	for i := 1; i <= m.Size; i++ {
		rowHasElements := false
		for j := 1; j <= m.Size; j++ {
			if m.a[i][j] != 0 {
				if !rowHasElements {
					fmt.Fprintf(w, "Equation %d:\n", i)
				}
				fmt.Fprintf(w, "  %+g*x%d ", m.a[i][j], j)
				rowHasElements = true
			}
		}
		if rowHasElements {
			fmt.Fprintf(w, " = %g\n", m.rhs[i])
		}
	}
}

func (m *CircuitMatrix) Destroy() {
	if d, ok := m.solver.(interface{ Destroy() }); ok {
		d.Destroy()
	}
}
