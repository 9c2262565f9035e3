package analysis

import (
	"math"

	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/logging"
	"github.com/edp1096/toy-mna/pkg/matrix"
	"github.com/edp1096/toy-mna/pkg/simerr"
)

const (
	DefaultMaxIter   = 100
	DefaultTolerance = 1e-6
)

// Controller runs the per-step Newton loop: the linear baseline is assembled
// once, then dynamic stamps are re-linearized around the latest iterate until
// node voltages settle.
type Controller struct {
	MaxIter   int
	Tolerance float64 // absolute, on node voltages
	Logger    logging.Logger
}

func NewController() *Controller {
	return &Controller{MaxIter: DefaultMaxIter, Tolerance: DefaultTolerance}
}

// Solve returns the converged solution and the iteration count. The first
// iterate is compared against seed. A circuit without nonlinear devices is
// accepted after one solve.
func (c *Controller) Solve(ckt *circuit.Circuit, seed matrix.Solution, status *device.CircuitStatus) (matrix.Solution, int, error) {
	if err := ckt.AssembleLinear(status); err != nil {
		return nil, 0, err
	}

	nodeCount := ckt.GetNumNodes()
	prev := seed
	maxDelta := math.Inf(1)

	for iter := 1; iter <= c.MaxIter; iter++ {
		if err := ckt.StampDynamic(prev, status); err != nil {
			return nil, iter, err
		}
		if err := ckt.Solve(); err != nil {
			return nil, iter, err
		}

		sol := ckt.GetMatrix().Solution().Clone()
		if !ckt.IsNonlinear() {
			return sol, iter, nil
		}

		maxDelta = maxNodeDelta(prev, sol, nodeCount)
		if maxDelta < c.Tolerance {
			return sol, iter, nil
		}
		prev = sol
	}

	if c.Logger != nil {
		c.Logger.Debug("newton iteration did not converge",
			logging.SimTime(status.Time),
			logging.Iterations(c.MaxIter),
			logging.Float64("max_delta", maxDelta))
	}
	return nil, c.MaxIter, &simerr.NonConvergenceError{
		Iterations: c.MaxIter,
		MaxDelta:   maxDelta,
		Time:       status.Time,
	}
}

func maxNodeDelta(a, b matrix.Solution, nodeCount int) float64 {
	var delta float64
	for i := 1; i <= nodeCount; i++ {
		delta = math.Max(delta, math.Abs(a.At(i)-b.At(i)))
	}
	return delta
}
