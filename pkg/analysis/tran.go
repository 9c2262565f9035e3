package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/logging"
	"github.com/edp1096/toy-mna/pkg/matrix"
	"github.com/edp1096/toy-mna/pkg/metrics"
	"github.com/edp1096/toy-mna/pkg/simerr"
)

// Transient advances a circuit with a fixed time step. Step size changes are
// left to the caller through SetTimeStep.
type Transient struct {
	BaseAnalysis
	controller *Controller
	time       float64
	startTime  float64
	stopTime   float64
	timeStep   float64
	method     int     // device.BE or device.TR
	temp       float64 // K

	prevSolution matrix.Solution
	iterations   int

	runID      string
	baseLogger logging.Logger
	logger     logging.Logger
	ownsLogger bool // controller logs through the run logger
	metrics    *metrics.Registry
}

type Option func(*Transient)

func WithController(c *Controller) Option {
	return func(tr *Transient) { tr.controller = c }
}

func WithMethod(method int) Option {
	return func(tr *Transient) { tr.method = method }
}

// WithTemperature sets the circuit temperature in kelvin.
func WithTemperature(kelvin float64) Option {
	return func(tr *Transient) { tr.temp = kelvin }
}

func WithLogger(l logging.Logger) Option {
	return func(tr *Transient) { tr.baseLogger = l }
}

func WithMetrics(r *metrics.Registry) Option {
	return func(tr *Transient) { tr.metrics = r }
}

func NewTransient(tStart, tStop, tStep float64, opts ...Option) *Transient {
	tr := &Transient{
		BaseAnalysis: *NewBaseAnalysis(),
		startTime:    tStart,
		stopTime:     tStop,
		timeStep:     tStep,
		method:       device.BE,
		temp:         consts.REFTEMP,
	}
	for _, opt := range opts {
		opt(tr)
	}

	if tr.controller == nil {
		tr.controller = NewController()
	}
	if tr.baseLogger == nil {
		tr.baseLogger = logging.DefaultLogger()
	}
	tr.ownsLogger = tr.controller.Logger == nil
	tr.newRun()
	return tr
}

func (tr *Transient) newRun() {
	tr.runID = uuid.New().String()
	tr.logger = tr.baseLogger.With(logging.Component("transient"), logging.RunID(tr.runID))
	if tr.ownsLogger {
		tr.controller.Logger = tr.logger
	}
}

func (tr *Transient) Setup(ckt *circuit.Circuit) error {
	if tr.timeStep <= 0 {
		return fmt.Errorf("invalid time step: %g", tr.timeStep)
	}

	tr.Circuit = ckt
	if err := ckt.Build(); err != nil {
		return fmt.Errorf("circuit setup error: %w", err)
	}
	tr.restart()

	if tr.metrics != nil {
		tr.metrics.CircuitNodes.Set(float64(ckt.GetNumNodes()))
	}
	tr.logger.Info("transient setup",
		logging.Int("nodes", ckt.GetNumNodes()),
		logging.Int("unknowns", ckt.SystemSize()),
		logging.TimeStep(tr.timeStep),
		logging.Bool("nonlinear", ckt.IsNonlinear()),
		logging.String("solver", ckt.GetMatrix().SolverName()))
	return nil
}

// restart puts the stepper at t=0 with the rest state as its first sample.
func (tr *Transient) restart() {
	tr.time = 0
	tr.iterations = 0
	tr.prevSolution = make(matrix.Solution, tr.Circuit.SystemSize()+1)
	tr.ClearResults()
	if tr.startTime <= 0 {
		tr.StoreTimeResult(0, tr.Circuit.GetSolution(tr.prevSolution))
	}
}

// Step advances one time step. On failure every device is restored and the
// time is left unchanged, so the caller may retry with a smaller step.
func (tr *Transient) Step() error {
	ckt := tr.Circuit
	if ckt == nil {
		return fmt.Errorf("circuit not set")
	}

	// a rebuild after Setup may have resized the system
	if size := ckt.SystemSize() + 1; len(tr.prevSolution) != size {
		resized := make(matrix.Solution, size)
		copy(resized, tr.prevSolution)
		tr.prevSolution = resized
	}

	dt := tr.timeStep
	status := ckt.Status
	status.Time = tr.time + dt
	status.TimeStep = dt
	status.Method = tr.method
	status.Temp = tr.temp

	start := time.Now()
	ckt.SaveState()
	ckt.AdvanceState(dt, tr.prevSolution)

	sol, iters, err := tr.controller.Solve(ckt, tr.prevSolution, status)
	if err != nil {
		ckt.RestoreState()
		tr.record(stepStatus(err), iters, time.Since(start))
		fields := []logging.Field{
			logging.SimTime(tr.time),
			logging.TimeStep(dt),
			logging.Iterations(iters),
			logging.Error(err),
		}
		var topo *simerr.TopologyError
		if errors.As(err, &topo) && topo.Device != "" {
			fields = append(fields, logging.Device(topo.Device))
		}
		tr.logger.Warn("transient step failed", fields...)
		return fmt.Errorf("step at t=%g: %w", tr.time, err)
	}

	ckt.FinalizeStep(sol)
	tr.prevSolution = sol
	tr.iterations = iters
	tr.time += dt

	if tr.time >= tr.startTime {
		tr.StoreTimeResult(tr.time, ckt.GetSolution(sol))
	}
	tr.record(metrics.StatusOK, iters, time.Since(start))
	return nil
}

func (tr *Transient) record(status string, iterations int, d time.Duration) {
	if tr.metrics != nil {
		tr.metrics.RecordStep(status, iterations, d, tr.time)
	}
}

func stepStatus(err error) string {
	switch {
	case errors.Is(err, simerr.ErrNonConvergence):
		return metrics.StatusNonConvergence
	case errors.Is(err, simerr.ErrSingularMatrix):
		return metrics.StatusSingular
	default:
		return metrics.StatusError
	}
}

// Run takes up to steps steps and returns how many were accepted. The context
// is checked between steps.
func (tr *Transient) Run(ctx context.Context, steps int) (int, error) {
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := tr.Step(); err != nil {
			return i, err
		}
	}
	return steps, nil
}

func (tr *Transient) Execute() error {
	if tr.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	timer := logging.StartTimer(tr.logger, "transient analysis", logging.SimTime(tr.stopTime))
	for tr.time+tr.timeStep/2 < tr.stopTime {
		if err := tr.Step(); err != nil {
			timer.EndError(err)
			return err
		}
	}
	timer.End()
	return nil
}

// Reset returns every device to its rest state and starts a new run.
func (tr *Transient) Reset() {
	if tr.Circuit == nil {
		return
	}
	tr.Circuit.Reset()
	tr.restart()
	tr.newRun()
}

func (tr *Transient) SetTimeStep(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("invalid time step: %g", dt)
	}
	tr.timeStep = dt
	return nil
}

func (tr *Transient) Time() float64             { return tr.time }
func (tr *Transient) TimeStep() float64         { return tr.timeStep }
func (tr *Transient) StopTime() float64         { return tr.stopTime }
func (tr *Transient) Solution() matrix.Solution { return tr.prevSolution }
func (tr *Transient) Iterations() int           { return tr.iterations }
func (tr *Transient) RunID() string             { return tr.runID }
func (tr *Transient) Controller() *Controller   { return tr.controller }
