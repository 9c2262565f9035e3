package analysis

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/logging"
	"github.com/edp1096/toy-mna/pkg/matrix"
	"github.com/edp1096/toy-mna/pkg/metrics"
	"github.com/edp1096/toy-mna/pkg/netlist"
	"github.com/edp1096/toy-mna/pkg/simerr"
)

func newTestTransient(opts ...Option) *Transient {
	opts = append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
	return NewTransient(0, 1, 1e-5, opts...)
}

func dividerCircuit() *circuit.Circuit {
	ckt := circuit.New("divider")
	ckt.AddDevice(device.NewDCVoltageSource("V1", []string{"1", "0"}, 10))
	ckt.AddDevice(device.NewResistor("R1", []string{"1", "2"}, 1000))
	ckt.AddDevice(device.NewResistor("R2", []string{"2", "0"}, 1000))
	return ckt
}

// motorDiodeCircuit drives a motor directly and a diode through a resistor.
func motorDiodeCircuit() *circuit.Circuit {
	ckt := circuit.New("motor and diode")
	ckt.AddDevice(device.NewDCVoltageSource("V1", []string{"1", "0"}, 5))
	ckt.AddDevice(device.NewResistor("R1", []string{"1", "2"}, 1000))
	ckt.AddDevice(device.NewDiode("D1", []string{"2", "0"}))
	ckt.AddDevice(device.NewMotor("M1", []string{"1", "0"}))
	return ckt
}

// kclResidual is the worst current imbalance over non-ground nodes. Device
// current enters terminal 0 and leaves terminal 1.
func kclResidual(ckt *circuit.Circuit) float64 {
	sums := make([]float64, ckt.GetNumNodes()+1)
	for _, dev := range ckt.GetDevices() {
		nodes := dev.GetNodes()
		if mt, ok := dev.(device.MultiTerminal); ok {
			for i, in := range mt.TerminalCurrents() {
				sums[nodes[i]] += in
			}
			continue
		}
		sums[nodes[0]] += dev.GetCurrent()
		sums[nodes[1]] -= dev.GetCurrent()
	}

	var worst float64
	for _, s := range sums[1:] {
		worst = math.Max(worst, math.Abs(s))
	}
	return worst
}

func TestDividerConvergesInOneIteration(t *testing.T) {
	ckt := dividerCircuit()
	tr := newTestTransient()
	require.NoError(t, tr.Setup(ckt))
	require.NoError(t, tr.Step())

	assert.Equal(t, 1, tr.Iterations())
	assert.InDelta(t, 1e-5, tr.Time(), 1e-18)

	sol := ckt.GetSolution(tr.Solution())
	assert.InDelta(t, 10.0, sol["V(1)"], 1e-12)
	assert.InDelta(t, 5.0, sol["V(2)"], 1e-12)
	assert.InDelta(t, 5e-3, sol["I(R1)"], 1e-15)
	assert.InDelta(t, 5e-3, sol["I(R2)"], 1e-15)
	assert.InDelta(t, -5e-3, sol["I(V1)"], 1e-15)
}

func TestKCLOnResistiveLadder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("node currents sum to zero", prop.ForAll(
		func(series, shunt []float64, v, i float64) bool {
			ckt := circuit.New("ladder")
			ckt.AddDevice(device.NewDCVoltageSource("V1", []string{"n1", "0"}, v))
			ckt.AddDevice(device.NewDCCurrentSource("I1", []string{"0", "n3"}, i))
			names := []string{"n1", "n2", "n3", "n4"}
			for k := range series {
				ckt.AddDevice(device.NewResistor("RS"+names[k], []string{names[k], names[k+1]}, series[k]))
				ckt.AddDevice(device.NewResistor("RP"+names[k+1], []string{names[k+1], "0"}, shunt[k]))
			}

			tr := newTestTransient()
			if err := tr.Setup(ckt); err != nil {
				return false
			}
			if err := tr.Step(); err != nil {
				return false
			}
			return kclResidual(ckt) < 1e-9
		},
		gen.SliceOfN(3, gen.Float64Range(1, 1e4)),
		gen.SliceOfN(3, gen.Float64Range(1, 1e4)),
		gen.Float64Range(-10, 10),
		gen.Float64Range(-0.01, 0.01),
	))

	properties.TestingRun(t)
}

func TestKCLWithDynamicDevices(t *testing.T) {
	ckt := motorDiodeCircuit()
	ckt.AddDevice(device.NewCapacitor("C1", []string{"2", "0"}, 1e-6))
	ckt.AddDevice(device.NewInductor("L1", []string{"1", "3"}, 1e-3))
	ckt.AddDevice(device.NewResistor("R3", []string{"3", "0"}, 50))

	tr := newTestTransient()
	require.NoError(t, tr.Setup(ckt))
	_, err := tr.Run(context.Background(), 200)
	require.NoError(t, err)

	// the diode current is only consistent with its neighbours to the
	// iteration tolerance
	assert.Less(t, kclResidual(ckt), 1e-6)
}

func TestDeterministicAfterReset(t *testing.T) {
	ckt := motorDiodeCircuit()
	tr := newTestTransient()
	require.NoError(t, tr.Setup(ckt))

	_, err := tr.Run(context.Background(), 300)
	require.NoError(t, err)
	first := cloneResults(tr.GetResults())
	firstRun := tr.RunID()

	tr.Reset()
	assert.Zero(t, tr.Time())
	assert.Len(t, tr.GetResults()["TIME"], 1)
	assert.NotEqual(t, firstRun, tr.RunID())

	_, err = tr.Run(context.Background(), 300)
	require.NoError(t, err)
	assert.Equal(t, first, tr.GetResults())
}

func cloneResults(results map[string][]float64) map[string][]float64 {
	c := make(map[string][]float64, len(results))
	for k, v := range results {
		c[k] = append([]float64(nil), v...)
	}
	return c
}

func TestMotorReachesSteadyState(t *testing.T) {
	if testing.Short() {
		t.Skip("long transient")
	}

	data, err := netlist.Parse("motor spin-up\nV1 1 0 5\nM1 1 0\n.tran 10u 0.5\n.end\n")
	require.NoError(t, err)

	ckt := circuit.New(data.Title)
	require.NoError(t, ckt.SetupDevices(data.Elements))
	dev, ok := ckt.Device("M1")
	require.True(t, ok)
	motor := dev.(*device.Motor)

	tr := newTestTransient()
	require.NoError(t, tr.SetTimeStep(data.TranParam.TStep))
	require.NoError(t, tr.Setup(ckt))

	kt := 1 / (5000 * consts.RADS_PER_RPM)
	noLoad := 5 / kt
	steps := int(math.Round(data.TranParam.TStop / data.TranParam.TStep))

	prev := 0.0
	for i := 0; i < steps; i++ {
		require.NoError(t, tr.Step())
		v := motor.Velocity()
		require.GreaterOrEqual(t, v, prev-1e-9, "velocity fell at step %d", i)
		require.Less(t, v, noLoad)
		prev = v
	}

	want := (kt*5/1 - 500e-6) / (kt*kt/1 + 500e-9)
	assert.InEpsilon(t, want, motor.Velocity(), 1e-6)
	assert.InDelta(t, 5-kt*want, motor.GetCurrent(), 1e-4)
	assert.GreaterOrEqual(t, motor.Position(), 0.0)
	assert.Less(t, motor.Position(), 2*math.Pi)
}

func TestFloatingNodeIsSingular(t *testing.T) {
	cases := map[string][]device.Device{
		"current source": {
			device.NewDCCurrentSource("I1", []string{"1", "2"}, 1e-3),
			device.NewResistor("R1", []string{"1", "0"}, 1000),
		},
		"dangling resistor": {
			device.NewDCVoltageSource("V1", []string{"1", "0"}, 5),
			device.NewResistor("R1", []string{"1", "0"}, 1000),
			device.NewResistor("R2", []string{"1", "2"}, 1000),
		},
	}
	for name, devs := range cases {
		t.Run(name, func(t *testing.T) {
			ckt := circuit.New(name)
			for _, dev := range devs {
				ckt.AddDevice(dev)
			}
			tr := newTestTransient()
			require.NoError(t, tr.Setup(ckt))

			err := tr.Step()
			require.Error(t, err)
			var singular *simerr.SingularMatrixError
			require.True(t, errors.As(err, &singular))
			assert.Equal(t, 2, singular.Column)
			assert.ErrorIs(t, err, simerr.ErrSingularMatrix)
			assert.Zero(t, tr.Time())
		})
	}
}

func TestDiodeNeedsSeveralIterations(t *testing.T) {
	ckt := circuit.New("diode")
	ckt.AddDevice(device.NewDCVoltageSource("V1", []string{"1", "0"}, 5))
	ckt.AddDevice(device.NewResistor("R1", []string{"1", "2"}, 1000))
	ckt.AddDevice(device.NewDiode("D1", []string{"2", "0"}))

	tr := newTestTransient()
	require.NoError(t, tr.Setup(ckt))
	require.NoError(t, tr.Step())

	assert.Greater(t, tr.Iterations(), 1)
	sol := ckt.GetSolution(tr.Solution())
	assert.Greater(t, sol["V(2)"], 0.5)
	assert.Less(t, sol["V(2)"], 0.8)
	assert.InDelta(t, sol["I(R1)"], sol["I(D1)"], 1e-5)
}

func TestCommonEmitterBias(t *testing.T) {
	ckt := circuit.New("common emitter")
	ckt.AddDevice(device.NewDCVoltageSource("VCC", []string{"vcc", "0"}, 5))
	ckt.AddDevice(device.NewResistor("RC", []string{"vcc", "c"}, 1000))
	ckt.AddDevice(device.NewResistor("RB", []string{"vcc", "b"}, 470e3))
	ckt.AddDevice(device.NewBJT("Q1", []string{"c", "b", "0"}))

	tr := newTestTransient()
	require.NoError(t, tr.Setup(ckt))
	require.NoError(t, tr.Step())
	assert.Greater(t, tr.Iterations(), 1)

	sol := ckt.GetSolution(tr.Solution())
	assert.Greater(t, sol["V(b)"], 0.55)
	assert.Less(t, sol["V(b)"], 0.8)
	assert.Greater(t, sol["V(c)"], 3.5)
	assert.Less(t, sol["V(c)"], 4.5)

	dev, ok := ckt.Device("Q1")
	require.True(t, ok)
	q := dev.(*device.Bjt)
	currents := q.TerminalCurrents()
	beta := currents[0] / currents[1]
	assert.Greater(t, beta, 100.0)
	assert.Less(t, beta, 110.0)
	assert.InDelta(t, sol["I(RC)"], currents[0], 1e-9)
	assert.Less(t, kclResidual(ckt), 1e-9)
}

func TestFailedStepKeepsState(t *testing.T) {
	ckt := motorDiodeCircuit()
	ctrl := NewController()
	tr := newTestTransient(WithController(ctrl))
	require.NoError(t, tr.Setup(ckt))
	_, err := tr.Run(context.Background(), 10)
	require.NoError(t, err)

	dev, _ := ckt.Device("M1")
	motor := dev.(*device.Motor)
	diode, _ := ckt.Device("D1")

	velocity, position, current := motor.Velocity(), motor.Position(), motor.GetCurrent()
	vd, id := diode.GetVoltage(), diode.GetCurrent()
	before := tr.Time()
	sol := tr.Solution().Clone()
	samples := len(tr.GetResults()["TIME"])

	require.NoError(t, ckt.SetParameter("V1", 0, 10))
	ctrl.MaxIter = 1
	err = tr.Step()
	require.Error(t, err)
	var nc *simerr.NonConvergenceError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, 1, nc.Iterations)

	assert.Equal(t, before, tr.Time())
	assert.Equal(t, velocity, motor.Velocity())
	assert.Equal(t, position, motor.Position())
	assert.Equal(t, current, motor.GetCurrent())
	assert.Equal(t, vd, diode.GetVoltage())
	assert.Equal(t, id, diode.GetCurrent())
	assert.Equal(t, sol, tr.Solution())
	assert.Len(t, tr.GetResults()["TIME"], samples)

	ctrl.MaxIter = DefaultMaxIter
	require.NoError(t, tr.Step())
	assert.InDelta(t, before+1e-5, tr.Time(), 1e-15)
	assert.NotEqual(t, velocity, motor.Velocity())
}

func TestStepFailureLogNamesDevice(t *testing.T) {
	var buf bytes.Buffer
	ckt := dividerCircuit()
	tr := NewTransient(0, 1, 1e-5, WithLogger(logging.NewJSONLogger(&buf, logging.InfoLevel)))
	require.NoError(t, tr.Setup(ckt))
	assert.Contains(t, buf.String(), `"nonlinear":false`)

	dev, _ := ckt.Device("R2")
	dev.SetNodes([]int{7, 0})
	err := tr.Step()
	require.ErrorIs(t, err, simerr.ErrTopology)
	assert.Contains(t, buf.String(), `"device":"R2"`)
	assert.Contains(t, buf.String(), "transient step failed")
}

func TestEditTakesEffectNextStep(t *testing.T) {
	ckt := dividerCircuit()
	tr := newTestTransient()
	require.NoError(t, tr.Setup(ckt))
	require.NoError(t, tr.Step())

	r2, _ := ckt.Device("R2")
	require.NoError(t, ckt.SetParameter("R2", 0, 3000))
	assert.InDelta(t, 5e-3, r2.GetCurrent(), 1e-15)

	require.NoError(t, tr.Step())
	assert.InDelta(t, 10.0/4000, r2.GetCurrent(), 1e-15)

	assert.Error(t, ckt.SetParameter("R9", 0, 1))
}

func TestRCCharging(t *testing.T) {
	for _, tc := range []struct {
		name   string
		method int
		delta  float64
	}{
		{"backward euler", device.BE, 0.01},
		{"trapezoidal", device.TR, 0.005},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ckt := circuit.New("rc")
			ckt.AddDevice(device.NewDCVoltageSource("V1", []string{"1", "0"}, 1))
			ckt.AddDevice(device.NewResistor("R1", []string{"1", "2"}, 1000))
			ckt.AddDevice(device.NewCapacitor("C1", []string{"2", "0"}, 1e-6))

			tr := newTestTransient(WithMethod(tc.method))
			require.NoError(t, tr.Setup(ckt))
			_, err := tr.Run(context.Background(), 100)
			require.NoError(t, err)

			assert.InDelta(t, 1-math.Exp(-1), tr.Solution().Voltage(2), tc.delta)
			c, _ := ckt.Device("C1")
			r, _ := ckt.Device("R1")
			assert.InDelta(t, r.GetCurrent(), c.GetCurrent(), 1e-12)
		})
	}
}

func TestRLCurrentRise(t *testing.T) {
	ckt := circuit.New("rl")
	ckt.AddDevice(device.NewDCVoltageSource("V1", []string{"1", "0"}, 1))
	ckt.AddDevice(device.NewResistor("R1", []string{"1", "2"}, 1))
	ckt.AddDevice(device.NewInductor("L1", []string{"2", "0"}, 1e-3))

	tr := newTestTransient()
	require.NoError(t, tr.Setup(ckt))
	_, err := tr.Run(context.Background(), 100)
	require.NoError(t, err)

	l, _ := ckt.Device("L1")
	assert.InDelta(t, 1-math.Exp(-1), l.GetCurrent(), 0.01)
}

func TestSparseMatchesDense(t *testing.T) {
	dense := motorDiodeCircuit()
	sparse := motorDiodeCircuit()
	sparse.SetSolver(matrix.NewSparseSolver())
	defer sparse.Destroy()

	trDense := newTestTransient()
	trSparse := newTestTransient()
	require.NoError(t, trDense.Setup(dense))
	require.NoError(t, trSparse.Setup(sparse))

	for i := 0; i < 200; i++ {
		require.NoError(t, trDense.Step())
		require.NoError(t, trSparse.Step())
	}
	for i := 1; i < len(trDense.Solution()); i++ {
		assert.InDelta(t, trDense.Solution()[i], trSparse.Solution()[i], 1e-9)
	}
}

func TestExecuteStopsAtStopTime(t *testing.T) {
	tr := NewTransient(0, 1e-3, 1e-4, WithLogger(logging.NewNopLogger()))
	require.NoError(t, tr.Setup(dividerCircuit()))
	require.NoError(t, tr.Execute())

	times := tr.GetResults()["TIME"]
	assert.Len(t, times, 11)
	assert.InDelta(t, 1e-3, times[len(times)-1], 1e-12)
	assert.Len(t, tr.GetResults()["V(2)"], 11)
}

func TestStartTimeFiltersSamples(t *testing.T) {
	tr := NewTransient(5e-4, 1e-3, 1e-4, WithLogger(logging.NewNopLogger()))
	require.NoError(t, tr.Setup(dividerCircuit()))
	require.NoError(t, tr.Execute())

	times := tr.GetResults()["TIME"]
	assert.GreaterOrEqual(t, len(times), 5)
	for _, tm := range times {
		assert.GreaterOrEqual(t, tm, 5e-4)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	tr := newTestTransient()
	require.NoError(t, tr.Setup(dividerCircuit()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := tr.Run(ctx, 10)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tr.Time())
}

func TestSetTimeStep(t *testing.T) {
	tr := newTestTransient()
	assert.Error(t, tr.SetTimeStep(0))
	assert.Error(t, tr.SetTimeStep(-1e-6))
	require.NoError(t, tr.SetTimeStep(2e-6))
	assert.Equal(t, 2e-6, tr.TimeStep())
}

func TestStepRecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	tr := newTestTransient(WithMetrics(reg))

	ckt := circuit.New("floating")
	ckt.AddDevice(device.NewDCCurrentSource("I1", []string{"1", "2"}, 1e-3))
	ckt.AddDevice(device.NewResistor("R1", []string{"1", "0"}, 1000))
	require.NoError(t, tr.Setup(ckt))
	require.Error(t, tr.Step())

	families, err := reg.GetPrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() != "mna_steps_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetLabel()[0].GetValue() == metrics.StatusSingular {
				found = true
				assert.Equal(t, 1.0, m.GetCounter().GetValue())
			}
		}
	}
	assert.True(t, found)
}

func TestControllerReportsNonConvergence(t *testing.T) {
	ckt := circuit.New("diode")
	ckt.AddDevice(device.NewDCVoltageSource("V1", []string{"1", "0"}, 5))
	ckt.AddDevice(device.NewResistor("R1", []string{"1", "2"}, 1000))
	ckt.AddDevice(device.NewDiode("D1", []string{"2", "0"}))
	require.NoError(t, ckt.Build())

	status := device.NewCircuitStatus()
	status.Time = 3e-6
	status.TimeStep = 1e-6

	ctrl := &Controller{MaxIter: 2, Tolerance: 1e-12}
	_, iters, err := ctrl.Solve(ckt, make(matrix.Solution, ckt.SystemSize()+1), status)
	require.Error(t, err)
	assert.Equal(t, 2, iters)

	var nc *simerr.NonConvergenceError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, 3e-6, nc.Time)
	assert.Greater(t, nc.MaxDelta, 1e-12)
}
