package device

import (
	"github.com/edp1096/toy-mna/pkg/matrix"
	"github.com/edp1096/toy-mna/pkg/util"
)

// Capacitor is modeled by its companion circuit: a conductance geq in
// parallel with a history current source, both rebuilt every step.
type Capacitor struct {
	BaseDevice
	Capacitance float64

	geq    float64 // companion conductance for the pending step
	hist   float64 // history current for the pending step
	method int
}

func NewCapacitor(name string, nodeNames []string, value float64) *Capacitor {
	return &Capacitor{
		BaseDevice:  newBaseDevice(name, nodeNames),
		Capacitance: value,
	}
}

func (c *Capacitor) GetType() string { return "C" }

// integratorCoeff returns the leading integration coefficient for the
// status' method and step.
func integratorCoeff(status *CircuitStatus) float64 {
	if status.Method == TR {
		return util.GetIntegratorCoeffs(util.TrapezoidalMethod, 2, status.TimeStep)[0]
	}
	return util.GetIntegratorCoeffs(util.GearMethod, 1, status.TimeStep)[0]
}

func (c *Capacitor) StampLinear(m matrix.Assembler, status *CircuitStatus) error {
	if err := c.checkNodes("capacitor"); err != nil {
		return err
	}
	c.method = status.Method
	c.geq = c.Capacitance * integratorCoeff(status)
	m.AddConductance(c.Nodes[0], c.Nodes[1], c.geq)
	return nil
}

// StampDynamic adds the history term from the last accepted step.
func (c *Capacitor) StampDynamic(m matrix.Assembler, sol matrix.Solution, status *CircuitStatus) error {
	c.hist = c.geq * c.voltage
	if c.method == TR {
		c.hist += c.current
	}
	m.AddCurrentSource(c.Nodes[0], c.Nodes[1], -c.hist)
	return nil
}

func (c *Capacitor) FinalizeStep(sol matrix.Solution) {
	c.voltage = c.terminalVoltage(sol)
	c.current = c.geq*c.voltage - c.hist
}

func (c *Capacitor) Reset() {
	c.resetObservables()
	c.geq = 0
	c.hist = 0
}

func (c *Capacitor) SerializeParameters() []string {
	return formatParams(c.Capacitance)
}

func (c *Capacitor) DeserializeParameters(tokens []string) {
	readParams(tokens, &c.Capacitance)
}

func (c *Capacitor) EditableParameters() []EditInfo {
	return []EditInfo{
		{Name: "Capacitance (F)", Value: c.Capacitance, Positive: true},
	}
}

func (c *Capacitor) SetParameter(n int, value float64) {
	setEditable(c.EditableParameters(), []*float64{&c.Capacitance}, n, value)
}
