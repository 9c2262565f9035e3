package device

import (
	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/matrix"
)

type Resistor struct {
	BaseDevice
	Resistance float64
	Tc1        float64
	Tc2        float64
	Tnom       float64

	effective float64 // value stamped at the current temperature
}

func NewResistor(name string, nodeNames []string, value float64) *Resistor {
	return &Resistor{
		BaseDevice: newBaseDevice(name, nodeNames),
		Resistance: value,
		Tnom:       consts.REFTEMP,
	}
}

func (r *Resistor) GetType() string { return "R" }

func (r *Resistor) StampLinear(m matrix.Assembler, status *CircuitStatus) error {
	if err := r.checkNodes("resistor"); err != nil {
		return err
	}
	r.effective = r.temperatureAdjustedValue(status.Temp)
	m.AddConductance(r.Nodes[0], r.Nodes[1], 1.0/r.effective)
	return nil
}

func (r *Resistor) FinalizeStep(sol matrix.Solution) {
	r.voltage = r.terminalVoltage(sol)
	if r.effective == 0 {
		r.effective = r.Resistance
	}
	r.current = r.voltage / r.effective
}

func (r *Resistor) Reset() { r.resetObservables() }

func (r *Resistor) temperatureAdjustedValue(temp float64) float64 {
	dt := temp - r.Tnom
	factor := 1.0 + r.Tc1*dt + r.Tc2*dt*dt
	return r.Resistance * factor
}

func (r *Resistor) SerializeParameters() []string {
	if r.Tc1 == 0 && r.Tc2 == 0 {
		return formatParams(r.Resistance)
	}
	return formatParams(r.Resistance, r.Tc1, r.Tc2)
}

func (r *Resistor) DeserializeParameters(tokens []string) {
	if readPositive(tokens, &r.Resistance) == 1 {
		readParams(tokens[1:], &r.Tc1, &r.Tc2)
	}
}

func (r *Resistor) EditableParameters() []EditInfo {
	return []EditInfo{
		{Name: "Resistance (ohm)", Value: r.Resistance, Positive: true},
	}
}

func (r *Resistor) SetParameter(n int, value float64) {
	setEditable(r.EditableParameters(), []*float64{&r.Resistance}, n, value)
}
