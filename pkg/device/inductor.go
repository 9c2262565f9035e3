package device

import (
	"github.com/edp1096/toy-mna/pkg/matrix"
)

// Inductor uses the same companion form as Capacitor with the roles of
// voltage and current exchanged.
type Inductor struct {
	BaseDevice
	Inductance float64

	geq    float64
	hist   float64
	method int
}

func NewInductor(name string, nodeNames []string, value float64) *Inductor {
	return &Inductor{
		BaseDevice: newBaseDevice(name, nodeNames),
		Inductance: value,
	}
}

func (l *Inductor) GetType() string { return "L" }

func (l *Inductor) StampLinear(m matrix.Assembler, status *CircuitStatus) error {
	if err := l.checkNodes("inductor"); err != nil {
		return err
	}
	l.method = status.Method
	l.geq = 1.0 / (l.Inductance * integratorCoeff(status))
	m.AddConductance(l.Nodes[0], l.Nodes[1], l.geq)
	return nil
}

func (l *Inductor) StampDynamic(m matrix.Assembler, sol matrix.Solution, status *CircuitStatus) error {
	l.hist = l.current
	if l.method == TR {
		l.hist += l.geq * l.voltage
	}
	m.AddCurrentSource(l.Nodes[0], l.Nodes[1], l.hist)
	return nil
}

func (l *Inductor) FinalizeStep(sol matrix.Solution) {
	l.voltage = l.terminalVoltage(sol)
	l.current = l.geq*l.voltage + l.hist
}

func (l *Inductor) Reset() {
	l.resetObservables()
	l.geq = 0
	l.hist = 0
}

func (l *Inductor) SerializeParameters() []string {
	return formatParams(l.Inductance)
}

func (l *Inductor) DeserializeParameters(tokens []string) {
	readParams(tokens, &l.Inductance)
}

func (l *Inductor) EditableParameters() []EditInfo {
	return []EditInfo{
		{Name: "Inductance (H)", Value: l.Inductance, Positive: true},
	}
}

func (l *Inductor) SetParameter(n int, value float64) {
	setEditable(l.EditableParameters(), []*float64{&l.Inductance}, n, value)
}
