package device

import (
	"github.com/edp1096/toy-mna/pkg/matrix"
)

// CurrentSource drives its value from terminal 0 through itself into
// terminal 1.
type CurrentSource struct {
	BaseDevice
	Wave Waveform

	stamped float64 // value used by the pending solve
}

func NewCurrentSource(name string, nodeNames []string, wave Waveform) *CurrentSource {
	return &CurrentSource{
		BaseDevice: newBaseDevice(name, nodeNames),
		Wave:       wave,
	}
}

func NewDCCurrentSource(name string, nodeNames []string, value float64) *CurrentSource {
	return NewCurrentSource(name, nodeNames, DCWaveform(value))
}

func (i *CurrentSource) GetType() string { return "I" }

func (i *CurrentSource) Value(t float64) float64 {
	return i.Wave.At(t)
}

func (i *CurrentSource) StampLinear(m matrix.Assembler, status *CircuitStatus) error {
	if err := i.checkNodes("current source"); err != nil {
		return err
	}
	i.stamped = i.Value(status.Time)
	m.AddCurrentSource(i.Nodes[0], i.Nodes[1], i.stamped)
	return nil
}

func (i *CurrentSource) FinalizeStep(sol matrix.Solution) {
	i.voltage = i.terminalVoltage(sol)
	i.current = i.stamped
}

func (i *CurrentSource) Reset() {
	i.resetObservables()
	i.stamped = 0
}

func (i *CurrentSource) SerializeParameters() []string {
	return i.Wave.Serialize()
}

func (i *CurrentSource) DeserializeParameters(tokens []string) {
	i.Wave.Deserialize(tokens)
}

func (i *CurrentSource) EditableParameters() []EditInfo {
	params, _ := i.Wave.editable("A")
	return params
}

func (i *CurrentSource) SetParameter(n int, value float64) {
	params, targets := i.Wave.editable("A")
	setEditable(params, targets, n, value)
}
