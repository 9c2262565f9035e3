package device

import (
	"github.com/edp1096/toy-mna/pkg/matrix"
)

type VoltageSource struct {
	BaseDevice
	Wave      Waveform
	branchIdx int
}

func NewVoltageSource(name string, nodeNames []string, wave Waveform) *VoltageSource {
	return &VoltageSource{
		BaseDevice: newBaseDevice(name, nodeNames),
		Wave:       wave,
	}
}

func NewDCVoltageSource(name string, nodeNames []string, value float64) *VoltageSource {
	return NewVoltageSource(name, nodeNames, DCWaveform(value))
}

func (v *VoltageSource) GetType() string { return "V" }

// Value returns the source voltage at t.
func (v *VoltageSource) Value(t float64) float64 {
	return v.Wave.At(t)
}

// StampLinear evaluates the waveform at status.Time, which is fixed for the
// whole step.
func (v *VoltageSource) StampLinear(m matrix.Assembler, status *CircuitStatus) error {
	if err := v.checkNodes("voltage source"); err != nil {
		return err
	}
	m.AddVoltageConstraint(v.Nodes[0], v.Nodes[1], v.branchIdx, v.Value(status.Time))
	return nil
}

// FinalizeStep reads the branch unknown, which is the current entering the
// positive terminal.
func (v *VoltageSource) FinalizeStep(sol matrix.Solution) {
	v.voltage = v.terminalVoltage(sol)
	v.current = sol.At(v.branchIdx)
}

func (v *VoltageSource) Reset() { v.resetObservables() }

func (v *VoltageSource) BranchCount() int { return 1 }

func (v *VoltageSource) BranchIndex() int {
	return v.branchIdx
}

func (v *VoltageSource) SetBranchIndex(idx int) {
	v.branchIdx = idx
}

func (v *VoltageSource) SerializeParameters() []string {
	return v.Wave.Serialize()
}

func (v *VoltageSource) DeserializeParameters(tokens []string) {
	v.Wave.Deserialize(tokens)
}

func (v *VoltageSource) EditableParameters() []EditInfo {
	params, _ := v.Wave.editable("V")
	return params
}

func (v *VoltageSource) SetParameter(n int, value float64) {
	params, targets := v.Wave.editable("V")
	setEditable(params, targets, n, value)
}
