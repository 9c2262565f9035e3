package device

import (
	"fmt"
	"strings"

	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/matrix"
)

// Device is the contract every circuit element satisfies. Terminal 0 is the
// reference for GetCurrent (current entering terminal 0 and leaving terminal 1)
// and GetVoltage (terminal 0 minus terminal 1).
type Device interface {
	GetName() string
	GetType() string
	GetNodeNames() []string
	GetNodes() []int
	SetNodes(nodes []int)

	StampLinear(m matrix.Assembler, status *CircuitStatus) error
	StampDynamic(m matrix.Assembler, sol matrix.Solution, status *CircuitStatus) error
	IsNonlinear() bool
	AdvanceState(dt float64, prev matrix.Solution)
	FinalizeStep(sol matrix.Solution)
	Reset()

	GetCurrent() float64
	GetVoltage() float64
	GetPower() float64

	SerializeParameters() []string
	DeserializeParameters(tokens []string)
	EditableParameters() []EditInfo
	SetParameter(n int, value float64)
}

// BranchDevice needs auxiliary unknowns in the system (branch currents).
type BranchDevice interface {
	BranchCount() int
	SetBranchIndex(idx int)
	BranchIndex() int
}

// Stateful devices carry integrated state that a failed step must not keep.
type Stateful interface {
	SaveState()
	RestoreState()
}

// MultiTerminal devices have more than two terminals. TerminalCurrents holds
// the current entering each terminal at the last FinalizeStep.
type MultiTerminal interface {
	TerminalCount() int
	TerminalCurrents() []float64
}

type InfoProvider interface {
	GetInfo() []string
}

type EditInfo struct {
	Name     string
	Value    float64
	Positive bool // values <= 0 are rejected
}

const (
	BE = iota // Backward Euler
	TR        // Trapezoidal
)

type CircuitStatus struct {
	Time     float64 // time the current solve is for (end of step)
	TimeStep float64
	Method   int // BE or TR
	Temp     float64
	Gmin     float64
}

func NewCircuitStatus() *CircuitStatus {
	return &CircuitStatus{
		Method: BE,
		Temp:   consts.REFTEMP,
		Gmin:   1e-12,
	}
}

type BaseDevice struct {
	Name      string
	Nodes     []int
	NodeNames []string

	voltage float64
	current float64
}

func newBaseDevice(name string, nodeNames []string) BaseDevice {
	return BaseDevice{
		Name:      name,
		Nodes:     make([]int, len(nodeNames)),
		NodeNames: nodeNames,
	}
}

func (d *BaseDevice) GetName() string {
	return d.Name
}

func (d *BaseDevice) GetNodes() []int {
	return d.Nodes
}

func (d *BaseDevice) GetNodeNames() []string {
	return d.NodeNames
}

func (d *BaseDevice) SetNodes(nodes []int) {
	d.Nodes = nodes
}

func (d *BaseDevice) StampDynamic(m matrix.Assembler, sol matrix.Solution, status *CircuitStatus) error {
	return nil
}

func (d *BaseDevice) IsNonlinear() bool                             { return false }
func (d *BaseDevice) AdvanceState(dt float64, prev matrix.Solution) {}

func (d *BaseDevice) GetCurrent() float64 { return d.current }
func (d *BaseDevice) GetVoltage() float64 { return d.voltage }
func (d *BaseDevice) GetPower() float64   { return d.voltage * d.current }

// terminalVoltage is v(terminal 0) - v(terminal 1) in sol.
func (d *BaseDevice) terminalVoltage(sol matrix.Solution) float64 {
	if len(d.Nodes) < 2 {
		return 0
	}
	return sol.Voltage(d.Nodes[0]) - sol.Voltage(d.Nodes[1])
}

func (d *BaseDevice) checkNodes(kind string) error {
	if len(d.Nodes) != 2 {
		return fmt.Errorf("%s %s: requires exactly 2 nodes", kind, d.Name)
	}
	return nil
}

func (d *BaseDevice) resetObservables() {
	d.voltage = 0
	d.current = 0
}

// New creates a device of the given kind letter with default parameters.
func New(kind, name string, nodeNames []string) (Device, error) {
	switch strings.ToUpper(kind) {
	case "R":
		return NewResistor(name, nodeNames, 1000), nil
	case "V":
		return NewVoltageSource(name, nodeNames, DCWaveform(5)), nil
	case "I":
		return NewCurrentSource(name, nodeNames, DCWaveform(0.01)), nil
	case "C":
		return NewCapacitor(name, nodeNames, 1e-6), nil
	case "L":
		return NewInductor(name, nodeNames, 1e-3), nil
	case "D":
		return NewDiode(name, nodeNames), nil
	case "M":
		return NewMotor(name, nodeNames), nil
	case "Q":
		return NewBJT(name, nodeNames), nil
	default:
		return nil, fmt.Errorf("unsupported device type: %s", kind)
	}
}
