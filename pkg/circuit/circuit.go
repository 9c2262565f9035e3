package circuit

import (
	"errors"
	"fmt"

	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/matrix"
	"github.com/edp1096/toy-mna/pkg/netlist"
	"github.com/edp1096/toy-mna/pkg/simerr"
)

type Circuit struct {
	name      string
	nodes     *NodeRegistry
	branchMap map[string]int
	devices   []device.Device
	byName    map[string]device.Device
	matrix    *matrix.CircuitMatrix
	solver    matrix.Solver
	Status    *device.CircuitStatus
	nonlinear bool
	dangling  int // first node with a single terminal attached, 0 if none
	built     bool
}

func New(name string) *Circuit {
	return &Circuit{
		name:      name,
		nodes:     NewNodeRegistry(),
		branchMap: make(map[string]int),
		byName:    make(map[string]device.Device),
		Status:    device.NewCircuitStatus(),
	}
}

// SetSolver selects the linear solver backend. Takes effect at the next Build.
func (c *Circuit) SetSolver(solver matrix.Solver) {
	c.solver = solver
	if c.matrix != nil {
		c.matrix.Destroy()
		c.matrix = nil
	}
	c.built = false
}

// AddDevice appends dev to the circuit. Terminals are registered from the
// device's node names at Build.
func (c *Circuit) AddDevice(dev device.Device) {
	c.devices = append(c.devices, dev)
	c.built = false
}

func (c *Circuit) SetupDevices(elements []netlist.Element) error {
	for _, elem := range elements {
		dev, err := netlist.CreateDevice(elem)
		if err != nil {
			return fmt.Errorf("creating device %s: %w", elem.Name, err)
		}
		c.AddDevice(dev)
	}
	return c.Build()
}

// Build re-registers every terminal, allocates branch unknowns and sizes the
// system matrix. Any topology edit requires a new Build.
func (c *Circuit) Build() error {
	c.nodes.Reset()
	clear(c.branchMap)
	clear(c.byName)
	c.nonlinear = false
	c.built = false

	for _, dev := range c.devices {
		if err := c.validate(dev); err != nil {
			return err
		}
		c.byName[dev.GetName()] = dev

		names := dev.GetNodeNames()
		nodeIndices := make([]int, len(names))
		for i, name := range names {
			nodeIndices[i] = c.nodes.RegisterTerminal(name)
		}
		dev.SetNodes(nodeIndices)

		if dev.IsNonlinear() {
			c.nonlinear = true
		}
	}

	c.dangling = c.findDangling()

	branchStart := c.nodes.NodeCount() + 1
	for _, dev := range c.devices {
		if b, ok := dev.(device.BranchDevice); ok {
			b.SetBranchIndex(branchStart)
			c.branchMap[dev.GetName()] = branchStart
			branchStart += b.BranchCount()
		}
	}
	auxCount := branchStart - c.nodes.NodeCount() - 1

	if c.matrix == nil {
		c.matrix = matrix.NewMatrix(c.nodes.NodeCount(), auxCount, c.solver)
	} else {
		c.matrix.BeginAssembly(c.nodes.NodeCount(), auxCount)
	}
	c.built = true
	return nil
}

func (c *Circuit) validate(dev device.Device) error {
	name := dev.GetName()
	if name == "" {
		return &simerr.TopologyError{Reason: "device without a name"}
	}
	if _, dup := c.byName[name]; dup {
		return &simerr.TopologyError{Device: name, Reason: "duplicate device name"}
	}

	want := 2
	if mt, ok := dev.(device.MultiTerminal); ok {
		want = mt.TerminalCount()
	}
	names := dev.GetNodeNames()
	if len(names) != want {
		return &simerr.TopologyError{Device: name, Reason: fmt.Sprintf("expected %d terminals, got %d", want, len(names))}
	}
	for i, n := range names {
		if n == "" {
			return &simerr.TopologyError{Device: name, Node: i, Reason: "empty terminal position"}
		}
	}
	if allSameNode(names) {
		return &simerr.TopologyError{Device: name, Reason: "terminals are shorted to the same node"}
	}
	return nil
}

func allSameNode(names []string) bool {
	for _, n := range names[1:] {
		if n != names[0] && !(IsGround(n) && IsGround(names[0])) {
			return false
		}
	}
	return true
}

// findDangling returns the first node that only one terminal touches. Such a
// node has no second path for current and leaves the system singular.
func (c *Circuit) findDangling() int {
	refs := make([]int, c.nodes.NodeCount()+1)
	for _, dev := range c.devices {
		for _, idx := range dev.GetNodes() {
			refs[idx]++
		}
	}
	for idx := 1; idx < len(refs); idx++ {
		if refs[idx] == 1 {
			return idx
		}
	}
	return 0
}

func (c *Circuit) checkBuilt() error {
	if !c.built {
		return &simerr.TopologyError{Device: c.name, Reason: "circuit not built since last topology change"}
	}
	return nil
}

// topologyErr attributes a matrix index error to dev.
func (c *Circuit) topologyErr(dev device.Device) error {
	err := c.matrix.Err()
	if err == nil {
		return nil
	}
	var topo *simerr.TopologyError
	if errors.As(err, &topo) && topo.Device == "" {
		topo.Device = dev.GetName()
	}
	return err
}

// AssembleLinear zeroes the system, applies every linear stamp and commits it
// as the baseline for the step's iterations.
func (c *Circuit) AssembleLinear(status *device.CircuitStatus) error {
	if err := c.checkBuilt(); err != nil {
		return err
	}
	if c.dangling > 0 {
		return &simerr.SingularMatrixError{
			Column: c.dangling,
			Cause:  fmt.Errorf("node %s has a single connection", c.nodes.Name(c.dangling)),
		}
	}

	c.matrix.Clear()
	for _, dev := range c.devices {
		if err := dev.StampLinear(c.matrix, status); err != nil {
			return fmt.Errorf("stamping device %s: %w", dev.GetName(), err)
		}
		if err := c.topologyErr(dev); err != nil {
			return err
		}
	}
	c.matrix.Commit()
	return nil
}

// StampDynamic restores the linear baseline and adds every dynamic stamp
// linearized around sol.
func (c *Circuit) StampDynamic(sol matrix.Solution, status *device.CircuitStatus) error {
	c.matrix.Restore()
	for _, dev := range c.devices {
		if err := dev.StampDynamic(c.matrix, sol, status); err != nil {
			return fmt.Errorf("stamping device %s: %w", dev.GetName(), err)
		}
		if err := c.topologyErr(dev); err != nil {
			return err
		}
	}
	return nil
}

func (c *Circuit) Solve() error {
	return c.matrix.Solve()
}

func (c *Circuit) AdvanceState(dt float64, prev matrix.Solution) {
	for _, dev := range c.devices {
		dev.AdvanceState(dt, prev)
	}
}

func (c *Circuit) FinalizeStep(sol matrix.Solution) {
	for _, dev := range c.devices {
		dev.FinalizeStep(sol)
	}
}

func (c *Circuit) SaveState() {
	for _, dev := range c.devices {
		if s, ok := dev.(device.Stateful); ok {
			s.SaveState()
		}
	}
}

func (c *Circuit) RestoreState() {
	for _, dev := range c.devices {
		if s, ok := dev.(device.Stateful); ok {
			s.RestoreState()
		}
	}
}

func (c *Circuit) Reset() {
	for _, dev := range c.devices {
		dev.Reset()
	}
}

func (c *Circuit) IsNonlinear() bool {
	return c.nonlinear
}

// SetParameter edits a device parameter. The change is picked up by the next
// step's stamps.
func (c *Circuit) SetParameter(deviceName string, n int, value float64) error {
	dev, ok := c.byName[deviceName]
	if !ok {
		return fmt.Errorf("unknown device: %s", deviceName)
	}
	dev.SetParameter(n, value)
	return nil
}

func (c *Circuit) Device(name string) (device.Device, bool) {
	dev, ok := c.byName[name]
	return dev, ok
}

func (c *Circuit) GetMatrix() *matrix.CircuitMatrix {
	return c.matrix
}

func (c *Circuit) GetNodeRegistry() *NodeRegistry {
	return c.nodes
}

func (c *Circuit) GetBranchMap() map[string]int {
	return c.branchMap
}

func (c *Circuit) GetDevices() []device.Device {
	return c.devices
}

// SystemSize is the number of unknowns, nodes plus branches.
func (c *Circuit) SystemSize() int {
	if c.matrix == nil {
		return 0
	}
	return c.matrix.Size
}

// GetSolution returns node voltages and device currents from the last
// accepted step, keyed V(node) and I(device).
func (c *Circuit) GetSolution(sol matrix.Solution) map[string]float64 {
	solution := make(map[string]float64)

	for i, name := range c.nodes.Names() {
		solution[fmt.Sprintf("V(%s)", name)] = sol.Voltage(i + 1)
	}
	for _, dev := range c.devices {
		solution[fmt.Sprintf("I(%s)", dev.GetName())] = dev.GetCurrent()
	}

	return solution
}

func (c *Circuit) Destroy() {
	if c.matrix != nil {
		c.matrix.Destroy()
	}
}

func (c *Circuit) Name() string {
	return c.name
}

func (c *Circuit) GetNumNodes() int {
	return c.nodes.NodeCount()
}
