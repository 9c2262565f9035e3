package device

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/matrix"
)

// Motor is a brushed DC motor: armature resistance in series with a back-EMF
// proportional to shaft velocity. The mechanical state is integrated from the
// previous step's current, so the electrical stamp stays linear.
type Motor struct {
	BaseDevice
	Kv         float64 // rpm/V
	Resistance float64 // armature resistance
	Inertia    float64
	Damping    float64
	Friction   float64 // mu*Fn*R

	position float64 // rad, in [0, 2pi)
	velocity float64 // rad/s

	saved [3]float64
}

func NewMotor(name string, nodeNames []string) *Motor {
	m := &Motor{BaseDevice: newBaseDevice(name, nodeNames)}
	m.setDefaultParameters()
	return m
}

func (m *Motor) setDefaultParameters() {
	m.Kv = 5000
	m.Resistance = 1
	m.Inertia = 100e-9
	m.Damping = 500e-9
	m.Friction = 500e-6
}

func (m *Motor) GetType() string { return "M" }

// torqueConstant is Kt in N-m/A, equal to the back-EMF constant in V-s/rad.
func (m *Motor) torqueConstant() float64 {
	return 1.0 / (m.Kv * consts.RADS_PER_RPM)
}

func (m *Motor) backEMF() float64 {
	return m.velocity * m.torqueConstant()
}

func (m *Motor) Position() float64 { return m.position }
func (m *Motor) Velocity() float64 { return m.velocity }

func (m *Motor) KineticEnergy() float64 {
	return 0.5 * m.Inertia * m.velocity * m.velocity
}

func (m *Motor) StampLinear(a matrix.Assembler, status *CircuitStatus) error {
	if err := m.checkNodes("motor"); err != nil {
		return err
	}
	a.AddConductance(m.Nodes[0], m.Nodes[1], 1.0/m.Resistance)
	return nil
}

// StampDynamic adds the back-EMF as a Norton current source. Velocity is
// frozen for the step, so the stamp does not depend on sol.
func (m *Motor) StampDynamic(a matrix.Assembler, sol matrix.Solution, status *CircuitStatus) error {
	a.AddCurrentSource(m.Nodes[0], m.Nodes[1], -m.backEMF()/m.Resistance)
	return nil
}

// AdvanceState integrates the shaft with the current from the last accepted
// step. Residual velocity under the friction threshold snaps to zero.
func (m *Motor) AdvanceState(dt float64, prev matrix.Solution) {
	torque := m.current*m.torqueConstant() - m.Damping*m.velocity - m.Friction*sign(m.velocity)
	m.velocity += torque / m.Inertia * dt
	if math.Abs(m.velocity) < m.Friction/m.Inertia*dt {
		m.velocity = 0
	}

	m.position = math.Mod(m.position+dt*m.velocity, 2*math.Pi)
	if m.position < 0 {
		m.position += 2 * math.Pi
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func (m *Motor) FinalizeStep(sol matrix.Solution) {
	m.voltage = m.terminalVoltage(sol)
	m.current = (m.voltage - m.backEMF()) / m.Resistance
}

func (m *Motor) SaveState() {
	m.saved = [3]float64{m.position, m.velocity, m.current}
}

func (m *Motor) RestoreState() {
	m.position, m.velocity, m.current = m.saved[0], m.saved[1], m.saved[2]
}

func (m *Motor) Reset() {
	m.resetObservables()
	m.position = 0
	m.velocity = 0
	m.saved = [3]float64{}
}

func (m *Motor) SerializeParameters() []string {
	return formatParams(m.Kv, m.Resistance, m.Inertia, m.Damping, m.Friction)
}

// DeserializeParameters reads kv ra inertia damping friction. Parsing stops at
// the first missing or bad token; the rest keep their defaults.
func (m *Motor) DeserializeParameters(tokens []string) {
	if readPositive(tokens, &m.Kv, &m.Resistance, &m.Inertia) == 3 {
		readParams(tokens[3:], &m.Damping, &m.Friction)
	}
}

func (m *Motor) EditableParameters() []EditInfo {
	return []EditInfo{
		{Name: "Torque constant (rpm/V)", Value: m.Kv, Positive: true},
		{Name: "Armature resistance (ohm)", Value: m.Resistance, Positive: true},
		{Name: "Mechanical inertia (kg-m^2)", Value: m.Inertia, Positive: true},
		{Name: "Mechanical damping (N-m/rad-s)", Value: m.Damping, Positive: true},
		{Name: "Mechanical friction mu*Fn*R (N-m)", Value: m.Friction, Positive: true},
	}
}

func (m *Motor) SetParameter(n int, value float64) {
	setEditable(m.EditableParameters(),
		[]*float64{&m.Kv, &m.Resistance, &m.Inertia, &m.Damping, &m.Friction}, n, value)
}

func (m *Motor) GetInfo() []string {
	return []string{
		"motor",
		fmt.Sprintf("I = %.6gA", m.current),
		fmt.Sprintf("Vd = %.6gV", m.voltage),
		fmt.Sprintf("position = %.6grad", m.position),
		fmt.Sprintf("velocity = %.6grad/s", m.velocity),
		fmt.Sprintf("kinetic energy = %.6gJ", m.KineticEnergy()),
	}
}
