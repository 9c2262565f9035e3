package device

import (
	"fmt"
	"strings"

	"github.com/edp1096/toy-mna/pkg/matrix"
)

// Bjt is a transport Ebers-Moll transistor with forward Early effect.
// Terminals are collector, base, emitter.
type Bjt struct {
	BaseDevice
	Pnp bool

	// DC Model Parameters
	Is  float64 // Transport saturation current
	Bf  float64 // Ideal maximum forward beta
	Br  float64 // Ideal maximum reverse beta
	Vaf float64 // Forward Early voltage, 0 disables
	Nf  float64 // Forward emission coefficient
	Nr  float64 // Reverse emission coefficient

	// Temperature Parameters
	Eg  float64 // Energy gap for temperature effect on Is
	Xti float64 // Temperature exponent for effect on Is

	// Linearization point, polarity normalized
	vbe float64
	vbc float64
	ic  float64 // Collector current
	ib  float64 // Base current

	// d(ic)/d(vbe), d(ic)/d(vbc), d(ib)/d(vbe), d(ib)/d(vbc)
	gcbe, gcbc float64
	gbbe, gbbc float64

	// Converged terminal currents and voltages, circuit frame
	termCurrents [3]float64
	vbeOut       float64
	vceOut       float64

	savedVbe float64
	savedVbc float64
}

func NewBJT(name string, nodeNames []string) *Bjt {
	b := &Bjt{BaseDevice: newBaseDevice(name, nodeNames)}
	b.setDefaultParameters()
	return b
}

func (b *Bjt) GetType() string { return "Q" }

func (b *Bjt) setDefaultParameters() {
	b.Is = 1e-16
	b.Bf = 100.0
	b.Br = 1.0
	b.Vaf = 100.0
	b.Nf = 1.0
	b.Nr = 1.0
	b.Eg = 1.11
	b.Xti = 3.0
}

func (b *Bjt) TerminalCount() int { return 3 }

// TerminalCurrents returns the currents entering collector, base and emitter.
func (b *Bjt) TerminalCurrents() []float64 {
	return b.termCurrents[:]
}

func (b *Bjt) polarity() float64 {
	if b.Pnp {
		return -1
	}
	return 1
}

func (b *Bjt) StampLinear(m matrix.Assembler, status *CircuitStatus) error {
	if len(b.Nodes) != 3 {
		return fmt.Errorf("bjt %s: requires exactly 3 nodes", b.Name)
	}
	return nil
}

// evaluate fills the currents and their partial derivatives at (vbe, vbc).
func (b *Bjt) evaluate(vbe, vbc float64, status *CircuitStatus) {
	vt := thermalVoltage(status.Temp)
	is := saturationCurrent(b.Is, 1, b.Eg, b.Xti, status.Temp)

	iF, gF := junctionCurrent(vbe, is, b.Nf*vt)
	iR, gR := junctionCurrent(vbc, is, b.Nr*vt)

	early, dEarly := 1.0, 0.0
	if b.Vaf != 0 {
		early = 1 - vbc/b.Vaf
		dEarly = -1 / b.Vaf
	}

	gmin := status.Gmin
	b.ic = (iF-iR)*early - iR/b.Br - gmin*vbc
	b.ib = iF/b.Bf + iR/b.Br + gmin*(vbe+vbc)

	b.gcbe = gF * early
	b.gcbc = -gR*early + (iF-iR)*dEarly - gR/b.Br - gmin
	b.gbbe = gF/b.Bf + gmin
	b.gbbc = gR/b.Br + gmin
}

func (b *Bjt) StampDynamic(m matrix.Assembler, sol matrix.Solution, status *CircuitStatus) error {
	nc, nb, ne := b.Nodes[0], b.Nodes[1], b.Nodes[2]
	p := b.polarity()
	vt := thermalVoltage(status.Temp)
	is := saturationCurrent(b.Is, 1, b.Eg, b.Xti, status.Temp)

	vbe := p * (sol.Voltage(nb) - sol.Voltage(ne))
	vbc := p * (sol.Voltage(nb) - sol.Voltage(nc))
	b.vbe = limitJunction(vbe, b.vbe, b.Nf*vt, criticalVoltage(is, b.Nf*vt))
	b.vbc = limitJunction(vbc, b.vbc, b.Nr*vt, criticalVoltage(is, b.Nr*vt))
	b.evaluate(b.vbe, b.vbc, status)

	// collector current, C -> E
	m.AddTransconductance(nc, ne, nb, ne, b.gcbe)
	m.AddTransconductance(nc, ne, nb, nc, b.gcbc)
	m.AddCurrentSource(nc, ne, p*(b.ic-b.gcbe*b.vbe-b.gcbc*b.vbc))

	// base current, B -> E
	m.AddTransconductance(nb, ne, nb, ne, b.gbbe)
	m.AddTransconductance(nb, ne, nb, nc, b.gbbc)
	m.AddCurrentSource(nb, ne, p*(b.ib-b.gbbe*b.vbe-b.gbbc*b.vbc))
	return nil
}

func (b *Bjt) IsNonlinear() bool { return true }

func (b *Bjt) FinalizeStep(sol matrix.Solution) {
	nc, nb, ne := b.Nodes[0], b.Nodes[1], b.Nodes[2]
	p := b.polarity()

	vbe := p * (sol.Voltage(nb) - sol.Voltage(ne))
	vbc := p * (sol.Voltage(nb) - sol.Voltage(nc))
	dbe, dbc := vbe-b.vbe, vbc-b.vbc
	ic := b.ic + b.gcbe*dbe + b.gcbc*dbc
	ib := b.ib + b.gbbe*dbe + b.gbbc*dbc

	b.termCurrents = [3]float64{p * ic, p * ib, -p * (ic + ib)}
	b.vbeOut = p * vbe
	b.vceOut = p * (vbe - vbc)

	b.current = p * ic
	b.voltage = b.vceOut
}

// GetPower is Ic*Vce + Ib*Vbe.
func (b *Bjt) GetPower() float64 {
	return b.termCurrents[0]*b.vceOut + b.termCurrents[1]*b.vbeOut
}

func (b *Bjt) SaveState() { b.savedVbe, b.savedVbc = b.vbe, b.vbc }

func (b *Bjt) RestoreState() { b.vbe, b.vbc = b.savedVbe, b.savedVbc }

func (b *Bjt) Reset() {
	b.resetObservables()
	b.vbe, b.vbc, b.ic, b.ib = 0, 0, 0, 0
	b.gcbe, b.gcbc, b.gbbe, b.gbbc = 0, 0, 0, 0
	b.termCurrents = [3]float64{}
	b.vbeOut, b.vceOut = 0, 0
	b.savedVbe, b.savedVbc = 0, 0
}

func (b *Bjt) SerializeParameters() []string {
	kind := "npn"
	if b.Pnp {
		kind = "pnp"
	}
	return append([]string{kind}, formatParams(b.Is, b.Bf, b.Br, b.Vaf, b.Nf, b.Nr)...)
}

// DeserializeParameters reads `[npn|pnp] is bf br vaf nf nr`. Every field is
// optional from the right.
func (b *Bjt) DeserializeParameters(tokens []string) {
	if len(tokens) > 0 {
		switch strings.ToLower(tokens[0]) {
		case "npn":
			b.Pnp = false
			tokens = tokens[1:]
		case "pnp":
			b.Pnp = true
			tokens = tokens[1:]
		}
	}
	readParams(tokens, &b.Is, &b.Bf, &b.Br, &b.Vaf, &b.Nf, &b.Nr)
}

func (b *Bjt) EditableParameters() []EditInfo {
	return []EditInfo{
		{Name: "Saturation current (A)", Value: b.Is, Positive: true},
		{Name: "Forward beta", Value: b.Bf, Positive: true},
		{Name: "Reverse beta", Value: b.Br, Positive: true},
		{Name: "Early voltage (V)", Value: b.Vaf},
	}
}

func (b *Bjt) SetParameter(n int, value float64) {
	setEditable(b.EditableParameters(), []*float64{&b.Is, &b.Bf, &b.Br, &b.Vaf}, n, value)
}

func (b *Bjt) GetInfo() []string {
	kind := "npn"
	if b.Pnp {
		kind = "pnp"
	}
	return []string{
		kind + " transistor",
		fmt.Sprintf("Ic = %.6gA", b.termCurrents[0]),
		fmt.Sprintf("Ib = %.6gA", b.termCurrents[1]),
		fmt.Sprintf("Vbe = %.6gV", b.vbeOut),
		fmt.Sprintf("Vce = %.6gV", b.vceOut),
	}
}
