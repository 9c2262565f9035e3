package device

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/matrix"
)

const maxExpArg = 40.0

type Diode struct {
	BaseDevice
	// Model parameters
	Is float64 // Saturation current
	N  float64 // Emission coefficient

	// Temperature parameters
	Eg  float64 // Energy Gap (eV)
	Xti float64 // Saturation current temperature exponent

	vd float64 // linearization point of the running iteration
	id float64
	gd float64

	savedVd float64
}

func NewDiode(name string, nodeNames []string) *Diode {
	d := &Diode{BaseDevice: newBaseDevice(name, nodeNames)}
	d.setDefaultParameters()
	return d
}

func (d *Diode) GetType() string { return "D" }

func (d *Diode) setDefaultParameters() {
	d.Is = 1e-14
	d.N = 1.0
	d.Eg = 1.11 // Silicon bandgap
	d.Xti = 3.0
}

func thermalVoltage(temp float64) float64 {
	if temp <= 0 {
		temp = consts.REFTEMP
	}
	return consts.BOLTZMANN * temp / consts.CHARGE
}

// saturationCurrent scales is from REFTEMP to temp:
// is(T2) = is(T1) * (T2/T1)^(XTI/N) * exp(-(Eg/(2*vt))*(T2/T1 - 1))
func saturationCurrent(is, n, eg, xti, temp float64) float64 {
	if temp <= 0 {
		temp = consts.REFTEMP
	}
	vt := thermalVoltage(temp)
	ratio := temp / consts.REFTEMP
	egfact := -eg / (2 * vt) * (ratio - 1.0)

	return is * math.Pow(ratio, xti/n) * math.Exp(egfact)
}

// criticalVoltage is where pnjlim starts compressing junction steps.
func criticalVoltage(is, nvt float64) float64 {
	return nvt * math.Log(nvt/(math.Sqrt2*is))
}

func (d *Diode) temperatureAdjustedIs(temp float64) float64 {
	return saturationCurrent(d.Is, d.N, d.Eg, d.Xti, temp)
}

// junctionCurrent is is*(exp(v/nvt)-1) and its derivative. Past maxExpArg the
// exponential is continued linearly.
func junctionCurrent(v, is, nvt float64) (i, g float64) {
	arg := v / nvt
	if arg > maxExpArg {
		e := math.Exp(maxExpArg)
		return is * (e*(1+arg-maxExpArg) - 1), is * e / nvt
	}
	e := math.Exp(arg)
	return is * (e - 1), is * e / nvt
}

// evaluate returns the junction current and small-signal conductance at vd.
func (d *Diode) evaluate(vd float64, status *CircuitStatus) (id, gd float64) {
	nvt := d.N * thermalVoltage(status.Temp)
	id, gd = junctionCurrent(vd, d.temperatureAdjustedIs(status.Temp), nvt)
	return id, gd + status.Gmin
}

// limitJunction is the SPICE pnjlim step limiter.
func limitJunction(vnew, vold, vt, vcrit float64) float64 {
	if vnew > vcrit && math.Abs(vnew-vold) > 2*vt {
		if vold > 0 {
			arg := 1 + (vnew-vold)/vt
			if arg > 0 {
				return vold + vt*math.Log(arg)
			}
			return vcrit
		}
		return vt * math.Log(vnew/vt)
	}
	return vnew
}

func (d *Diode) StampLinear(m matrix.Assembler, status *CircuitStatus) error {
	return d.checkNodes("diode")
}

func (d *Diode) StampDynamic(m matrix.Assembler, sol matrix.Solution, status *CircuitStatus) error {
	nvt := d.N * thermalVoltage(status.Temp)
	vcrit := criticalVoltage(d.temperatureAdjustedIs(status.Temp), nvt)

	d.vd = limitJunction(d.terminalVoltage(sol), d.vd, nvt, vcrit)
	d.id, d.gd = d.evaluate(d.vd, status)

	n1, n2 := d.Nodes[0], d.Nodes[1]
	m.AddConductance(n1, n2, d.gd)
	m.AddCurrentSource(n1, n2, d.id-d.gd*d.vd)
	return nil
}

func (d *Diode) IsNonlinear() bool { return true }

func (d *Diode) FinalizeStep(sol matrix.Solution) {
	d.voltage = d.terminalVoltage(sol)
	// linearized current at the converged point
	d.current = d.id + d.gd*(d.voltage-d.vd)
}

func (d *Diode) SaveState()    { d.savedVd = d.vd }
func (d *Diode) RestoreState() { d.vd = d.savedVd }

func (d *Diode) Reset() {
	d.resetObservables()
	d.vd, d.id, d.gd, d.savedVd = 0, 0, 0, 0
}

func (d *Diode) SerializeParameters() []string {
	return formatParams(d.Is, d.N)
}

func (d *Diode) DeserializeParameters(tokens []string) {
	readPositive(tokens, &d.Is, &d.N)
}

func (d *Diode) EditableParameters() []EditInfo {
	return []EditInfo{
		{Name: "Saturation current (A)", Value: d.Is, Positive: true},
		{Name: "Emission coefficient", Value: d.N, Positive: true},
	}
}

func (d *Diode) SetParameter(n int, value float64) {
	setEditable(d.EditableParameters(), []*float64{&d.Is, &d.N}, n, value)
}

func (d *Diode) GetInfo() []string {
	return []string{
		"diode",
		fmt.Sprintf("I = %.6gA", d.current),
		fmt.Sprintf("Vd = %.6gV", d.voltage),
		fmt.Sprintf("gd = %.6gS", d.gd),
	}
}
