package matrix

// Assembler is the stamping surface handed to devices. Index 0 is ground and
// is silently discarded by every primitive.
type Assembler interface {
	AddConductance(i, j int, g float64)
	AddCurrentSource(i, j int, value float64)             // value flows i -> j through the source
	AddTransconductance(i, j, k, l int, g float64)        // g*(V(k)-V(l)) flows i -> j
	AddVoltageConstraint(i, j, branch int, value float64) // V(i) - V(j) = value
}

// Solution holds node voltages followed by auxiliary unknowns, 1-based.
type Solution []float64

func (s Solution) At(i int) float64 {
	if i <= 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func (s Solution) Voltage(node int) float64 { return s.At(node) }

func (s Solution) Clone() Solution {
	c := make(Solution, len(s))
	copy(c, s)
	return c
}
