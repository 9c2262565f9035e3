package util

type IntegrationMethod int

const (
	GearMethod IntegrationMethod = iota
	TrapezoidalMethod
)

type BackwardDifferentialFormula struct {
	coefficients []float64
	beta         float64
}

// BdfCoefficients holds the single-step Gear formula, backward Euler. The
// devices keep one past value, so higher orders have nothing to scale.
var BdfCoefficients = [1]BackwardDifferentialFormula{
	{[]float64{1.0}, 1.0},
}

// GetIntegratorCoeffs returns the derivative coefficients for a step of dt.
// coeffs[0] scales the new value; the rest scale past values, newest first.
func GetIntegratorCoeffs(method IntegrationMethod, order int, dt float64) []float64 {
	switch method {
	case TrapezoidalMethod:
		return GetTrapezoidalCoeffs(order, dt)
	default:
		return GetBDFcoeffs(order, dt)
	}
}

func GetBDFcoeffs(order int, dt float64) []float64 {
	if order < 1 || order > len(BdfCoefficients) {
		order = 1
	}

	bdf := BdfCoefficients[order-1]
	coeffs := make([]float64, order+1)
	scale := 1.0 / (bdf.beta * dt)
	coeffs[0] = scale

	for i := 1; i <= order; i++ {
		coeffs[i] = -bdf.coefficients[i-1] * scale
	}

	return coeffs
}

// GetTrapezoidalCoeffs returns 2/dt for order 2. Order 1 degenerates to 1/dt.
func GetTrapezoidalCoeffs(order int, dt float64) []float64 {
	if order == 2 {
		return []float64{2.0 / dt}
	}
	return []float64{1.0 / dt}
}
