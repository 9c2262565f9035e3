package consts

import "math"

const (
	CHARGE    = 1.6021918e-19 // Elementary charge (C)
	BOLTZMANN = 1.3806226e-23 // Boltzmann constant (J/K)
	KELVIN    = 273.15        // Kelvin temperature (K)
	REFTEMP   = 300.15        // 27degC

	RADS_PER_RPM = 2.0 * math.Pi / 60.0 // rpm -> rad/s
)
