package util

import (
	"fmt"
	"math"
)

var siPrefixes = []struct {
	scale  float64
	prefix string
}{
	{1, ""},
	{1e-3, "m"},
	{1e-6, "u"},
	{1e-9, "n"},
	{1e-12, "p"},
}

// FormatValueFactor renders value with an engineering prefix, e.g. 4.7e-6 F as
// "4.700 uF". Magnitudes below a pico fall back to exponent form.
func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	if absValue == 0 {
		return fmt.Sprintf("%.3f %s", value, unit)
	}
	for _, p := range siPrefixes {
		if absValue >= p.scale {
			return fmt.Sprintf("%.3f %s%s", value/p.scale, p.prefix, unit)
		}
	}
	return fmt.Sprintf("%.3e %s", value, unit)
}

// UnitOf picks the display unit for a result key: V(...) is volts, I(...)
// amps, TIME seconds.
func UnitOf(key string) string {
	switch {
	case key == "TIME":
		return "s"
	case len(key) > 1 && key[0] == 'V' && key[1] == '(':
		return "V"
	case len(key) > 1 && key[0] == 'I' && key[1] == '(':
		return "A"
	default:
		return ""
	}
}
