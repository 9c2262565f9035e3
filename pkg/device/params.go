package device

import (
	"math"
	"strconv"
)

func formatParam(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatParams(values ...float64) []string {
	tokens := make([]string, len(values))
	for i, v := range values {
		tokens[i] = formatParam(v)
	}
	return tokens
}

// readParams fills dst from tokens in order and stops at the first missing,
// unparsable or non-finite token. Returns how many were read.
func readParams(tokens []string, dst ...*float64) int {
	return readWhile(tokens, isFinite, dst...)
}

// readPositive is readParams for values a device divides by or takes the log
// of. It also stops at zero or a negative value.
func readPositive(tokens []string, dst ...*float64) int {
	return readWhile(tokens, func(v float64) bool { return isFinite(v) && v > 0 }, dst...)
}

func readWhile(tokens []string, ok func(float64) bool, dst ...*float64) int {
	for i, p := range dst {
		if i >= len(tokens) {
			return i
		}
		v, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil || !ok(v) {
			return i
		}
		*p = v
	}
	return len(dst)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// setEditable applies value to the n-th parameter in params, honoring the
// positivity constraint. Out-of-range indexes are ignored.
func setEditable(params []EditInfo, targets []*float64, n int, value float64) bool {
	if n < 0 || n >= len(params) || n >= len(targets) {
		return false
	}
	if params[n].Positive && !(value > 0) {
		return false
	}
	*targets[n] = value
	return true
}
