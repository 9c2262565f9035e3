package device

import (
	"math"
	"strconv"
	"strings"
)

type SourceType int

const (
	DC SourceType = iota
	SIN
	PULSE
	PWL
)

var sourceKeywords = map[SourceType]string{
	DC:    "dc",
	SIN:   "sin",
	PULSE: "pulse",
	PWL:   "pwl",
}

// Waveform is the time function shared by independent voltage and current
// sources.
type Waveform struct {
	Type SourceType
	// DC, SIN offset
	Offset float64
	// SIN params
	Amplitude float64
	Freq      float64
	Phase     float64 // degrees
	// PULSE params
	V1     float64
	V2     float64
	Delay  float64
	Rise   float64
	Fall   float64
	PWidth float64
	Period float64
	// PWL params
	Times  []float64
	Values []float64
}

func DCWaveform(value float64) Waveform {
	return Waveform{Type: DC, Offset: value}
}

func SinWaveform(offset, amplitude, freq, phase float64) Waveform {
	return Waveform{Type: SIN, Offset: offset, Amplitude: amplitude, Freq: freq, Phase: phase}
}

func PulseWaveform(v1, v2, delay, rise, fall, pWidth, period float64) Waveform {
	return Waveform{Type: PULSE, V1: v1, V2: v2, Delay: delay, Rise: rise, Fall: fall, PWidth: pWidth, Period: period}
}

func PWLWaveform(times, values []float64) Waveform {
	return Waveform{Type: PWL, Times: times, Values: values}
}

func (w *Waveform) At(t float64) float64 {
	switch w.Type {
	case DC:
		return w.Offset
	case SIN:
		phaseRad := w.Phase * math.Pi / 180.0
		return w.Offset + w.Amplitude*math.Sin(2.0*math.Pi*w.Freq*t+phaseRad)
	case PULSE:
		return w.pulse(t)
	case PWL:
		return w.pwl(t)
	default:
		return 0
	}
}

func (w *Waveform) pulse(t float64) float64 {
	if t < w.Delay {
		return w.V1
	}

	t = t - w.Delay
	if w.Period > 0 {
		t = math.Mod(t, w.Period)
	}

	if t < w.Rise {
		return w.V1 + (w.V2-w.V1)*t/w.Rise
	}

	if t < w.Rise+w.PWidth {
		return w.V2
	}

	fallStart := w.Rise + w.PWidth
	if t < fallStart+w.Fall {
		return w.V2 - (w.V2-w.V1)*(t-fallStart)/w.Fall
	}

	return w.V1
}

func (w *Waveform) pwl(t float64) float64 {
	n := min(len(w.Times), len(w.Values))
	if n == 0 {
		return 0
	}
	if t <= w.Times[0] {
		return w.Values[0]
	}
	if t >= w.Times[n-1] {
		return w.Values[n-1]
	}

	for i := 1; i < n; i++ {
		if t <= w.Times[i] {
			t1, t2 := w.Times[i-1], w.Times[i]
			v1, v2 := w.Values[i-1], w.Values[i]
			if t2 == t1 {
				return v2
			}
			return v1 + (v2-v1)*(t-t1)/(t2-t1)
		}
	}

	return w.Values[n-1]
}

func (w *Waveform) Serialize() []string {
	tokens := []string{sourceKeywords[w.Type]}
	switch w.Type {
	case DC:
		tokens = append(tokens, formatParam(w.Offset))
	case SIN:
		tokens = append(tokens, formatParams(w.Offset, w.Amplitude, w.Freq, w.Phase)...)
	case PULSE:
		tokens = append(tokens, formatParams(w.V1, w.V2, w.Delay, w.Rise, w.Fall, w.PWidth, w.Period)...)
	case PWL:
		for i := range min(len(w.Times), len(w.Values)) {
			tokens = append(tokens, formatParam(w.Times[i]), formatParam(w.Values[i]))
		}
	}
	return tokens
}

// Deserialize reads a keyword followed by its fields. A bare number is a DC
// value. Fields after the first bad token keep their current values; an
// unknown keyword leaves the waveform untouched.
func (w *Waveform) Deserialize(tokens []string) {
	if len(tokens) == 0 {
		return
	}

	kw := strings.ToLower(tokens[0])
	if _, err := strconv.ParseFloat(kw, 64); err == nil {
		w.Type = DC
		readParams(tokens, &w.Offset)
		return
	}

	args := tokens[1:]
	switch kw {
	case "dc":
		w.Type = DC
		readParams(args, &w.Offset)
	case "sin":
		w.Type = SIN
		readParams(args, &w.Offset, &w.Amplitude, &w.Freq, &w.Phase)
	case "pulse":
		w.Type = PULSE
		readParams(args, &w.V1, &w.V2, &w.Delay, &w.Rise, &w.Fall, &w.PWidth, &w.Period)
	case "pwl":
		var times, values []float64
		for i := 0; i+1 < len(args); i += 2 {
			var t, v float64
			if readParams(args[i:i+2], &t, &v) < 2 {
				break
			}
			times = append(times, t)
			values = append(values, v)
		}
		if len(times) > 0 {
			w.Type = PWL
			w.Times, w.Values = times, values
		}
	}
}

func (w *Waveform) editable(unit string) ([]EditInfo, []*float64) {
	switch w.Type {
	case DC:
		return []EditInfo{{Name: "Value (" + unit + ")", Value: w.Offset}}, []*float64{&w.Offset}
	case SIN:
		return []EditInfo{
				{Name: "Offset (" + unit + ")", Value: w.Offset},
				{Name: "Amplitude (" + unit + ")", Value: w.Amplitude},
				{Name: "Frequency (Hz)", Value: w.Freq, Positive: true},
				{Name: "Phase (deg)", Value: w.Phase},
			},
			[]*float64{&w.Offset, &w.Amplitude, &w.Freq, &w.Phase}
	case PULSE:
		return []EditInfo{
				{Name: "Initial value (" + unit + ")", Value: w.V1},
				{Name: "Pulsed value (" + unit + ")", Value: w.V2},
				{Name: "Delay (s)", Value: w.Delay},
				{Name: "Rise time (s)", Value: w.Rise},
				{Name: "Fall time (s)", Value: w.Fall},
				{Name: "Pulse width (s)", Value: w.PWidth},
				{Name: "Period (s)", Value: w.Period},
			},
			[]*float64{&w.V1, &w.V2, &w.Delay, &w.Rise, &w.Fall, &w.PWidth, &w.Period}
	default:
		return nil, nil
	}
}
