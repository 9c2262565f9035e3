package main

import (
	"fmt"
	"log"

	"github.com/edp1096/toy-mna/pkg/analysis"
	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/logging"
	"github.com/edp1096/toy-mna/pkg/netlist"
	"github.com/edp1096/toy-mna/pkg/util"
)

// The signal rides on the bottom of the bias divider so there is no coupling
// capacitor to charge up first.
const amplifier = `BJT Common Emitter Amplifier
.model Q2N2222 NPN(is=1.8e-14 bf=100 vaf=100)
Vcc vcc 0 12
Vin in 0 sin 0 100m 1k 0
Rb1 vcc b 100k
Rb2 b in 22k
Rc vcc c 4.7k
Re e 0 1k
Q1 c b e Q2N2222
.tran 5u 3m
.end
`

func main() {
	fmt.Print("===== BJT Common Emitter Example =====\n\n")

	data, err := netlist.Parse(amplifier)
	if err != nil {
		log.Fatalf("error parsing netlist: %v", err)
	}
	ckt := circuit.New(data.Title)
	if err := ckt.SetupDevices(data.Elements); err != nil {
		log.Fatalf("error device setup: %v", err)
	}

	param := data.TranParam
	tran := analysis.NewTransient(param.TStart, param.TStop, param.TStep,
		analysis.WithMethod(device.TR),
		analysis.WithLogger(logging.NewNopLogger()))
	if err := tran.Setup(ckt); err != nil {
		log.Fatalf("error setting up transient analysis: %v", err)
	}
	if err := tran.Execute(); err != nil {
		log.Fatalf("error running transient analysis: %v", err)
	}

	results := tran.GetResults()
	n := len(results["TIME"])
	fmt.Printf("Number of time points: %d\n\n", n)

	// last period only
	last := n - n/3
	inLo, inHi := minMax(results["V(in)"][last:])
	outLo, outHi := minMax(results["V(c)"][last:])

	fmt.Println("Bias point:")
	fmt.Printf("  V(b) = %s\n", util.FormatValueFactor(results["V(b)"][n-1], "V"))
	fmt.Printf("  V(e) = %s\n", util.FormatValueFactor(results["V(e)"][n-1], "V"))
	fmt.Printf("  V(c) = %s\n\n", util.FormatValueFactor(results["V(c)"][n-1], "V"))

	fmt.Println("Swing:")
	fmt.Printf("  Input:  %s\n", util.FormatValueFactor(inHi-inLo, "V"))
	fmt.Printf("  Output: %s\n", util.FormatValueFactor(outHi-outLo, "V"))
	fmt.Printf("  Gain:   %.2f\n\n", (outHi-outLo)/(inHi-inLo))

	dev, _ := ckt.Device("Q1")
	for _, line := range dev.(device.InfoProvider).GetInfo() {
		fmt.Println(" ", line)
	}

	fmt.Println("\nDone!")
}

func minMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
