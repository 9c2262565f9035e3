package main

import (
	"fmt"
	"log"
	"math"

	"github.com/edp1096/toy-mna/pkg/analysis"
	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/logging"
)

func createCircuit() *circuit.Circuit {
	ckt := circuit.New("Diode DC Sweep Circuit")

	d1 := device.NewDiode("D1", []string{"2", "0"})
	d1.DeserializeParameters([]string{"2.52e-9", "1.752"}) // D1N4148

	ckt.AddDevice(device.NewDCVoltageSource("Vsweep", []string{"1", "0"}, 0))
	ckt.AddDevice(device.NewResistor("Rs", []string{"1", "2"}, 10))
	ckt.AddDevice(d1)
	return ckt
}

func main() {
	fmt.Print("===== Diode DC Sweep Example =====\n\n")

	fmt.Println("Generating circuit...")
	ckt := createCircuit()

	// Without storage elements every step is an operating point, so editing
	// the source between steps sweeps the DC curve.
	tran := analysis.NewTransient(0, 1, 1e-3, analysis.WithLogger(logging.NewNopLogger()))
	if err := tran.Setup(ckt); err != nil {
		log.Fatalf("error setting up sweep: %v", err)
	}

	fmt.Println("Circuit information:")
	fmt.Printf("  Name: %s\n", ckt.Name())
	fmt.Printf("  Node count: %d (except GND)\n\n", ckt.GetNumNodes())

	fmt.Println("Vsweep(V)    Vdiode(V)    Idiode(mA)    Conductance(mS)   Iterations")
	fmt.Println("-----------------------------------------------------------------------")

	d1, _ := ckt.Device("D1")
	var thresholdV, maxCurrent, maxCurrentV float64
	for i := 0; i <= 24; i++ {
		vsweep := float64(i) * 0.05
		if err := ckt.SetParameter("Vsweep", 0, vsweep); err != nil {
			log.Fatalf("error editing source: %v", err)
		}
		if err := tran.Step(); err != nil {
			log.Fatalf("error at %.3f V: %v", vsweep, err)
		}

		vdiode := d1.GetVoltage()
		idiode := d1.GetCurrent()
		conductance := 0.0
		if vdiode > 0.01 {
			conductance = idiode / vdiode * 1000.0
		}
		fmt.Printf("%8.3f      %8.3f      %8.3f      %8.3f          %d\n",
			vsweep, vdiode, idiode*1000.0, conductance, tran.Iterations())

		if thresholdV == 0 && idiode*1000.0 >= 1.0 {
			thresholdV = vdiode
		}
		if math.Abs(idiode) > math.Abs(maxCurrent) {
			maxCurrent, maxCurrentV = idiode, vsweep
		}
	}

	fmt.Println("\nDiode Characteristics Analysis:")
	if thresholdV > 0 {
		fmt.Printf("  Estimated threshold voltage: %.3f V\n", thresholdV)
	}
	fmt.Printf("  Maximum current: %.3f mA at %.3f V\n", maxCurrent*1000.0, maxCurrentV)

	fmt.Println("\nDone!")
}
