package main

import (
	"context"
	"fmt"
	"log"

	"github.com/edp1096/toy-mna/pkg/analysis"
	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/logging"
	"github.com/edp1096/toy-mna/pkg/plot"
	"github.com/edp1096/toy-mna/pkg/util"
)

func main() {
	fmt.Print("===== DC Motor Example =====\n\n")

	ckt := circuit.New("DC motor spin-up")
	ckt.AddDevice(device.NewDCVoltageSource("V1", []string{"supply", "0"}, 5))
	ckt.AddDevice(device.NewResistor("Rw", []string{"supply", "m"}, 0.1))
	motor := device.NewMotor("M1", []string{"m", "0"})
	ckt.AddDevice(motor)

	tran := analysis.NewTransient(0, 0.2, 10e-6, analysis.WithLogger(logging.NewNopLogger()))
	if err := tran.Setup(ckt); err != nil {
		log.Fatalf("error setup: %v", err)
	}

	fmt.Println("Spinning up at 5 V...")
	fmt.Println("    Time        Current       Velocity")
	for i := 0; i < 10; i++ {
		if _, err := tran.Run(context.Background(), 1000); err != nil {
			log.Fatalf("error running: %v", err)
		}
		fmt.Printf("%10s  %12s  %10.2f rad/s\n",
			util.FormatValueFactor(tran.Time(), "s"),
			util.FormatValueFactor(motor.GetCurrent(), "A"),
			motor.Velocity())
	}

	fmt.Println("\nLoading the shaft (damping x100)...")
	if err := ckt.SetParameter("M1", 3, motor.Damping*100); err != nil {
		log.Fatalf("error editing motor: %v", err)
	}
	if err := tran.Execute(); err != nil {
		log.Fatalf("error running: %v", err)
	}

	fmt.Println()
	for _, line := range motor.GetInfo() {
		fmt.Println(" ", line)
	}

	if err := plot.Save("motor.png", tran.GetResults(), ckt.Name()); err != nil {
		log.Fatalf("error writing plot: %v", err)
	}
	fmt.Println("\nWaveforms written to motor.png and motor_i.png")
	fmt.Println("\nDone!")
}
