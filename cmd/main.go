package main // import "spice"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/analysis"
	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/config"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/logging"
	"github.com/edp1096/toy-mna/pkg/matrix"
	"github.com/edp1096/toy-mna/pkg/metrics"
	"github.com/edp1096/toy-mna/pkg/netlist"
	"github.com/edp1096/toy-mna/pkg/plot"
	"github.com/edp1096/toy-mna/pkg/simerr"
	"github.com/edp1096/toy-mna/pkg/util"
)

const maxPrintedRows = 100

type options struct {
	configPath  string
	steps       int
	plotPath    string
	metricsAddr string
	exportPath  string
	verbose     bool
}

func getKeys(m map[string][]float64, prefix string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func printResults(w io.Writer, results map[string][]float64) {
	times := results["TIME"]
	if len(times) == 0 {
		fmt.Fprintln(w, "\nNo time points recorded")
		return
	}

	fmt.Fprintf(w, "\nTransient Analysis Results (%d time points):\n", len(times))
	fmt.Fprintln(w, "Time        Node Voltages        Branch Currents")
	fmt.Fprintln(w, "------------------------------------------------")

	names := append(getKeys(results, "V("), getKeys(results, "I(")...)
	stride := max(1, (len(times)+maxPrintedRows-1)/maxPrintedRows)

	for i, t := range times {
		if i%stride != 0 && i != len(times)-1 {
			continue
		}
		fmt.Fprintf(w, "%11s  ", util.FormatValueFactor(t, "s"))
		for _, name := range names {
			fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(results[name][i], util.UnitOf(name)))
		}
		fmt.Fprintln(w)
	}
}

func printDeviceInfo(w io.Writer, ckt *circuit.Circuit) {
	fmt.Fprintln(w, "\nDevices:")
	for _, dev := range ckt.GetDevices() {
		info, ok := dev.(device.InfoProvider)
		if !ok {
			fmt.Fprintf(w, "%s: I = %s  Vd = %s\n", dev.GetName(),
				util.FormatValueFactor(dev.GetCurrent(), "A"),
				util.FormatValueFactor(dev.GetVoltage(), "V"))
			continue
		}
		lines := info.GetInfo()
		fmt.Fprintf(w, "%s (%s)\n", dev.GetName(), lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

func printTopology(w io.Writer, data *netlist.NetlistData, ckt *circuit.Circuit) {
	fmt.Fprintf(w, "Circuit: %s\n", data.Title)
	nodes := ckt.GetNodeRegistry()
	branches := ckt.GetBranchMap()
	for i, elem := range data.Elements {
		fmt.Fprintf(w, "Element %d: %s (type: %s, nodes: %v)\n", i, elem.Name, elem.Type, elem.Nodes)
		for j, name := range elem.Nodes {
			idx, _ := nodes.Lookup(name)
			if idx == 0 {
				fmt.Fprintf(w, "  Node %d: %s -> Ground (0)\n", j, name)
			} else {
				fmt.Fprintf(w, "  Node %d: %s -> %d\n", j, name, idx)
			}
		}
		if b, ok := branches[elem.Name]; ok {
			fmt.Fprintf(w, "  Branch index: %d\n", b)
		}
	}
}

// loadConfig layers the config file, the netlist's .options and its .tran
// card, in that order.
func loadConfig(path string, data *netlist.NetlistData) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyOptions(data.Options); err != nil {
		return nil, err
	}
	if data.HasTran {
		cfg.Simulation.TimeStep = data.TranParam.TStep
		cfg.Simulation.StopTime = data.TranParam.TStop
		cfg.Simulation.StartTime = data.TranParam.TStart
	}
	return cfg, cfg.Validate()
}

func serveMetrics(addr string, reg *metrics.Registry, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logging.Error(err))
		}
	}()
	logger.Info("serving metrics", logging.String("addr", addr))
	return srv
}

func run(ctx context.Context, netlistPath string, opts options) error {
	content, err := os.ReadFile(netlistPath)
	if err != nil {
		return fmt.Errorf("reading netlist file: %w", err)
	}

	data, err := netlist.Parse(string(content))
	if err != nil {
		return fmt.Errorf("parsing netlist: %w", err)
	}

	cfg, err := loadConfig(opts.configPath, data)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if opts.verbose {
		level = logging.DebugLevel
	}
	logger := logging.NewJSONLogger(os.Stderr, level)
	logging.SetDefaultLogger(logger)

	reg := metrics.NewRegistry()
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	solver, err := matrix.NewSolver(cfg.Solver.Backend, cfg.Solver.PivotTolerance)
	if err != nil {
		return err
	}
	ckt := circuit.New(data.Title)
	ckt.SetSolver(solver)
	defer ckt.Destroy()

	if err := ckt.SetupDevices(data.Elements); err != nil {
		return fmt.Errorf("setting up devices: %w", err)
	}
	if opts.verbose {
		printTopology(os.Stdout, data, ckt)
	}

	method := device.BE
	if cfg.Simulation.Method == "tr" {
		method = device.TR
	}
	sim := cfg.Simulation
	tr := analysis.NewTransient(sim.StartTime, sim.StopTime, sim.TimeStep,
		analysis.WithController(&analysis.Controller{
			MaxIter:   cfg.Solver.MaxIterations,
			Tolerance: cfg.Solver.Tolerance,
		}),
		analysis.WithMethod(method),
		analysis.WithTemperature(sim.Temperature+consts.KELVIN),
		analysis.WithLogger(logger),
		analysis.WithMetrics(reg),
	)
	if err := tr.Setup(ckt); err != nil {
		return fmt.Errorf("analysis setup failed: %w", err)
	}

	d := &driver{tr: tr, cfg: cfg.Driver, metrics: reg, logger: logger}
	timer := logging.StartTimer(logger, "run", logging.RunID(tr.RunID()), logging.Path(netlistPath))
	taken, err := d.run(ctx, opts.steps)
	if err != nil && !errors.Is(err, context.Canceled) {
		timer.EndError(err)
		return fmt.Errorf("analysis execution failed after %d steps: %w", taken, err)
	}
	timer.End()

	printResults(os.Stdout, tr.GetResults())
	printDeviceInfo(os.Stdout, ckt)
	if opts.verbose {
		ckt.GetMatrix().PrintSystem(os.Stdout)
	}

	if opts.plotPath != "" {
		if err := plot.Save(opts.plotPath, tr.GetResults(), data.Title); err != nil {
			return fmt.Errorf("writing plot: %w", err)
		}
	}
	if opts.exportPath != "" {
		tran := &netlist.TranParam{TStep: sim.TimeStep, TStop: sim.StopTime, TStart: sim.StartTime}
		text := netlist.Export(data.Title, ckt.GetDevices(), tran)
		if err := os.WriteFile(opts.exportPath, []byte(text), 0o644); err != nil {
			return fmt.Errorf("writing netlist: %w", err)
		}
	}
	return nil
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, simerr.ErrTopology):
		return 2
	case errors.Is(err, simerr.ErrSingularMatrix):
		return 3
	case errors.Is(err, simerr.ErrNonConvergence):
		return 4
	default:
		return 1
	}
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flag.IntVar(&opts.steps, "steps", 0, "number of steps to run, 0 runs to the stop time")
	flag.StringVar(&opts.plotPath, "plot", "", "write waveforms to this PNG file")
	flag.StringVar(&opts.metricsAddr, "metrics", "", "serve Prometheus metrics on host:port")
	flag.StringVar(&opts.exportPath, "export", "", "write the circuit back out as a netlist")
	flag.BoolVar(&opts.verbose, "v", false, "print topology, debug logs and the final system")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("Usage: spice [flags] <netlist_file>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Arg(0), opts); err != nil {
		log.Print(err)
		stop()
		os.Exit(exitCode(err))
	}
}
