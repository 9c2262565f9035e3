package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the simulator's metrics on a private Prometheus registry.
type Registry struct {
	StepsTotal       *prometheus.CounterVec
	NewtonIterations prometheus.Histogram
	SolveDuration    prometheus.Histogram
	SimulationTime   prometheus.Gauge
	CircuitNodes     prometheus.Gauge
	StepRetriesTotal prometheus.Counter

	registry *prometheus.Registry
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}
	factory := promauto.With(reg)

	r.StepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mna_steps_total",
			Help: "Transient steps attempted, by outcome",
		},
		[]string{"status"},
	)

	r.NewtonIterations = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mna_newton_iterations",
			Help:    "Solve iterations needed per accepted step",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 100},
		},
	)

	r.SolveDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mna_solve_duration_seconds",
			Help:    "Wall time spent in one transient step",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
	)

	r.SimulationTime = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "mna_simulation_time_seconds",
			Help: "Current simulated time",
		},
	)

	r.CircuitNodes = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "mna_circuit_nodes",
			Help: "Non-ground nodes in the circuit",
		},
	)

	r.StepRetriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "mna_step_retries_total",
			Help: "Steps retried with a reduced time step",
		},
	)

	return r
}

// RecordStep records one step attempt.
func (r *Registry) RecordStep(status string, iterations int, duration time.Duration, simTime float64) {
	r.StepsTotal.WithLabelValues(status).Inc()
	r.SolveDuration.Observe(duration.Seconds())
	if status == StatusOK {
		r.NewtonIterations.Observe(float64(iterations))
		r.SimulationTime.Set(simTime)
	}
}

const (
	StatusOK             = "ok"
	StatusNonConvergence = "nonconvergence"
	StatusSingular       = "singular"
	StatusError          = "error"
)

func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
