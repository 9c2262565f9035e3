package analysis

import (
	"github.com/edp1096/toy-mna/pkg/circuit"
)

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute() error
	GetResults() map[string][]float64
}

type BaseAnalysis struct {
	Circuit *circuit.Circuit
	results map[string][]float64 // key: variable name, value: result by time
}

func NewBaseAnalysis() *BaseAnalysis {
	return &BaseAnalysis{results: make(map[string][]float64)}
}

func (a *BaseAnalysis) StoreTimeResult(time float64, solution map[string]float64) {
	// Ignore same time
	if times := a.results["TIME"]; len(times) > 0 && times[len(times)-1] == time {
		return
	}

	a.results["TIME"] = append(a.results["TIME"], time)
	for name, value := range solution {
		a.results[name] = append(a.results[name], value)
	}
}

func (a *BaseAnalysis) ClearResults() {
	clear(a.results)
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}
