package main

import (
	"context"
	"errors"
	"time"

	"github.com/edp1096/toy-mna/pkg/analysis"
	"github.com/edp1096/toy-mna/pkg/config"
	"github.com/edp1096/toy-mna/pkg/logging"
	"github.com/edp1096/toy-mna/pkg/metrics"
	"github.com/edp1096/toy-mna/pkg/simerr"
)

// driver paces a transient run and owns the retry policy: a step that fails
// to converge is retried with half the time step.
type driver struct {
	tr      *analysis.Transient
	cfg     config.DriverConfig
	metrics *metrics.Registry
	logger  logging.Logger
}

// run takes steps steps, or runs to the stop time when steps is 0.
func (d *driver) run(ctx context.Context, steps int) (int, error) {
	var tick <-chan time.Time
	if d.cfg.Rate > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / d.cfg.Rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	taken := 0
	for d.more(taken, steps) {
		if tick != nil {
			select {
			case <-ctx.Done():
				return taken, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return taken, err
		}

		if err := d.step(); err != nil {
			return taken, err
		}
		taken++
	}
	return taken, nil
}

func (d *driver) more(taken, steps int) bool {
	if steps > 0 {
		return taken < steps
	}
	return d.tr.Time()+d.tr.TimeStep()/2 < d.tr.StopTime()
}

func (d *driver) step() error {
	dt := d.tr.TimeStep()
	defer func() { _ = d.tr.SetTimeStep(dt) }()

	for retry := 0; ; retry++ {
		err := d.tr.Step()
		if err == nil || !errors.Is(err, simerr.ErrNonConvergence) {
			return err
		}

		next := d.tr.TimeStep() / 2
		if retry >= d.cfg.MaxRetries || next < d.cfg.MinTimeStep {
			return err
		}
		if d.metrics != nil {
			d.metrics.StepRetriesTotal.Inc()
		}
		d.logger.Info("retrying step",
			logging.SimTime(d.tr.Time()),
			logging.TimeStep(next),
			logging.Int("retry", retry+1))
		if err := d.tr.SetTimeStep(next); err != nil {
			return err
		}
	}
}
