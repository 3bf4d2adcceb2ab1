package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pebble/internal/metrics"
)

// Runner is one full pass of the pipeline.
type Runner interface {
	RunOnce(ctx context.Context, opts RunOptions) (*RunResult, error)
}

// Driver runs the pipeline on a fixed interval until its context ends. An
// unreachable event log is logged as a warning at first and as an error once
// the outage has lasted longer than the threshold; the loop keeps going.
type Driver struct {
	runner    Runner
	interval  time.Duration
	threshold time.Duration
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time

	downSince time.Time
}

func NewDriver(runner Runner, interval, threshold time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Driver {
	return &Driver{
		runner:    runner,
		interval:  interval,
		threshold: threshold,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Run ticks once immediately and then every interval.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info().Dur("interval", d.interval).Msg("driver started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.Tick(ctx)
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("driver stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Driver) Tick(ctx context.Context) {
	_, err := d.runner.RunOnce(ctx, RunOptions{})

	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		d.metrics.SetUpstreamUp(false)
		if d.downSince.IsZero() {
			d.downSince = d.now()
		}
		down := d.Outage()
		ev := d.logger.Warn()
		if down >= d.threshold {
			ev = d.logger.Error()
		}
		ev.Err(err).Dur("down_for", down).Msg("event log unavailable")
		return
	case errors.Is(err, context.Canceled):
		return
	}

	d.metrics.SetUpstreamUp(true)
	if !d.downSince.IsZero() {
		d.logger.Info().Dur("down_for", d.Outage()).Msg("event log reachable again")
		d.downSince = time.Time{}
	}
	if err != nil {
		d.logger.Error().Err(err).Msg("run failed")
	}
}

// Outage reports how long the event log has been unreachable, zero when up.
func (d *Driver) Outage() time.Duration {
	if d.downSince.IsZero() {
		return 0
	}
	return d.now().Sub(d.downSince)
}
