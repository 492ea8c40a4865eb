// Package ramp computes and drives timed value ramps for set-value steps.
package ramp

import (
	"context"
	"time"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the sampling cadence of a running ramp.
const DefaultInterval = 500 * time.Millisecond

// WriteFunc delivers one sampled value to the endpoint.
type WriteFunc func(ctx context.Context, value any) error

// ProgressFunc receives the elapsed time after every sample.
type ProgressFunc func(elapsed time.Duration)

// Ramp moves a value from Start to End over Duration. Numeric ramps are
// linear; boolean ramps hold Start until Duration has elapsed.
type Ramp struct {
	ValueType models.ValueType
	Start     any
	End       any
	Duration  time.Duration
}

// New creates the ramp described by a set-value step.
func New(config models.SetValueConfig) Ramp {
	return Ramp{
		ValueType: config.ValueType,
		Start:     config.StartValue,
		End:       config.EndValue,
		Duration:  config.Duration(),
	}
}

// ValueAt returns the value of the ramp elapsed into it.
func (r Ramp) ValueAt(elapsed time.Duration) any {
	if r.Duration <= 0 || elapsed >= r.Duration {
		return r.End
	}

	if r.ValueType == models.ValueTypeBoolean {
		return r.Start
	}

	start, _ := r.Start.(float64)
	end, _ := r.End.(float64)

	if elapsed <= 0 {
		return start
	}

	fraction := float64(elapsed) / float64(r.Duration)

	return start + (end-start)*fraction
}

// Run writes the ramp through write. It writes the start value at once, a
// sample on every tick of interval, and End exactly once when Duration has
// elapsed. A ramp without duration writes End once. Run stops at the first
// write error or when ctx is cancelled, and never writes after observing
// cancellation.
func (r Ramp) Run(ctx context.Context, clock clockwork.Clock, interval time.Duration, write WriteFunc, progress ProgressFunc) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	if progress == nil {
		progress = func(time.Duration) {}
	}

	if r.Duration <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := write(ctx, r.End); err != nil {
			return err
		}

		progress(0)

		return nil
	}

	start := clock.Now()

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	timer := clock.NewTimer(r.Duration)
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := write(ctx, r.ValueAt(0)); err != nil {
		return err
	}

	progress(0)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.Chan():
			return r.finish(ctx, clock.Since(start), write, progress)
		case <-ticker.Chan():
			if err := ctx.Err(); err != nil {
				return err
			}

			elapsed := clock.Since(start)
			if elapsed >= r.Duration {
				return r.finish(ctx, elapsed, write, progress)
			}

			if err := write(ctx, r.ValueAt(elapsed)); err != nil {
				return err
			}

			progress(elapsed)
		}
	}
}

func (r Ramp) finish(ctx context.Context, elapsed time.Duration, write WriteFunc, progress ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := write(ctx, r.End); err != nil {
		return err
	}

	progress(elapsed)

	return nil
}
