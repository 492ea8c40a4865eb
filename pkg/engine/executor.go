package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/sfcflow/pkg/endpoint"
	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/ramp"
	"github.com/jonboulle/clockwork"
)

// ProgressFunc receives the elapsed time of a running step.
type ProgressFunc func(elapsed time.Duration)

// Result is what a step produced when it finished.
type Result struct {
	Branch models.Branch
}

// Executor runs steps of one kind. Execute blocks until the step finishes,
// fails or ctx is cancelled, and must not touch the endpoint after observing
// cancellation.
type Executor interface {
	Execute(ctx context.Context, step *graph.Step, progress ProgressFunc) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, step *graph.Step, progress ProgressFunc) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, step *graph.Step, progress ProgressFunc) (Result, error) {
	return f(ctx, step, progress)
}

// NewExecutors returns the executor for every step kind.
func NewExecutors(writer endpoint.Writer, clock clockwork.Clock, interval time.Duration, logger *slog.Logger) map[models.StepKind]Executor {
	if interval <= 0 {
		interval = ramp.DefaultInterval
	}

	return map[models.StepKind]Executor{
		models.StepKindStart:     ImmediateExecutor{},
		models.StepKindEnd:       ImmediateExecutor{},
		models.StepKindWait:      &WaitExecutor{clock: clock, interval: interval},
		models.StepKindCondition: &ConditionExecutor{endpoint: writer},
		models.StepKindSetValue:  &SetValueExecutor{endpoint: writer, clock: clock, interval: interval, logger: logger},
	}
}

// ImmediateExecutor finishes at once. It runs start and end steps.
type ImmediateExecutor struct{}

func (ImmediateExecutor) Execute(_ context.Context, _ *graph.Step, progress ProgressFunc) (Result, error) {
	progress(0)

	return Result{}, nil
}

// WaitExecutor finishes once the configured duration has elapsed, reporting
// progress on every tick.
type WaitExecutor struct {
	clock    clockwork.Clock
	interval time.Duration
}

func (e *WaitExecutor) Execute(ctx context.Context, step *graph.Step, progress ProgressFunc) (Result, error) {
	if step.Wait == nil {
		return Result{}, fmt.Errorf("step %s has no wait configuration", step.ID)
	}

	duration := step.Wait.Duration()
	if duration <= 0 {
		progress(0)

		return Result{}, nil
	}

	start := e.clock.Now()

	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	timer := e.clock.NewTimer(duration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.Chan():
			progress(e.clock.Since(start))

			return Result{}, nil
		case <-ticker.Chan():
			progress(e.clock.Since(start))
		}
	}
}

// ConditionExecutor reads the predicate address once and selects the branch
// the predicate evaluates to.
type ConditionExecutor struct {
	endpoint endpoint.Writer
}

func (e *ConditionExecutor) Execute(ctx context.Context, step *graph.Step, progress ProgressFunc) (Result, error) {
	if step.Condition == nil {
		return Result{}, fmt.Errorf("step %s has no condition configuration", step.ID)
	}

	predicate := step.Condition.Predicate

	value, err := endpoint.Read(ctx, e.endpoint, predicate.Address)
	if err != nil {
		return Result{}, err
	}

	matched, err := predicate.Evaluate(value)
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate predicate on %s: %w", predicate.Address, err)
	}

	progress(0)

	return Result{Branch: models.BranchFor(matched)}, nil
}

// SetValueExecutor ramps the target address from its start to its end value.
type SetValueExecutor struct {
	endpoint endpoint.Writer
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
}

func (e *SetValueExecutor) Execute(ctx context.Context, step *graph.Step, progress ProgressFunc) (Result, error) {
	config := step.SetValue
	if config == nil {
		return Result{}, fmt.Errorf("step %s has no set-value configuration", step.ID)
	}

	write := func(ctx context.Context, value any) error {
		e.logger.DebugContext(ctx, "Writing ramp sample", "step_id", step.ID, "address", config.TargetAddress, "value", value)

		return e.endpoint.Write(ctx, config.TargetAddress, value, config.ValueType)
	}

	err := ramp.New(*config).Run(ctx, e.clock, e.interval, write, ramp.ProgressFunc(progress))
	if err != nil {
		return Result{}, err
	}

	return Result{}, nil
}
