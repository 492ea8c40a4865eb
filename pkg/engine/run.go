package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/otelhelper"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type stepEvent struct {
	stepID  string
	done    bool
	elapsed time.Duration
	result  Result
	err     error
}

// run is the state of a single execution. Everything below the channels is
// owned by the loop goroutine; executors only send events.
type run struct {
	id        string
	graphID   string
	graph     *graph.Graph
	scheduler *Scheduler
	executors map[models.StepKind]Executor
	clock     clockwork.Clock
	tracer    trace.Tracer
	publisher *Publisher
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span
	events chan stepEvent
	done   chan struct{}
	wg     sync.WaitGroup

	status    models.RunStatus
	startedAt time.Time
	endedAt   *time.Time
	steps     map[string]models.StepStatus
	running   int
	stopping  bool
}

func (r *run) isDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// begin marks every step Idle and publishes the initial snapshot.
func (r *run) begin() models.Snapshot {
	r.status = models.RunStatusRunning
	r.startedAt = r.clock.Now()

	for _, id := range r.graph.StepIDs() {
		r.steps[id] = models.StepStatus{State: models.StepStateIdle}
	}

	return r.publish(Change{Kind: ChangeRun})
}

func (r *run) loop() {
	defer close(r.done)
	defer r.cancel()
	defer r.span.End()

	r.admit(r.scheduler.Begin())

	for r.running > 0 {
		select {
		case <-r.ctx.Done():
			r.abort()

			return
		case event := <-r.events:
			if r.receive(event) {
				return
			}
		}
	}

	r.complete()
}

// receive applies event and reports whether the run was aborted. An event
// read after cancellation may carry the executor's cancellation error, so it
// is settled as part of the abort instead of being handled as a failure.
func (r *run) receive(event stepEvent) bool {
	if r.ctx.Err() == nil {
		r.handle(event)

		return false
	}

	r.stopping = true
	r.settle(event)
	r.abort()

	return true
}

func (r *run) admit(ids []string) {
	if r.stopping {
		return
	}

	for _, id := range ids {
		step, ok := r.graph.Step(id)
		if !ok {
			continue
		}

		startedAt := r.clock.Now()
		r.steps[id] = models.StepStatus{State: models.StepStateRunning, StartedAt: &startedAt}
		r.publish(Change{Kind: ChangeStep, StepID: id})

		executor, ok := r.executors[step.Kind]
		if !ok {
			r.finish(id, Result{}, fmt.Errorf("%w: %s", ErrNoExecutor, step.Kind))

			continue
		}

		r.running++
		r.wg.Add(1)

		go r.execute(executor, step, startedAt)
	}
}

func (r *run) execute(executor Executor, step *graph.Step, startedAt time.Time) {
	defer r.wg.Done()

	ctx, span := otelhelper.StartSpan(r.ctx, r.tracer, "sfcflow.step",
		attribute.String(otelhelper.GraphIDKey, r.graphID),
		attribute.String(otelhelper.RunIDKey, r.id),
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepKindKey, string(step.Kind)),
	)
	defer span.End()

	progress := func(elapsed time.Duration) {
		r.send(ctx, stepEvent{stepID: step.ID, elapsed: elapsed})
	}

	result, err := executor.Execute(ctx, step, progress)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	r.send(ctx, stepEvent{
		stepID:  step.ID,
		done:    true,
		elapsed: r.clock.Since(startedAt),
		result:  result,
		err:     err,
	})
}

func (r *run) send(ctx context.Context, event stepEvent) {
	select {
	case r.events <- event:
	case <-ctx.Done():
	}
}

func (r *run) handle(event stepEvent) {
	status, ok := r.steps[event.stepID]
	if !ok || status.State != models.StepStateRunning {
		return
	}

	if seconds := event.elapsed.Seconds(); seconds > status.ElapsedSeconds {
		status.ElapsedSeconds = seconds
		r.steps[event.stepID] = status
	}

	if !event.done {
		r.publish(Change{Kind: ChangeProgress, StepID: event.stepID})

		return
	}

	r.running--
	r.finish(event.stepID, event.result, event.err)
}

func (r *run) finish(stepID string, result Result, err error) {
	status := r.steps[stepID]
	outcome := Outcome{}

	if err != nil {
		status.State = models.StepStateErrored
		status.Error = err.Error()

		r.logger.WarnContext(r.ctx, "Step errored", "step_id", stepID, "error", err)
	} else {
		status.State = models.StepStateFinished
		outcome = Outcome{Finished: true, Branch: result.Branch}

		r.logger.DebugContext(r.ctx, "Step finished", "step_id", stepID, "branch", result.Branch)
	}

	r.steps[stepID] = status
	r.publish(Change{Kind: ChangeStep, StepID: stepID})

	ready, unreachable := r.scheduler.Complete(stepID, outcome)

	for _, id := range unreachable {
		s := r.steps[id]
		s.Unreachable = true
		r.steps[id] = s

		r.publish(Change{Kind: ChangeStep, StepID: id})
	}

	r.admit(ready)
}

// abort waits for every executor to return, applies the events they sent
// before noticing the cancellation and stops whatever could still have run.
func (r *run) abort() {
	r.stopping = true
	r.wg.Wait()

	for drained := false; !drained; {
		select {
		case event := <-r.events:
			r.settle(event)
		default:
			drained = true
		}
	}

	for _, id := range r.graph.StepIDs() {
		status := r.steps[id]

		switch {
		case status.State == models.StepStateRunning:
		case status.State == models.StepStateIdle && !status.Unreachable:
		default:
			continue
		}

		status.State = models.StepStateStopped
		r.steps[id] = status
	}

	r.end(models.RunStatusAborted)
}

func (r *run) settle(event stepEvent) {
	if !event.done || !isCancellation(event.err) {
		r.handle(event)

		return
	}

	status, ok := r.steps[event.stepID]
	if !ok || status.State != models.StepStateRunning {
		return
	}

	if seconds := event.elapsed.Seconds(); seconds > status.ElapsedSeconds {
		status.ElapsedSeconds = seconds
	}

	status.State = models.StepStateStopped
	r.steps[event.stepID] = status
	r.running--
}

func (r *run) complete() {
	r.end(models.RunStatusCompleted)
}

func (r *run) end(status models.RunStatus) {
	endedAt := r.clock.Now()
	r.status = status
	r.endedAt = &endedAt

	snapshot := r.publish(Change{Kind: ChangeRun})

	r.span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(status)))

	r.logger.InfoContext(r.ctx, "Run ended",
		"status", status,
		"has_errors", snapshot.HasErrors,
		"duration", endedAt.Sub(r.startedAt),
	)
}

func (r *run) publish(change Change) models.Snapshot {
	startedAt := r.startedAt
	snapshot := models.NewSnapshot(r.graphID, r.id, r.status, &startedAt, r.endedAt, r.steps)

	r.publisher.Publish(Update{Snapshot: snapshot, Change: change})

	return snapshot
}
