// Package engine executes step graphs: it schedules steps by their
// dependencies, runs them against an endpoint and publishes their status.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/sfcflow/pkg/endpoint"
	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/otelhelper"
	"github.com/dukex/sfcflow/pkg/ramp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const eventBuffer = 64

type options struct {
	clock     clockwork.Clock
	interval  time.Duration
	tracer    trace.Tracer
	publisher *Publisher
	logger    *slog.Logger
	executors map[models.StepKind]Executor
}

// Option configures a Coordinator or a Manager.
type Option func(*options)

// WithClock sets the clock driving timers and ramps.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithTickInterval sets the sampling cadence of waits and ramps.
func WithTickInterval(interval time.Duration) Option {
	return func(o *options) {
		o.interval = interval
	}
}

// WithTracer sets the tracer used for run and step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithPublisher shares a publisher between coordinators.
func WithPublisher(publisher *Publisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithExecutor replaces the executor of a step kind.
func WithExecutor(kind models.StepKind, executor Executor) Option {
	return func(o *options) {
		if o.executors == nil {
			o.executors = make(map[models.StepKind]Executor)
		}

		o.executors[kind] = executor
	}
}

func newOptions(opts []Option) options {
	o := options{
		clock:    clockwork.NewRealClock(),
		interval: ramp.DefaultInterval,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.interval <= 0 {
		o.interval = ramp.DefaultInterval
	}

	if o.tracer == nil {
		o.tracer = otel.Tracer("github.com/dukex/sfcflow/pkg/engine")
	}

	if o.publisher == nil {
		o.publisher = NewPublisher()
	}

	return o
}

// Coordinator owns the runs of one graph. At most one run is active at a
// time; the last run stays queryable until Reset or the next Start.
type Coordinator struct {
	graphID   string
	writer    endpoint.Writer
	executors map[models.StepKind]Executor
	opts      options
	logger    *slog.Logger

	mu  sync.Mutex
	run *run
}

// NewCoordinator creates a coordinator for graphID writing through writer.
func NewCoordinator(graphID string, writer endpoint.Writer, opts ...Option) *Coordinator {
	o := newOptions(opts)
	logger := o.logger.With("module", "coordinator", "graph_id", graphID)

	executors := NewExecutors(writer, o.clock, o.interval, logger)
	for kind, executor := range o.executors {
		executors[kind] = executor
	}

	return &Coordinator{
		graphID:   graphID,
		writer:    writer,
		executors: executors,
		opts:      o,
		logger:    logger,
	}
}

// GraphID returns the graph this coordinator runs.
func (c *Coordinator) GraphID() string {
	return c.graphID
}

// Start validates the definition and starts a run. Validation errors are
// returned before anything runs. Starting while a run is active returns
// ErrRunInProgress.
func (c *Coordinator) Start(ctx context.Context, definition *models.GraphDefinition) (models.Snapshot, error) {
	g, err := graph.Build(definition)
	if err != nil {
		c.logger.WarnContext(ctx, "Rejected invalid graph", "error", err)

		return models.Snapshot{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil && !c.run.isDone() {
		return models.Snapshot{}, ErrRunInProgress
	}

	r := c.newRun(ctx, g)
	c.run = r

	c.logger.InfoContext(ctx, "Starting run", "run_id", r.id, "steps", g.Len())

	snapshot := r.begin()

	go r.loop()

	return snapshot, nil
}

// Stop cancels the active run and waits until every step has returned.
// Running steps and steps that could still have run become Stopped. Stop
// is a no-op when no run is active.
func (c *Coordinator) Stop(ctx context.Context) (models.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopLocked(ctx); err != nil {
		return models.Snapshot{}, err
	}

	return c.Query(), nil
}

func (c *Coordinator) stopLocked(ctx context.Context) error {
	r := c.run
	if r == nil || r.isDone() {
		return nil
	}

	c.logger.InfoContext(ctx, "Stopping run", "run_id", r.id)
	r.cancel()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for run %s to stop: %w", r.id, ctx.Err())
	}
}

// Reset stops the active run if any and discards the run state.
func (c *Coordinator) Reset(ctx context.Context) (models.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopLocked(ctx); err != nil {
		return models.Snapshot{}, err
	}

	c.run = nil

	c.logger.InfoContext(ctx, "Run state reset")

	return c.opts.publisher.Reset(c.graphID), nil
}

// Query returns the latest snapshot.
func (c *Coordinator) Query() models.Snapshot {
	return c.opts.publisher.Latest(c.graphID)
}

// Subscribe returns a channel of updates for this graph.
func (c *Coordinator) Subscribe(buffer int) (<-chan Update, func()) {
	return c.opts.publisher.Subscribe(c.graphID, buffer)
}

// Wait blocks until the current run ends and returns its final snapshot.
func (c *Coordinator) Wait(ctx context.Context) (models.Snapshot, error) {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()

	if r == nil {
		return c.Query(), nil
	}

	select {
	case <-r.done:
		return c.Query(), nil
	case <-ctx.Done():
		return models.Snapshot{}, ctx.Err()
	}
}

func (c *Coordinator) newRun(ctx context.Context, g *graph.Graph) *run {
	runID := uuid.NewString()

	// The run outlives the caller; only the trace is carried over.
	base := trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
	runCtx, cancel := context.WithCancel(base)

	runCtx, span := otelhelper.StartSpan(runCtx, c.opts.tracer, "sfcflow.run",
		attribute.String(otelhelper.GraphIDKey, c.graphID),
		attribute.String(otelhelper.GraphNameKey, g.Name()),
		attribute.String(otelhelper.RunIDKey, runID),
	)

	return &run{
		id:        runID,
		graphID:   c.graphID,
		graph:     g,
		scheduler: NewScheduler(g),
		executors: c.executors,
		clock:     c.opts.clock,
		tracer:    c.opts.tracer,
		publisher: c.opts.publisher,
		logger:    c.logger.With("run_id", runID),
		ctx:       runCtx,
		cancel:    cancel,
		span:      span,
		events:    make(chan stepEvent, eventBuffer),
		done:      make(chan struct{}),
		steps:     make(map[string]models.StepStatus, g.Len()),
	}
}
