// Package schedule starts graph runs on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/robfig/cron/v3"
)

// Starter starts a run of a graph.
type Starter interface {
	Start(ctx context.Context, graphID string) (models.Snapshot, error)
}

// Schedule starts GraphID whenever CronExpr fires.
type Schedule struct {
	GraphID  string
	CronExpr string
}

// ParseSchedule parses "graph-id=cron expression".
func ParseSchedule(value string) (Schedule, error) {
	graphID, expr, ok := strings.Cut(value, "=")
	if !ok {
		return Schedule{}, fmt.Errorf("schedule %q must look like graph-id=cron-expression", value)
	}

	schedule := Schedule{GraphID: strings.TrimSpace(graphID), CronExpr: strings.TrimSpace(expr)}

	return schedule, schedule.Validate()
}

func (s Schedule) Validate() error {
	if s.GraphID == "" {
		return errors.New("schedule graph ID is required")
	}

	if s.CronExpr == "" {
		return errors.New("schedule cron expression is required")
	}

	if _, err := cron.ParseStandard(s.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Trigger fires the configured schedules.
type Trigger struct {
	schedules []Schedule
	starter   Starter
	cron      *cron.Cron
	logger    *slog.Logger
}

func NewTrigger(starter Starter, logger *slog.Logger, schedules ...Schedule) (*Trigger, error) {
	for _, schedule := range schedules {
		if err := schedule.Validate(); err != nil {
			return nil, fmt.Errorf("schedule for graph %s: %w", schedule.GraphID, err)
		}
	}

	return &Trigger{
		schedules: schedules,
		starter:   starter,
		logger:    logger.With("module", "schedule_trigger"),
	}, nil
}

func (t *Trigger) Start(ctx context.Context) error {
	if len(t.schedules) == 0 {
		t.logger.InfoContext(ctx, "No schedules configured")

		return nil
	}

	cronLogger := &cronLogger{logger: t.logger}

	t.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		),
	)

	for _, schedule := range t.schedules {
		id, err := t.cron.AddFunc(schedule.CronExpr, func() { t.fire(schedule) })
		if err != nil {
			return fmt.Errorf("failed to add cron job for graph %s: %w", schedule.GraphID, err)
		}

		t.logger.InfoContext(ctx, "Scheduled graph", "graph_id", schedule.GraphID, "cron", schedule.CronExpr, "entry_id", id)
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) fire(schedule Schedule) {
	ctx := context.Background()
	logger := t.logger.With("graph_id", schedule.GraphID, "cron", schedule.CronExpr)

	snapshot, err := t.starter.Start(ctx, schedule.GraphID)

	switch {
	case engine.IsRunInProgress(err):
		logger.InfoContext(ctx, "Skipping scheduled run, graph is already running")
	case err != nil:
		logger.ErrorContext(ctx, "Failed to start scheduled run", "error", err)
	default:
		logger.InfoContext(ctx, "Scheduled run started", "run_id", snapshot.RunID)
	}
}

// Stop stops the cron and waits for jobs being fired to return.
func (t *Trigger) Stop(ctx context.Context) error {
	if t.cron == nil {
		return nil
	}

	t.logger.InfoContext(ctx, "Stopping schedules")

	select {
	case <-t.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
