package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/dukex/sfcflow/pkg/cmd"
	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/log"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/ramp"
	"github.com/urfave/cli/v3"
)

const stopTimeout = 5 * time.Second

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Run a graph file against an endpoint and print its status until it ends",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "endpoint-url",
				Usage:   "Controlled endpoint URL (opc.tcp://, redis://, memory://)",
				Value:   "memory://",
				Sources: cli.EnvVars("ENDPOINT_URL"),
			},
			&cli.StringFlag{
				Name:    "endpoint-prefix",
				Usage:   "Prefix for addresses that do not start with ns=",
				Sources: cli.EnvVars("ENDPOINT_PREFIX"),
			},
			&cli.DurationFlag{
				Name:    "tick-interval",
				Usage:   "Interval between ramp writes and progress updates",
				Value:   ramp.DefaultInterval,
				Sources: cli.EnvVars("TICK_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Interval between status prints",
				Value: time.Second,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			definition, err := loadGraph(command)
			if err != nil {
				return err
			}

			logger := log.WithModule("run")

			ep, err := cmd.NewEndpoint(ctx, logger, command.String("endpoint-url"), command.String("endpoint-prefix"))
			if err != nil {
				return err
			}

			defer func() {
				if err := ep.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close endpoint", "error", err)
				}
			}()

			coordinator := engine.NewCoordinator(definition.ID, ep.Writer,
				engine.WithTickInterval(command.Duration("tick-interval")),
				engine.WithLogger(logger),
			)

			signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runUntilTerminal(signalCtx, coordinator, definition, command.Duration("poll-interval"), command.Root().Writer)
		},
	}
}

// runUntilTerminal starts the run and prints its status every poll until it
// ends. Cancelling ctx stops the run.
func runUntilTerminal(
	ctx context.Context,
	coordinator *engine.Coordinator,
	definition *models.GraphDefinition,
	poll time.Duration,
	w io.Writer,
) error {
	snapshot, err := coordinator.Start(context.WithoutCancel(ctx), definition)
	if err != nil {
		return err
	}

	printSnapshot(w, snapshot)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for !snapshot.Status.IsTerminal() {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
			snapshot, err = coordinator.Stop(stopCtx)

			cancel()

			if err != nil {
				return fmt.Errorf("failed to stop run: %w", err)
			}
		case <-ticker.C:
			snapshot = coordinator.Query()
		}

		printSnapshot(w, snapshot)
	}

	switch {
	case snapshot.Status == models.RunStatusAborted:
		return ErrRunAborted
	case snapshot.HasErrors:
		return ErrStepsFailed
	default:
		return nil
	}
}

func printSnapshot(w io.Writer, snapshot models.Snapshot) {
	_, _ = fmt.Fprintf(w, "run %s [%s]\n", snapshot.RunID, snapshot.Status)

	ids := make([]string, 0, len(snapshot.Steps))
	for id := range snapshot.Steps {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	for _, id := range ids {
		step := snapshot.Steps[id]

		state := string(step.State)
		if step.Unreachable {
			state += " (unreachable)"
		}

		line := fmt.Sprintf("  %-20s %-24s %6.1fs", id, state, step.ElapsedSeconds)
		if step.Error != "" {
			line += "  " + step.Error
		}

		_, _ = fmt.Fprintln(w, line)
	}
}
