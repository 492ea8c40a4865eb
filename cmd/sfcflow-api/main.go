package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/sfcflow/pkg/cmd"
	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/eventbus"
	"github.com/dukex/sfcflow/pkg/log"
	"github.com/dukex/sfcflow/pkg/otelhelper"
	"github.com/dukex/sfcflow/pkg/ramp"
	"github.com/dukex/sfcflow/pkg/triggers/schedule"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort     = 9091
	serviceName     = "sfcflow-api"
	shutdownTimeout = 10 * time.Second
)

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Manage step graphs and run them against a controlled endpoint",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Graph repository URL (postgres://... or a directory)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
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
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers used when the event bus is kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.DurationFlag{
				Name:    "tick-interval",
				Usage:   "Interval between ramp writes and progress updates",
				Value:   ramp.DefaultInterval,
				Sources: cli.EnvVars("TICK_INTERVAL"),
			},
			&cli.StringSliceFlag{
				Name:    "schedule",
				Usage:   "Start a graph on a cron schedule (graph-id=cron expression)",
				Sources: cli.EnvVars("SCHEDULES"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing sfcflow API")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []engine.Option{engine.WithTickInterval(command.Duration("tick-interval"))}

	if command.Bool("otel-enabled") {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return err
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()

		opts = append(opts, engine.WithTracer(tracer))
	}

	schedules := make([]schedule.Schedule, 0, len(command.StringSlice("schedule")))

	for _, value := range command.StringSlice("schedule") {
		s, err := schedule.ParseSchedule(value)
		if err != nil {
			return err
		}

		schedules = append(schedules, s)
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	ep, err := cmd.NewEndpoint(ctx, logger, command.String("endpoint-url"), command.String("endpoint-prefix"))
	if err != nil {
		return err
	}

	defer func() {
		if err := ep.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close endpoint", "error", err)
		}
	}()

	bus, err := cmd.NewEventBus(command.String("event-bus"), serviceName, command.StringSlice("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := bus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	manager := engine.NewManager(persistence, ep.Writer, logger, opts...)

	forwarder := eventbus.NewStatusForwarder(bus, logger)

	go func() {
		if err := forwarder.Run(ctx, manager); err != nil {
			logger.ErrorContext(ctx, "Status forwarder stopped", "error", err)
		}
	}()

	trigger, err := schedule.NewTrigger(manager, logger, schedules...)
	if err != nil {
		return err
	}

	if err := trigger.Start(ctx); err != nil {
		return err
	}

	api := NewAPI(logger, persistence, manager)
	app := api.App()

	go func() {
		<-ctx.Done()

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown API server", "error", err)
		}
	}()

	serveErr := api.Start(command.Int("port"))

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return errors.Join(serveErr, trigger.Stop(shutdownCtx), manager.StopAll(shutdownCtx))
}
