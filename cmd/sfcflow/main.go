// Package main provides the sfcflow command line for validating and running
// step graph files.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/dukex/sfcflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

var (
	ErrMissingFile = errors.New("a graph file is required")
	ErrRunAborted  = errors.New("run aborted")
	ErrStepsFailed = errors.New("run completed with errored steps")
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "sfcflow",
		Usage:                 "Validate and run step graphs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			NewValidateCommand(),
			NewRunCommand(),
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
