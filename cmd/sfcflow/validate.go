package main

import (
	"context"
	"fmt"

	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/persistence/file"
	"github.com/urfave/cli/v3"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate a graph file (.json or .hcl)",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, command *cli.Command) error {
			definition, err := loadGraph(command)
			if err != nil {
				return err
			}

			g, err := graph.Build(definition)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(command.Root().Writer, "Graph %s (%s) is valid: %d steps\n", g.ID(), g.Name(), g.Len())

			return nil
		},
	}
}

func loadGraph(command *cli.Command) (*models.GraphDefinition, error) {
	path := command.Args().First()
	if path == "" {
		return nil, ErrMissingFile
	}

	definition, err := file.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	return definition, nil
}
