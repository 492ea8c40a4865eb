// Package persistence provides storage for graph definitions.
package persistence

import (
	"context"

	"github.com/dukex/sfcflow/pkg/models"
)

type Persistence interface {
	Graphs(ctx context.Context) ([]*models.GraphDefinition, error)
	SaveGraph(ctx context.Context, graph *models.GraphDefinition) error
	GraphByID(ctx context.Context, id string) (*models.GraphDefinition, error)
	DeleteGraph(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
