package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/persistence"
)

// graphBody is the JSONB definition column.
type graphBody struct {
	Steps []*models.StepDefinition `json:"steps"`
	Edges []*models.EdgeDefinition `json:"edges"`
}

type scanner interface {
	Scan(dest ...any) error
}

// GraphRepository handles graph rows.
type GraphRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewGraphRepository(db *sql.DB, logger *slog.Logger) *GraphRepository {
	return &GraphRepository{db: db, logger: logger}
}

func (r *GraphRepository) GetAll(ctx context.Context) ([]*models.GraphDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , definition
		  , created_at
		  , updated_at
		FROM sfc_graphs
		WHERE deleted_at IS NULL
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query graphs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	graphs := make([]*models.GraphDefinition, 0)

	for rows.Next() {
		graph, err := r.scanGraph(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan graph: %w", err)
		}

		graphs = append(graphs, graph)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating graphs: %w", err)
	}

	return graphs, nil
}

func (r *GraphRepository) GetByID(ctx context.Context, id string) (*models.GraphDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , definition
		  , created_at
		  , updated_at
		FROM sfc_graphs
		WHERE id = $1 AND deleted_at IS NULL
	`

	graph, err := r.scanGraph(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewGraphError("GraphByID", id, persistence.ErrGraphNotFound)
		}

		return nil, fmt.Errorf("failed to scan graph: %w", err)
	}

	return graph, nil
}

// Save upserts the graph. A previously deleted graph with the same id is restored.
func (r *GraphRepository) Save(ctx context.Context, graph *models.GraphDefinition) error {
	if graph.ID == "" {
		return persistence.NewGraphError("SaveGraph", "", persistence.ErrGraphIDRequired)
	}

	now := time.Now().UTC()
	if graph.CreatedAt.IsZero() {
		graph.CreatedAt = now
	}

	graph.UpdatedAt = now

	definition, err := json.Marshal(graphBody{Steps: graph.Steps, Edges: graph.Edges})
	if err != nil {
		return fmt.Errorf("failed to marshal graph %s: %w", graph.ID, err)
	}

	query := `
		INSERT INTO sfc_graphs (id, name, description, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , definition = EXCLUDED.definition
		  , updated_at = EXCLUDED.updated_at
		  , deleted_at = NULL
		RETURNING created_at
	`

	err = r.db.QueryRowContext(ctx, query,
		graph.ID,
		graph.Name,
		graph.Description,
		definition,
		graph.CreatedAt,
		graph.UpdatedAt,
	).Scan(&graph.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save graph %s: %w", graph.ID, err)
	}

	r.logger.DebugContext(ctx, "Graph saved", "graph_id", graph.ID, "steps", len(graph.Steps))

	return nil
}

func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE sfc_graphs SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL",
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.NewGraphError("DeleteGraph", id, persistence.ErrGraphNotFound)
	}

	return nil
}

func (r *GraphRepository) scanGraph(row scanner) (*models.GraphDefinition, error) {
	var (
		graph      models.GraphDefinition
		definition []byte
	)

	err := row.Scan(
		&graph.ID,
		&graph.Name,
		&graph.Description,
		&definition,
		&graph.CreatedAt,
		&graph.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var body graphBody

	err = json.Unmarshal(definition, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph %s: %w", graph.ID, err)
	}

	graph.Steps = body.Steps
	graph.Edges = body.Edges

	return &graph, nil
}
