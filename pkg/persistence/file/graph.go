package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/persistence"
)

const graphsDir = "graphs"

var extensions = []string{".json", ".hcl"}

// GraphRepository keeps one file per graph in <root>/graphs. Graphs are
// read from JSON or HCL files and always saved as JSON.
type GraphRepository struct {
	root string
}

// NewGraphRepository creates a new graph repository.
func NewGraphRepository(root string) *GraphRepository {
	return &GraphRepository{root: root}
}

func (r *GraphRepository) dir() string {
	return filepath.Join(r.root, graphsDir)
}

func (r *GraphRepository) path(id, extension string) string {
	return filepath.Clean(filepath.Join(r.dir(), id+extension))
}

// GetAll returns every graph ordered by id. A JSON file shadows an HCL file
// of the same id.
func (r *GraphRepository) GetAll(ctx context.Context) ([]*models.GraphDefinition, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make([]*models.GraphDefinition, 0), nil
		}

		return nil, fmt.Errorf("failed to list graph files: %w", err)
	}

	var ids []string

	for _, entry := range entries {
		extension := filepath.Ext(entry.Name())
		if entry.IsDir() || !slices.Contains(extensions, extension) {
			continue
		}

		ids = append(ids, strings.TrimSuffix(entry.Name(), extension))
	}

	slices.Sort(ids)
	ids = slices.Compact(ids)

	graphs := make([]*models.GraphDefinition, 0, len(ids))

	for _, id := range ids {
		graph, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph %s: %w", id, err)
		}

		graphs = append(graphs, graph)
	}

	return graphs, nil
}

// GetByID reads the graph stored under id.
func (r *GraphRepository) GetByID(_ context.Context, id string) (*models.GraphDefinition, error) {
	if !validID(id) {
		return nil, persistence.NewGraphError("GraphByID", id, persistence.ErrGraphNotFound)
	}

	for _, extension := range extensions {
		path := r.path(id, extension)

		body, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return nil, fmt.Errorf("failed to fetch graph %s: %w", id, err)
		}

		return Decode(path, body)
	}

	return nil, persistence.NewGraphError("GraphByID", id, persistence.ErrGraphNotFound)
}

// Save writes the graph as JSON.
func (r *GraphRepository) Save(_ context.Context, graph *models.GraphDefinition) error {
	if !validID(graph.ID) {
		return persistence.NewGraphError("SaveGraph", graph.ID, persistence.ErrGraphIDRequired)
	}

	err := os.MkdirAll(r.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create graphs directory: %w", err)
	}

	now := time.Now().UTC()
	if graph.CreatedAt.IsZero() {
		graph.CreatedAt = now
	}

	graph.UpdatedAt = now

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph %s: %w", graph.ID, err)
	}

	err = os.WriteFile(r.path(graph.ID, ".json"), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write graph %s: %w", graph.ID, err)
	}

	return nil
}

// Delete removes every file stored under id.
func (r *GraphRepository) Delete(_ context.Context, id string) error {
	if !validID(id) {
		return persistence.NewGraphError("DeleteGraph", id, persistence.ErrGraphNotFound)
	}

	deleted := false

	for _, extension := range extensions {
		err := os.Remove(r.path(id, extension))

		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("failed to delete graph %s: %w", id, err)
		}
	}

	if !deleted {
		return persistence.NewGraphError("DeleteGraph", id, persistence.ErrGraphNotFound)
	}

	return nil
}

// validID rejects ids that would escape the graphs directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
