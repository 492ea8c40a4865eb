// Package file stores graph definitions as files under a root directory.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root      string
	graphRepo *GraphRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:      cleanRoot,
		graphRepo: NewGraphRepository(cleanRoot),
	}
}

var _ persistence.Persistence = (*Persistence)(nil)

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Graphs(ctx context.Context) ([]*models.GraphDefinition, error) {
	return fp.graphRepo.GetAll(ctx)
}

func (fp *Persistence) GraphByID(ctx context.Context, id string) (*models.GraphDefinition, error) {
	return fp.graphRepo.GetByID(ctx, id)
}

func (fp *Persistence) SaveGraph(ctx context.Context, graph *models.GraphDefinition) error {
	return fp.graphRepo.Save(ctx, graph)
}

func (fp *Persistence) DeleteGraph(ctx context.Context, id string) error {
	return fp.graphRepo.Delete(ctx, id)
}
