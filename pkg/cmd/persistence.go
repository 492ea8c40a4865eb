package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/sfcflow/pkg/persistence"
	"github.com/dukex/sfcflow/pkg/persistence/file"
	"github.com/dukex/sfcflow/pkg/persistence/postgresql"
)

// NewPersistence picks the graph repository from the URL scheme. URLs
// without a known scheme are treated as a file directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
