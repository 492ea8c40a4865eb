package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/persistence"
	"github.com/dukex/sfcflow/pkg/persistence/postgresql"
	"github.com/dukex/sfcflow/pkg/testutil"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"sfc_graphs", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("sfcflow_test"),
			postgres.WithUsername("sfcflow"),
			postgres.WithPassword("sfcflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func mixingGraph() *models.GraphDefinition {
	return testutil.CreateTestGraph("mixing",
		[]*models.StepDefinition{
			testutil.StartStep("start"),
			testutil.SetValueStep("fill", "tank.level", 0, 80, 30),
			testutil.EndStep("end"),
		},
		testutil.Chain("start", "fill", "end"),
		testutil.WithName("Mixing"),
	)
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// Running migrations again is a no-op.
	again, err := postgresql.NewPersistence(ctx, slog.Default(), databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestGraphRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	graphs, err := p.Graphs(ctx)
	require.NoError(t, err)
	assert.Empty(t, graphs)

	original := mixingGraph()
	require.NoError(t, p.SaveGraph(ctx, original))
	assert.False(t, original.CreatedAt.IsZero())

	loaded, err := p.GraphByID(ctx, "mixing")
	require.NoError(t, err)
	assert.Equal(t, "Mixing", loaded.Name)
	require.Len(t, loaded.Steps, 3)
	assert.Equal(t, models.StepKindSetValue, loaded.Steps[1].Kind)
	assert.InDelta(t, 80.0, loaded.Steps[1].Config["end_value"], 0.0001)
	assert.Len(t, loaded.Edges, 2)

	createdAt := loaded.CreatedAt

	loaded.Name = "Mixing v2"
	loaded.CreatedAt = time.Time{}
	require.NoError(t, p.SaveGraph(ctx, loaded))
	assert.WithinDuration(t, createdAt, loaded.CreatedAt, time.Millisecond)

	graphs, err = p.Graphs(ctx)
	require.NoError(t, err)
	require.Len(t, graphs, 1)
	assert.Equal(t, "Mixing v2", graphs[0].Name)

	require.NoError(t, p.DeleteGraph(ctx, "mixing"))

	_, err = p.GraphByID(ctx, "mixing")
	assert.True(t, persistence.IsGraphNotFound(err))

	err = p.DeleteGraph(ctx, "mixing")
	assert.True(t, persistence.IsGraphNotFound(err))

	err = p.SaveGraph(ctx, &models.GraphDefinition{})
	assert.ErrorIs(t, err, persistence.ErrGraphIDRequired)
}
