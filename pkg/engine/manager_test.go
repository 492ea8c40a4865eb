package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/sfcflow/pkg/endpoint/memory"
	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errGraphMissing = errors.New("graph missing")

type graphSource map[string]*models.GraphDefinition

func (s graphSource) GraphByID(_ context.Context, id string) (*models.GraphDefinition, error) {
	definition, ok := s[id]
	if !ok {
		return nil, errGraphMissing
	}

	return definition, nil
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()

	source := graphSource{
		"fill": testutil.CreateTestGraph("fill",
			[]*models.StepDefinition{
				testutil.StartStep("start"),
				testutil.SetValueStep("fill", "tank.level", 0, 100, 2),
				testutil.EndStep("end"),
			},
			testutil.Chain("start", "fill", "end"),
		),
		"hold": testutil.CreateTestGraph("hold",
			[]*models.StepDefinition{
				testutil.StartStep("start"),
				testutil.WaitStep("hold", 600),
				testutil.EndStep("end"),
			},
			testutil.Chain("start", "hold", "end"),
		),
	}

	manager := engine.NewManager(source, memory.New(), slog.Default(), engine.WithClock(clock), engine.WithTickInterval(tick))

	updates, cancel := manager.Subscribe("", 10000)

	_, err := manager.Start(ctx, "missing")
	require.ErrorIs(t, err, errGraphMissing)

	_, err = manager.Start(ctx, "fill")
	require.NoError(t, err)

	_, err = manager.Start(ctx, "hold")
	require.NoError(t, err)

	advanceUntil(t, clock, func() bool {
		return manager.Status("fill").Status.IsTerminal()
	})

	assert.Equal(t, models.RunStatusCompleted, manager.Status("fill").Status)
	assert.Equal(t, models.RunStatusRunning, manager.Status("hold").Status)

	require.NoError(t, manager.StopAll(ctx))
	assert.Equal(t, models.RunStatusAborted, manager.Status("hold").Status)

	snapshot, err := manager.Wait(ctx, "hold")
	require.NoError(t, err)
	assert.Equal(t, models.StepStateStopped, snapshot.Steps["hold"].State)

	snapshot, err = manager.Reset(ctx, "hold")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, snapshot.Status)

	snapshot, err = manager.Stop(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, snapshot.Status)

	graphs := map[string]bool{}
	for _, update := range collect(updates, cancel) {
		graphs[update.Snapshot.GraphID] = true
	}

	assert.True(t, graphs["fill"])
	assert.True(t, graphs["hold"])
}
