package engine

import (
	"context"
	"testing"

	"github.com/dukex/sfcflow/pkg/endpoint/memory"
	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHoldRun(t *testing.T) *run {
	t.Helper()

	g, err := graph.Build(testutil.CreateTestGraph("hold",
		[]*models.StepDefinition{
			testutil.StartStep("start"),
			testutil.WaitStep("hold", 60),
			testutil.EndStep("end"),
		},
		testutil.Chain("start", "hold", "end"),
	))
	require.NoError(t, err)

	c := NewCoordinator("hold", memory.New(), WithClock(clockwork.NewFakeClock()))
	r := c.newRun(context.Background(), g)
	r.begin()

	t.Cleanup(func() {
		r.cancel()
		r.wg.Wait()
	})

	r.steps["start"] = models.StepStatus{State: models.StepStateFinished}
	r.steps["hold"] = models.StepStatus{State: models.StepStateRunning, ElapsedSeconds: 1}
	r.running = 1

	return r
}

func TestRun_CancelledStepReadAfterStopIsStopped(t *testing.T) {
	r := newHoldRun(t)

	r.cancel()

	aborted := r.receive(stepEvent{stepID: "hold", done: true, err: context.Canceled})
	require.True(t, aborted)

	snapshot := r.publisher.Latest("hold")
	assert.Equal(t, models.RunStatusAborted, snapshot.Status)
	assert.Equal(t, models.StepStateStopped, snapshot.Steps["hold"].State)
	assert.Empty(t, snapshot.Steps["hold"].Error)
	assert.Equal(t, models.StepStateStopped, snapshot.Steps["end"].State)
	assert.False(t, snapshot.HasErrors)
	assert.Zero(t, r.running)
}

func TestRun_CancelledStepQueuedBeforeStop(t *testing.T) {
	for range 50 {
		r := newHoldRun(t)

		r.events <- stepEvent{stepID: "hold", done: true, err: context.Canceled}
		r.cancel()

		r.loop()

		snapshot := r.publisher.Latest("hold")
		require.Equal(t, models.RunStatusAborted, snapshot.Status)
		require.Equal(t, models.StepStateStopped, snapshot.Steps["hold"].State)
		require.False(t, snapshot.HasErrors)
	}
}

func TestRun_EventBeforeStopIsHandled(t *testing.T) {
	r := newHoldRun(t)

	aborted := r.receive(stepEvent{stepID: "hold", done: true})
	assert.False(t, aborted)
	assert.Equal(t, models.StepStateFinished, r.steps["hold"].State)
	assert.Equal(t, models.StepStateRunning, r.steps["end"].State)
}
