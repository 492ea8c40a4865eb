package engine_test

import (
	"testing"

	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var finished = engine.Outcome{Finished: true}

func buildGraph(t *testing.T, definition *models.GraphDefinition) *graph.Graph {
	t.Helper()

	g, err := graph.Build(definition)
	require.NoError(t, err)

	return g
}

func TestScheduler_Chain(t *testing.T) {
	g := buildGraph(t, testutil.CreateTestGraph("chain",
		[]*models.StepDefinition{
			testutil.StartStep("start"),
			testutil.WaitStep("wait", 1),
			testutil.EndStep("end"),
		},
		testutil.Chain("start", "wait", "end"),
	))

	s := engine.NewScheduler(g)

	assert.Equal(t, []string{"start"}, s.Begin())

	ready, unreachable := s.Complete("start", finished)
	assert.Equal(t, []string{"wait"}, ready)
	assert.Empty(t, unreachable)

	ready, unreachable = s.Complete("wait", finished)
	assert.Equal(t, []string{"end"}, ready)
	assert.Empty(t, unreachable)

	ready, unreachable = s.Complete("end", finished)
	assert.Empty(t, ready)
	assert.Empty(t, unreachable)
}

func andJoinGraph(t *testing.T) *graph.Graph {
	t.Helper()

	return buildGraph(t, testutil.CreateTestGraph("join",
		[]*models.StepDefinition{
			testutil.StartStep("start"),
			testutil.WaitStep("p1", 1),
			testutil.WaitStep("p2", 2),
			testutil.WaitStep("join", 0),
			testutil.EndStep("end"),
		},
		[]*models.EdgeDefinition{
			testutil.Edge("start", "p1"),
			testutil.Edge("start", "p2"),
			testutil.Edge("p1", "join"),
			testutil.Edge("p2", "join"),
			testutil.Edge("join", "end"),
		},
	))
}

func TestScheduler_AndJoin(t *testing.T) {
	tests := []struct {
		name  string
		order []string
	}{
		{name: "p1 first", order: []string{"p1", "p2"}},
		{name: "p2 first", order: []string{"p2", "p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := engine.NewScheduler(andJoinGraph(t))
			s.Begin()

			ready, _ := s.Complete("start", finished)
			assert.Equal(t, []string{"p1", "p2"}, ready)

			ready, _ = s.Complete(tt.order[0], finished)
			assert.Empty(t, ready)

			ready, _ = s.Complete(tt.order[1], finished)
			assert.Equal(t, []string{"join"}, ready)
		})
	}
}

func TestScheduler_AndJoinWithErroredPredecessor(t *testing.T) {
	s := engine.NewScheduler(andJoinGraph(t))
	s.Begin()
	s.Complete("start", finished)

	ready, unreachable := s.Complete("p1", engine.Outcome{})
	assert.Empty(t, ready)
	assert.Equal(t, []string{"end", "join"}, unreachable)
	assert.True(t, s.IsUnreachable("join"))

	ready, unreachable = s.Complete("p2", finished)
	assert.Empty(t, ready)
	assert.Empty(t, unreachable)
}

func conditionGraph(t *testing.T) *graph.Graph {
	t.Helper()

	return buildGraph(t, testutil.CreateTestGraph("condition",
		[]*models.StepDefinition{
			testutil.StartStep("start"),
			testutil.ConditionStep("check", "level", models.OperatorGreater, 3),
			testutil.WaitStep("high", 1),
			testutil.WaitStep("low", 1),
			testutil.EndStep("end_high"),
			testutil.EndStep("end_low"),
		},
		[]*models.EdgeDefinition{
			testutil.Edge("start", "check"),
			testutil.BranchEdge("check", "high", models.BranchTrue),
			testutil.BranchEdge("check", "low", models.BranchFalse),
			testutil.Edge("high", "end_high"),
			testutil.Edge("low", "end_low"),
		},
	))
}

func TestScheduler_ConditionBranches(t *testing.T) {
	tests := []struct {
		name        string
		branch      models.Branch
		ready       []string
		unreachable []string
	}{
		{name: "true branch", branch: models.BranchTrue, ready: []string{"high"}, unreachable: []string{"end_low", "low"}},
		{name: "false branch", branch: models.BranchFalse, ready: []string{"low"}, unreachable: []string{"end_high", "high"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := engine.NewScheduler(conditionGraph(t))
			s.Begin()
			s.Complete("start", finished)

			ready, unreachable := s.Complete("check", engine.Outcome{Finished: true, Branch: tt.branch})
			assert.Equal(t, tt.ready, ready)
			assert.Equal(t, tt.unreachable, unreachable)
		})
	}
}

func TestScheduler_ReconvergingBranchesNeverJoin(t *testing.T) {
	g := buildGraph(t, testutil.CreateTestGraph("reconverge",
		[]*models.StepDefinition{
			testutil.StartStep("start"),
			testutil.ConditionStep("check", "level", models.OperatorGreater, 3),
			testutil.WaitStep("high", 1),
			testutil.WaitStep("low", 1),
			testutil.EndStep("end"),
		},
		[]*models.EdgeDefinition{
			testutil.Edge("start", "check"),
			testutil.BranchEdge("check", "high", models.BranchTrue),
			testutil.BranchEdge("check", "low", models.BranchFalse),
			testutil.Edge("high", "end"),
			testutil.Edge("low", "end"),
		},
	))

	s := engine.NewScheduler(g)
	s.Begin()
	s.Complete("start", finished)

	ready, unreachable := s.Complete("check", engine.Outcome{Finished: true, Branch: models.BranchTrue})
	assert.Equal(t, []string{"high"}, ready)
	assert.Equal(t, []string{"end", "low"}, unreachable)

	ready, _ = s.Complete("high", finished)
	assert.Empty(t, ready)
}
