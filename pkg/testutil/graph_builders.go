// Package testutil provides test data builders and utilities for testing.
package testutil

import "github.com/dukex/sfcflow/pkg/models"

// CreateTestGraph creates a graph definition with the given steps and edges
// that can be further adjusted with overrides.
func CreateTestGraph(id string, steps []*models.StepDefinition, edges []*models.EdgeDefinition, overrides ...func(*models.GraphDefinition)) *models.GraphDefinition {
	graph := &models.GraphDefinition{
		ID:    id,
		Name:  "Test Graph " + id,
		Steps: steps,
		Edges: edges,
	}

	for _, override := range overrides {
		override(graph)
	}

	return graph
}

// WithName sets the graph name.
func WithName(name string) func(*models.GraphDefinition) {
	return func(g *models.GraphDefinition) {
		g.Name = name
	}
}

// StartStep creates a start step.
func StartStep(id string) *models.StepDefinition {
	return &models.StepDefinition{ID: id, Kind: models.StepKindStart}
}

// EndStep creates an end step.
func EndStep(id string) *models.StepDefinition {
	return &models.StepDefinition{ID: id, Kind: models.StepKindEnd}
}

// WaitStep creates a wait step.
func WaitStep(id string, seconds float64) *models.StepDefinition {
	return &models.StepDefinition{
		ID:     id,
		Kind:   models.StepKindWait,
		Config: map[string]any{"duration_seconds": seconds},
	}
}

// ConditionStep creates a condition step comparing the value at address with value.
func ConditionStep(id, address string, operator models.Operator, value any) *models.StepDefinition {
	return &models.StepDefinition{
		ID:   id,
		Kind: models.StepKindCondition,
		Config: map[string]any{
			"predicate": map[string]any{
				"address":  address,
				"operator": string(operator),
				"value":    value,
			},
		},
	}
}

// SetValueStep creates a numeric set-value step.
func SetValueStep(id, address string, start, end, seconds float64) *models.StepDefinition {
	return &models.StepDefinition{
		ID:   id,
		Kind: models.StepKindSetValue,
		Config: map[string]any{
			"target_address":   address,
			"value_type":       string(models.ValueTypeNumeric),
			"start_value":      start,
			"end_value":        end,
			"duration_seconds": seconds,
		},
	}
}

// BooleanSetValueStep creates a boolean set-value step.
func BooleanSetValueStep(id, address string, start, end bool, seconds float64) *models.StepDefinition {
	return &models.StepDefinition{
		ID:   id,
		Kind: models.StepKindSetValue,
		Config: map[string]any{
			"target_address":   address,
			"value_type":       string(models.ValueTypeBoolean),
			"start_value":      start,
			"end_value":        end,
			"duration_seconds": seconds,
		},
	}
}

// Edge creates an unlabelled edge.
func Edge(from, to string) *models.EdgeDefinition {
	return &models.EdgeDefinition{From: from, To: to}
}

// BranchEdge creates an edge leaving a condition step.
func BranchEdge(from, to string, branch models.Branch) *models.EdgeDefinition {
	return &models.EdgeDefinition{From: from, To: to, Branch: branch}
}

// Chain links the given step ids one after another.
func Chain(ids ...string) []*models.EdgeDefinition {
	edges := make([]*models.EdgeDefinition, 0, len(ids))
	for i := 1; i < len(ids); i++ {
		edges = append(edges, Edge(ids[i-1], ids[i]))
	}

	return edges
}
