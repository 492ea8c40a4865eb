// Package graph turns graph definitions into validated, immutable step graphs.
package graph

import (
	"slices"
	"strings"

	"github.com/dukex/sfcflow/pkg/models"
)

// Step is an executable step. Exactly one of the config pointers is set for
// wait, condition and setvalue steps; start and end steps carry none.
type Step struct {
	ID   string
	Name string
	Kind models.StepKind

	Wait      *models.WaitConfig
	Condition *models.ConditionConfig
	SetValue  *models.SetValueConfig
}

// Edge is a validated dependency between two steps.
type Edge struct {
	From   string
	To     string
	Branch models.Branch
}

// Graph is a validated step graph. It is safe for concurrent reads.
type Graph struct {
	id       string
	name     string
	startID  string
	order    []string
	steps    map[string]*Step
	outgoing map[string][]Edge
	incoming map[string][]Edge
}

// ID returns the graph identifier.
func (g *Graph) ID() string { return g.id }

// Name returns the graph display name.
func (g *Graph) Name() string { return g.name }

// Start returns the single start step.
func (g *Graph) Start() *Step { return g.steps[g.startID] }

// Step returns the step with the given id.
func (g *Graph) Step(id string) (*Step, bool) {
	step, ok := g.steps[id]

	return step, ok
}

// StepIDs returns every step id in ascending order.
func (g *Graph) StepIDs() []string {
	return slices.Clone(g.order)
}

// Len returns the number of steps.
func (g *Graph) Len() int { return len(g.order) }

// Outgoing returns the edges leaving a step, ordered by target id.
func (g *Graph) Outgoing(id string) []Edge {
	return slices.Clone(g.outgoing[id])
}

// Incoming returns the edges entering a step, ordered by source id.
func (g *Graph) Incoming(id string) []Edge {
	return slices.Clone(g.incoming[id])
}

// Validate reports whether a definition forms an executable graph.
func Validate(definition *models.GraphDefinition) error {
	_, err := Build(definition)

	return err
}

// Build validates a definition and returns its executable graph. The result
// shares no memory with the definition, so later edits to the definition do
// not affect it.
func Build(definition *models.GraphDefinition) (*Graph, error) {
	if definition == nil {
		return nil, newValidationError(ErrorKindInvalidDocument, "", "graph definition is empty")
	}

	g := &Graph{
		id:       definition.ID,
		name:     definition.Name,
		steps:    make(map[string]*Step, len(definition.Steps)),
		outgoing: make(map[string][]Edge),
		incoming: make(map[string][]Edge),
	}

	if err := g.addSteps(definition.Steps); err != nil {
		return nil, err
	}

	if err := g.checkStartAndEnd(); err != nil {
		return nil, err
	}

	if err := g.addEdges(definition.Edges); err != nil {
		return nil, err
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}

	if err := g.checkConnectivity(); err != nil {
		return nil, err
	}

	return g, nil
}

func (g *Graph) addSteps(definitions []*models.StepDefinition) error {
	for _, definition := range definitions {
		if definition == nil || definition.ID == "" {
			return newValidationError(ErrorKindInvalidDocument, "", "every step needs an id")
		}

		if _, exists := g.steps[definition.ID]; exists {
			return newValidationError(ErrorKindDuplicateStep, definition.ID, "step id is declared more than once")
		}

		if !definition.Kind.IsValid() {
			return newValidationError(ErrorKindMalformedConfig, definition.ID, "unknown step kind '%s'", definition.Kind)
		}

		step, err := decodeStep(definition)
		if err != nil {
			return newValidationError(ErrorKindMalformedConfig, definition.ID, "%v", err)
		}

		g.steps[step.ID] = step
		g.order = append(g.order, step.ID)
	}

	slices.Sort(g.order)

	return nil
}

func (g *Graph) checkStartAndEnd() error {
	var starts []string

	ends := 0

	for _, id := range g.order {
		switch g.steps[id].Kind {
		case models.StepKindStart:
			starts = append(starts, id)
		case models.StepKindEnd:
			ends++
		}
	}

	switch {
	case len(starts) == 0:
		return newValidationError(ErrorKindNoStart, "", "graph has no start step")
	case len(starts) > 1:
		return newValidationError(ErrorKindMultipleStart, starts[1], "graph has %d start steps", len(starts))
	case ends == 0:
		return newValidationError(ErrorKindNoEnd, "", "graph has no end step")
	}

	g.startID = starts[0]

	return nil
}

type edgeKey struct {
	from, to string
}

func (g *Graph) addEdges(definitions []*models.EdgeDefinition) error {
	seen := make(map[edgeKey]bool, len(definitions))
	branches := make(map[string]map[models.Branch]bool)

	for _, definition := range definitions {
		if definition == nil {
			continue
		}

		from, ok := g.steps[definition.From]
		if !ok {
			return newValidationError(ErrorKindDanglingEdge, definition.From, "edge %s -> %s starts at an undeclared step", definition.From, definition.To)
		}

		to, ok := g.steps[definition.To]
		if !ok {
			return newValidationError(ErrorKindDanglingEdge, definition.To, "edge %s -> %s ends at an undeclared step", definition.From, definition.To)
		}

		key := edgeKey{from: from.ID, to: to.ID}
		if seen[key] {
			return newValidationError(ErrorKindMalformedConfig, from.ID, "duplicate edge to '%s'", to.ID)
		}

		seen[key] = true

		switch {
		case to.Kind == models.StepKindStart:
			return newValidationError(ErrorKindMalformedConfig, to.ID, "start step cannot have incoming edges")
		case from.Kind == models.StepKindEnd:
			return newValidationError(ErrorKindMalformedConfig, from.ID, "end step cannot have outgoing edges")
		case from.Kind == models.StepKindCondition:
			if definition.Branch != models.BranchTrue && definition.Branch != models.BranchFalse {
				return newValidationError(ErrorKindMalformedConfig, from.ID, "edge to '%s' needs branch 'true' or 'false'", to.ID)
			}

			if branches[from.ID] == nil {
				branches[from.ID] = make(map[models.Branch]bool)
			}

			if branches[from.ID][definition.Branch] {
				return newValidationError(ErrorKindMalformedConfig, from.ID, "branch '%s' is used by more than one edge", definition.Branch)
			}

			branches[from.ID][definition.Branch] = true
		case definition.Branch != models.BranchNone:
			return newValidationError(ErrorKindMalformedConfig, from.ID, "only condition steps can label edges with a branch")
		}

		edge := Edge{From: from.ID, To: to.ID, Branch: definition.Branch}
		g.outgoing[from.ID] = append(g.outgoing[from.ID], edge)
		g.incoming[to.ID] = append(g.incoming[to.ID], edge)
	}

	for id := range g.outgoing {
		slices.SortFunc(g.outgoing[id], func(a, b Edge) int { return strings.Compare(a.To, b.To) })
	}

	for id := range g.incoming {
		slices.SortFunc(g.incoming[id], func(a, b Edge) int { return strings.Compare(a.From, b.From) })
	}

	return nil
}

// detectCycles walks the graph depth first; reaching a step that is still on
// the current path means the graph loops.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		visiting[id] = true

		for _, edge := range g.outgoing[id] {
			if visiting[edge.To] {
				return newValidationError(ErrorKindCycle, edge.To, "cycle detected involving step '%s'", edge.To)
			}

			if !visited[edge.To] {
				if err := visit(edge.To); err != nil {
					return err
				}
			}
		}

		delete(visiting, id)
		visited[id] = true

		return nil
	}

	for _, id := range g.order {
		if !visited[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *Graph) checkConnectivity() error {
	for _, id := range g.order {
		step := g.steps[id]

		if step.Kind != models.StepKindStart && len(g.incoming[id]) == 0 {
			return newValidationError(ErrorKindDisconnectedStep, id, "step has no incoming edges")
		}

		if step.Kind != models.StepKindEnd && len(g.outgoing[id]) == 0 {
			return newValidationError(ErrorKindDisconnectedStep, id, "step has no outgoing edges")
		}
	}

	return nil
}
