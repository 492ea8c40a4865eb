package engine

import (
	"slices"

	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/models"
)

type edgeState int

const (
	edgePending edgeState = iota
	edgeFired
	edgeDead
)

type edgeKey struct {
	from, to string
}

// Outcome is how a step ended, as seen by the scheduler.
type Outcome struct {
	Finished bool
	Branch   models.Branch
}

// Scheduler tracks which steps are ready to run. Every incoming edge of a
// step must fire before the step is ready. An edge fires when its source
// finishes; for condition steps only the edge labelled with the selected
// branch fires. A step with a dead incoming edge can never run and is marked
// unreachable, which kills its own outgoing edges in turn.
//
// Scheduler is not safe for concurrent use.
type Scheduler struct {
	graph       *graph.Graph
	edges       map[edgeKey]edgeState
	admitted    map[string]bool
	unreachable map[string]bool
}

// NewScheduler creates a scheduler for g with every edge pending.
func NewScheduler(g *graph.Graph) *Scheduler {
	s := &Scheduler{
		graph:       g,
		edges:       make(map[edgeKey]edgeState),
		admitted:    make(map[string]bool),
		unreachable: make(map[string]bool),
	}

	for _, id := range g.StepIDs() {
		for _, edge := range g.Outgoing(id) {
			s.edges[edgeKey{from: edge.From, to: edge.To}] = edgePending
		}
	}

	return s
}

// Begin admits the start step.
func (s *Scheduler) Begin() []string {
	start := s.graph.Start().ID
	s.admitted[start] = true

	return []string{start}
}

// Complete records how stepID ended and returns the steps that became ready
// and the steps that became unreachable, each in ascending id order.
func (s *Scheduler) Complete(stepID string, outcome Outcome) ([]string, []string) {
	step, ok := s.graph.Step(stepID)
	if !ok {
		return nil, nil
	}

	var ready, unreachable []string

	for _, edge := range s.graph.Outgoing(stepID) {
		state := edgeDead

		if outcome.Finished && (step.Kind != models.StepKindCondition || edge.Branch == outcome.Branch) {
			state = edgeFired
		}

		s.edges[edgeKey{from: edge.From, to: edge.To}] = state

		r, u := s.evaluate(edge.To)
		ready = append(ready, r...)
		unreachable = append(unreachable, u...)
	}

	slices.Sort(ready)
	slices.Sort(unreachable)

	return slices.Compact(ready), slices.Compact(unreachable)
}

// IsUnreachable reports whether a step was ruled out.
func (s *Scheduler) IsUnreachable(stepID string) bool {
	return s.unreachable[stepID]
}

func (s *Scheduler) evaluate(stepID string) ([]string, []string) {
	if s.admitted[stepID] || s.unreachable[stepID] {
		return nil, nil
	}

	allFired := true

	for _, edge := range s.graph.Incoming(stepID) {
		switch s.edges[edgeKey{from: edge.From, to: edge.To}] {
		case edgeDead:
			return nil, s.markUnreachable(stepID)
		case edgePending:
			allFired = false
		}
	}

	if !allFired {
		return nil, nil
	}

	s.admitted[stepID] = true

	return []string{stepID}, nil
}

func (s *Scheduler) markUnreachable(stepID string) []string {
	s.unreachable[stepID] = true
	unreachable := []string{stepID}

	for _, edge := range s.graph.Outgoing(stepID) {
		s.edges[edgeKey{from: edge.From, to: edge.To}] = edgeDead

		_, u := s.evaluate(edge.To)
		unreachable = append(unreachable, u...)
	}

	return unreachable
}
