// Package models provides the core domain types for step graphs and their runs.
package models

import "time"

// StepKind identifies the behavior of a step.
type StepKind string

const (
	StepKindStart     StepKind = "start"
	StepKindEnd       StepKind = "end"
	StepKindWait      StepKind = "wait"
	StepKindCondition StepKind = "condition"
	StepKindSetValue  StepKind = "setvalue"
)

// StepKinds lists every supported step kind.
func StepKinds() []StepKind {
	return []StepKind{StepKindStart, StepKindEnd, StepKindWait, StepKindCondition, StepKindSetValue}
}

// IsValid reports whether the kind is one the engine can execute.
func (k StepKind) IsValid() bool {
	for _, kind := range StepKinds() {
		if k == kind {
			return true
		}
	}

	return false
}

// Branch labels an edge leaving a condition step.
type Branch string

const (
	BranchNone  Branch = ""
	BranchTrue  Branch = "true"
	BranchFalse Branch = "false"
)

// BranchFor returns the branch label selected by a predicate result.
func BranchFor(result bool) Branch {
	if result {
		return BranchTrue
	}

	return BranchFalse
}

// GraphDefinition is the authored, not yet validated, form of a step graph.
type GraphDefinition struct {
	ID          string            `json:"id"                    validate:"required"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Steps       []*StepDefinition `json:"steps"                 validate:"dive"`
	Edges       []*EdgeDefinition `json:"edges"                 validate:"dive"`
	CreatedAt   time.Time         `json:"created_at,omitzero"`
	UpdatedAt   time.Time         `json:"updated_at,omitzero"`
}

// StepDefinition describes one step. Config holds the kind specific settings.
type StepDefinition struct {
	ID     string         `json:"id"               validate:"required"`
	Kind   StepKind       `json:"kind"             validate:"required"`
	Name   string         `json:"name,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// EdgeDefinition is a directed dependency from one step to another.
type EdgeDefinition struct {
	From   string `json:"from"             validate:"required"`
	To     string `json:"to"               validate:"required"`
	Branch Branch `json:"branch,omitempty"`
}
