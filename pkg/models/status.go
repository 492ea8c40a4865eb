package models

import "time"

// StepState is the lifecycle state of a step inside a run.
type StepState string

const (
	StepStateIdle     StepState = "idle"
	StepStateRunning  StepState = "running"
	StepStateFinished StepState = "finished"
	StepStateErrored  StepState = "errored"
	StepStateStopped  StepState = "stopped"
)

// IsTerminal reports whether a step in this state will not change again during the run.
func (s StepState) IsTerminal() bool {
	return s == StepStateFinished || s == StepStateErrored || s == StepStateStopped
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
)

// IsTerminal reports whether the run has ended.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusAborted
}

// StepStatus is the observable status of one step.
type StepStatus struct {
	State          StepState  `json:"state"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	Error          string     `json:"error,omitempty"`
	// Unreachable marks an idle step that can no longer run because a
	// predecessor errored or a condition selected another branch.
	Unreachable bool `json:"unreachable,omitempty"`
}

// Snapshot is an immutable view of a run.
type Snapshot struct {
	GraphID     string                `json:"graph_id"`
	RunID       string                `json:"run_id,omitempty"`
	Status      RunStatus             `json:"status"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	EndedAt     *time.Time            `json:"ended_at,omitempty"`
	Steps       map[string]StepStatus `json:"steps"`
	IsRunning   bool                  `json:"is_running"`
	AllTerminal bool                  `json:"all_terminal"`
	HasErrors   bool                  `json:"has_errors"`
}

// NewSnapshot builds a snapshot and computes its aggregate flags. The steps
// map is copied.
func NewSnapshot(graphID, runID string, status RunStatus, startedAt, endedAt *time.Time, steps map[string]StepStatus) Snapshot {
	copied := make(map[string]StepStatus, len(steps))
	for id, step := range steps {
		copied[id] = step
	}

	snapshot := Snapshot{
		GraphID:   graphID,
		RunID:     runID,
		Status:    status,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Steps:     copied,
		IsRunning: status == RunStatusRunning,
	}

	snapshot.AllTerminal = len(copied) > 0

	for _, step := range copied {
		if step.State == StepStateErrored {
			snapshot.HasErrors = true
		}

		if !step.State.IsTerminal() && !(step.State == StepStateIdle && step.Unreachable) {
			snapshot.AllTerminal = false
		}
	}

	return snapshot
}

// PendingSnapshot is the snapshot of a graph without an active or retained run.
func PendingSnapshot(graphID string) Snapshot {
	return NewSnapshot(graphID, "", RunStatusPending, nil, nil, nil)
}
