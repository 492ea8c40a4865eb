// Package events defines the notifications emitted while graphs run.
package events

import (
	"time"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every status event.
const Topic = "sfcflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStatusChangedEvent  EventType = "run.status.changed"
	StepStatusChangedEvent EventType = "step.status.changed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	GraphID   string    `json:"graph_id"`
	RunID     string    `json:"run_id,omitempty"`
}

// RunStatusChanged is emitted when a run starts, completes, aborts or is reset.
type RunStatusChanged struct {
	BaseEvent

	Status         models.RunStatus `json:"status"`
	PreviousStatus models.RunStatus `json:"previous_status,omitempty"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	EndedAt        *time.Time       `json:"ended_at,omitempty"`
	HasErrors      bool             `json:"has_errors"`
}

func (e RunStatusChanged) GetType() EventType {
	return RunStatusChangedEvent
}

// StepStatusChanged is emitted when a step changes state or becomes unreachable.
// Progress ticks are not emitted.
type StepStatusChanged struct {
	BaseEvent

	StepID         string           `json:"step_id"`
	State          models.StepState `json:"state"`
	PreviousState  models.StepState `json:"previous_state,omitempty"`
	ElapsedSeconds float64          `json:"elapsed_seconds"`
	Error          string           `json:"error,omitempty"`
	Unreachable    bool             `json:"unreachable,omitempty"`
}

func (e StepStatusChanged) GetType() EventType {
	return StepStatusChangedEvent
}

func NewBaseEvent(eventType EventType, graphID, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		GraphID:   graphID,
		RunID:     runID,
	}
}
