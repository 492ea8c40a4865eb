package events

import (
	"encoding/json"
	"testing"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepStatusChanged(t *testing.T) {
	original := StepStatusChanged{
		BaseEvent:      NewBaseEvent(StepStatusChangedEvent, "graph-1", "run-1"),
		StepID:         "fill",
		State:          models.StepStateErrored,
		PreviousState:  models.StepStateRunning,
		ElapsedSeconds: 2.5,
		Error:          "write tank.level: plc offline",
	}

	assert.Equal(t, StepStatusChangedEvent, original.GetType())
	assert.NotEmpty(t, original.ID)
	assert.False(t, original.Timestamp.IsZero())

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"step.status.changed"`)
	assert.Contains(t, string(data), `"graph_id":"graph-1"`)
	assert.Contains(t, string(data), `"previous_state":"running"`)
	assert.NotContains(t, string(data), `"unreachable"`)

	var decoded StepStatusChanged

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.StepID, decoded.StepID)
	assert.Equal(t, original.State, decoded.State)
	assert.Equal(t, original.Error, decoded.Error)
}

func TestRunStatusChanged(t *testing.T) {
	event := RunStatusChanged{
		BaseEvent: NewBaseEvent(RunStatusChangedEvent, "graph-1", "run-1"),
		Status:    models.RunStatusAborted,
	}

	assert.Equal(t, RunStatusChangedEvent, event.GetType())

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"aborted"`)
	assert.NotContains(t, string(data), `"ended_at"`)
}
