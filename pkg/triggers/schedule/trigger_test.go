package schedule

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStarter struct {
	mu      sync.Mutex
	started []string
	err     error
}

func (s *recordingStarter) Start(_ context.Context, graphID string) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = append(s.started, graphID)

	return models.Snapshot{GraphID: graphID, RunID: "run"}, s.err
}

func (s *recordingStarter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.started)
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected Schedule
		wantErr  bool
	}{
		{name: "five fields", value: "mixing=*/5 * * * *", expected: Schedule{GraphID: "mixing", CronExpr: "*/5 * * * *"}},
		{name: "descriptor", value: " cleaning = @daily ", expected: Schedule{GraphID: "cleaning", CronExpr: "@daily"}},
		{name: "missing separator", value: "mixing", wantErr: true},
		{name: "missing graph", value: "=@daily", wantErr: true},
		{name: "missing expression", value: "mixing=", wantErr: true},
		{name: "invalid expression", value: "mixing=every day", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := ParseSchedule(tt.value)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, schedule)
		})
	}
}

func TestNewTrigger_RejectsInvalidSchedule(t *testing.T) {
	_, err := NewTrigger(&recordingStarter{}, slog.Default(), Schedule{GraphID: "mixing", CronExpr: "nope"})
	assert.Error(t, err)
}

func TestTrigger_Fire(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "started"},
		{name: "already running", err: engine.ErrRunInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			starter := &recordingStarter{err: tt.err}

			trigger, err := NewTrigger(starter, slog.Default())
			require.NoError(t, err)

			trigger.fire(Schedule{GraphID: "mixing", CronExpr: "@daily"})
			assert.Equal(t, []string{"mixing"}, starter.started)
		})
	}
}

func TestTrigger_StartAndStop(t *testing.T) {
	starter := &recordingStarter{}

	trigger, err := NewTrigger(starter, slog.Default(), Schedule{GraphID: "mixing", CronExpr: "@every 1s"})
	require.NoError(t, err)

	require.NoError(t, trigger.Start(t.Context()))
	require.Eventually(t, func() bool { return starter.count() > 0 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, trigger.Stop(t.Context()))

	empty, err := NewTrigger(starter, slog.Default())
	require.NoError(t, err)
	require.NoError(t, empty.Start(t.Context()))
	require.NoError(t, empty.Stop(t.Context()))
}
