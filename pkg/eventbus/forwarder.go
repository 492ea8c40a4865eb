package eventbus

import (
	"context"
	"log/slog"
	"slices"

	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/events"
	"github.com/dukex/sfcflow/pkg/models"
)

const forwarderBuffer = 1024

// UpdateSource is where the forwarder reads snapshots from.
type UpdateSource interface {
	Subscribe(graphID string, buffer int) (<-chan engine.Update, func())
}

// StatusForwarder publishes the state changes found between consecutive
// snapshots of each graph. Progress-only updates produce no events.
type StatusForwarder struct {
	bus      EventPublisher
	logger   *slog.Logger
	previous map[string]models.Snapshot
}

func NewStatusForwarder(bus EventPublisher, logger *slog.Logger) *StatusForwarder {
	return &StatusForwarder{
		bus:      bus,
		logger:   logger.With("module", "status_forwarder"),
		previous: make(map[string]models.Snapshot),
	}
}

// Run forwards updates from source until ctx is cancelled.
func (f *StatusForwarder) Run(ctx context.Context, source UpdateSource) error {
	updates, cancel := source.Subscribe("", forwarderBuffer)
	defer cancel()

	f.logger.InfoContext(ctx, "Forwarding status events", "topic", events.Topic)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			f.forward(ctx, update.Snapshot)
		}
	}
}

func (f *StatusForwarder) forward(ctx context.Context, current models.Snapshot) {
	previous, ok := f.previous[current.GraphID]
	if !ok {
		previous = models.PendingSnapshot(current.GraphID)
	}

	f.previous[current.GraphID] = current

	for _, event := range Changes(previous, current) {
		if err := f.bus.Publish(ctx, current.GraphID, event); err != nil {
			f.logger.ErrorContext(ctx, "Failed to publish status event",
				"graph_id", current.GraphID,
				"event_type", event.GetType(),
				"error", err,
			)
		}
	}
}

// Changes returns the events describing how current differs from previous.
// Step events come in ascending step id order, followed by the run event.
func Changes(previous, current models.Snapshot) []Event {
	var changes []Event

	sameRun := previous.RunID == current.RunID

	ids := make([]string, 0, len(current.Steps))
	for id := range current.Steps {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	for _, id := range ids {
		step := current.Steps[id]

		before := models.StepStatus{State: models.StepStateIdle}
		if sameRun {
			if s, ok := previous.Steps[id]; ok {
				before = s
			}
		}

		if step.State == before.State && step.Unreachable == before.Unreachable {
			continue
		}

		changes = append(changes, events.StepStatusChanged{
			BaseEvent:      events.NewBaseEvent(events.StepStatusChangedEvent, current.GraphID, current.RunID),
			StepID:         id,
			State:          step.State,
			PreviousState:  before.State,
			ElapsedSeconds: step.ElapsedSeconds,
			Error:          step.Error,
			Unreachable:    step.Unreachable,
		})
	}

	if !sameRun || previous.Status != current.Status {
		changes = append(changes, events.RunStatusChanged{
			BaseEvent:      events.NewBaseEvent(events.RunStatusChangedEvent, current.GraphID, current.RunID),
			Status:         current.Status,
			PreviousStatus: previous.Status,
			StartedAt:      current.StartedAt,
			EndedAt:        current.EndedAt,
			HasErrors:      current.HasErrors,
		})
	}

	return changes
}
