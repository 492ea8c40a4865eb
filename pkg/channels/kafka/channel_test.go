package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/sfcflow/pkg/eventbus"
	"github.com/dukex/sfcflow/pkg/events"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaTc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestCreateChannel_NoBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {""}} {
		pub, sub, err := CreateChannel(watermill.NopLogger{}, "sfcflow-test", brokers)
		assert.ErrorIs(t, err, ErrNoBrokers)
		assert.Nil(t, pub)
		assert.Nil(t, sub)
	}
}

func startKafka(t *testing.T) []string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}

	ctx := context.Background()

	container, err := kafkaTc.Run(ctx, "confluentinc/confluent-local:7.7.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_CREATE_TOPICS": "true",
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return brokers
}

func TestCreateChannel_PublishAndSubscribe(t *testing.T) {
	brokers := startKafka(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := CreateChannel(watermill.NopLogger{}, "sfcflow-test", brokers)
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	var (
		mu       sync.Mutex
		received []*events.StepStatusChanged
	)

	require.NoError(t, bus.Handle(events.StepStatusChangedEvent, func(_ context.Context, event any) error {
		mu.Lock()
		defer mu.Unlock()

		if changed, ok := event.(*events.StepStatusChanged); ok {
			received = append(received, changed)
		}

		return nil
	}))

	publish := func() error {
		return bus.Publish(ctx, "tank", events.StepStatusChanged{
			BaseEvent: events.NewBaseEvent(events.StepStatusChangedEvent, "tank", "run-1"),
			StepID:    "fill",
			State:     models.StepStateFinished,
		})
	}

	// Creates the topic before the consumer group joins.
	require.NoError(t, publish())
	require.NoError(t, bus.Subscribe(ctx))

	// The subscriber starts at the newest offset, so keep publishing until
	// the consumer group has joined.
	require.Eventually(t, func() bool {
		mu.Lock()
		count := len(received)
		mu.Unlock()

		if count > 0 {
			return true
		}

		_ = publish()

		return false
	}, time.Minute, time.Second)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, "fill", received[0].StepID)
	assert.Equal(t, "tank", received[0].GraphID)
	assert.Equal(t, models.StepStateFinished, received[0].State)
}
