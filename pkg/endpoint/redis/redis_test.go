package redis_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/sfcflow/pkg/endpoint"
	redisendpoint "github.com/dukex/sfcflow/pkg/endpoint/redis"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	address, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return ctx, "redis://" + address + "/0"
}

func TestEndpoint_WriteAndRead(t *testing.T) {
	ctx, url := setupRedis(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	e, err := redisendpoint.Connect(ctx, url, logger, redisendpoint.WithPrefix("plant"), redisendpoint.WithChannel("plant:writes"))
	require.NoError(t, err)

	defer func() {
		require.NoError(t, e.Close())
	}()

	require.NoError(t, e.Write(ctx, "Tank.Level", 42.5, models.ValueTypeNumeric))
	require.NoError(t, e.Write(ctx, "Valve.Open", true, models.ValueTypeBoolean))

	level, err := e.Read(ctx, "Tank.Level")
	require.NoError(t, err)
	assert.InDelta(t, 42.5, level, 0)

	open, err := e.Read(ctx, "Valve.Open")
	require.NoError(t, err)
	assert.Equal(t, true, open)

	options, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(options)
	defer client.Close()

	raw, err := client.Get(ctx, "plant.Tank.Level").Result()
	require.NoError(t, err)
	assert.Equal(t, "42.5", raw)

	_, err = e.Read(ctx, "Missing")
	assert.ErrorIs(t, err, endpoint.ErrAddressNotFound)
}
