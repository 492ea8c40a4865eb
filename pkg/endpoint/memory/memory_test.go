package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/sfcflow/pkg/endpoint"
	"github.com/dukex/sfcflow/pkg/endpoint/memory"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	e := memory.New(memory.WithPrefix("ns=2;s=Plant"))

	require.NoError(t, e.Write(ctx, "Tank.Level", 10.0, models.ValueTypeNumeric))
	require.NoError(t, e.Write(ctx, "Tank.Level", 20.0, models.ValueTypeNumeric))

	value, err := e.Read(ctx, "Tank.Level")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, value, 0)

	assert.Equal(t, []any{10.0, 20.0}, e.ValuesWritten("Tank.Level"))
	assert.Equal(t, []memory.Write{
		{Address: "ns=2;s=Plant.Tank.Level", Value: 10.0, ValueType: models.ValueTypeNumeric},
		{Address: "ns=2;s=Plant.Tank.Level", Value: 20.0, ValueType: models.ValueTypeNumeric},
	}, e.Writes())
}

func TestEndpoint_ReadMissing(t *testing.T) {
	_, err := memory.New().Read(context.Background(), "Tank.Level")

	assert.ErrorIs(t, err, endpoint.ErrAddressNotFound)
}

func TestEndpoint_WriteError(t *testing.T) {
	failure := errors.New("bad node id")
	e := memory.New(memory.WithWriteError("Valve.Open", failure))

	err := e.Write(context.Background(), "Valve.Open", true, models.ValueTypeBoolean)

	require.ErrorIs(t, err, failure)
	assert.Empty(t, e.Writes())
}

func TestEndpoint_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := memory.New()
	err := e.Write(ctx, "Tank.Level", 1.0, models.ValueTypeNumeric)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.Writes())
}

func TestEndpoint_SetSeedsValue(t *testing.T) {
	e := memory.New(memory.WithValue("Tank.Level", 5.0))
	e.Set("Valve.Open", true)

	level, err := e.Read(context.Background(), "Tank.Level")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, level, 0)

	open, err := e.Read(context.Background(), "Valve.Open")
	require.NoError(t, err)
	assert.Equal(t, true, open)
	assert.Empty(t, e.Writes())
}
