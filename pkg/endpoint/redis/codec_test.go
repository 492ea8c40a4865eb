package redis

import (
	"testing"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		valueType models.ValueType
		expected  string
	}{
		{name: "integral number", value: 100.0, valueType: models.ValueTypeNumeric, expected: "100"},
		{name: "fraction", value: 12.25, valueType: models.ValueTypeNumeric, expected: "12.25"},
		{name: "boolean", value: true, valueType: models.ValueTypeBoolean, expected: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := encode(tt.value, tt.valueType)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, encoded)
		})
	}

	_, err := encode("full", models.ValueTypeNumeric)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	assert.Equal(t, 42.5, decode("42.5"))
	assert.Equal(t, true, decode("true"))
	assert.Equal(t, "open", decode("open"))
}
