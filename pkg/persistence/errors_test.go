package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/sfcflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestGraphError(t *testing.T) {
	t.Parallel()

	t.Run("wraps sentinel", func(t *testing.T) {
		err := persistence.NewGraphError("GraphByID", "mixing", persistence.ErrGraphNotFound)

		assert.True(t, persistence.IsGraphNotFound(err))
		assert.True(t, errors.Is(err, persistence.ErrGraphNotFound))
		assert.True(t, persistence.IsGraphNotFound(fmt.Errorf("lookup: %w", err)))
		assert.False(t, persistence.IsGraphNotFound(persistence.NewGraphError("SaveGraph", "mixing", persistence.ErrGraphIDRequired)))
	})

	t.Run("message contains context", func(t *testing.T) {
		err := persistence.NewGraphError("DeleteGraph", "mixing", persistence.ErrGraphNotFound)

		assert.Contains(t, err.Error(), "DeleteGraph")
		assert.Contains(t, err.Error(), "mixing")
		assert.Contains(t, err.Error(), "graph not found")
	})
}
