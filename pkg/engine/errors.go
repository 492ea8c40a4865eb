package engine

import (
	"context"
	"errors"
)

var (
	// ErrRunInProgress indicates the graph already has an active run.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrNoExecutor indicates no executor is registered for a step kind.
	ErrNoExecutor = errors.New("no executor for step kind")
)

// IsRunInProgress checks if an error was caused by starting a graph that is already running.
func IsRunInProgress(err error) bool {
	return errors.Is(err, ErrRunInProgress)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
