package web

import (
	"context"
	"errors"

	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/persistence"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// handleError maps domain errors to problem responses.
func handleError(c fiber.Ctx, err error) error {
	switch {
	case graph.IsValidationError(err):
		return badRequest(c, err.Error())

	case persistence.IsGraphNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("graph_not_found").
			WithDetail("graph not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case engine.IsRunInProgress(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("run_in_progress").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, context.DeadlineExceeded):
		problem := problems.NewStatusProblem(504).
			WithInstance(c.Path()).
			WithType("stop_timeout").
			WithDetail(err.Error())

		return c.Status(fiber.StatusGatewayTimeout).JSON(problem)

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
