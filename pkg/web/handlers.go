// Package web provides the HTTP API for managing and running step graphs.
package web

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/sfcflow/pkg/engine"
	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Runner controls graph runs.
type Runner interface {
	Start(ctx context.Context, graphID string) (models.Snapshot, error)
	Stop(ctx context.Context, graphID string) (models.Snapshot, error)
	Reset(ctx context.Context, graphID string) (models.Snapshot, error)
	Status(graphID string) models.Snapshot
	Subscribe(graphID string, buffer int) (<-chan engine.Update, func())
}

const (
	defaultStopTimeout = 10 * time.Second
	streamBuffer       = 256
	streamHeartbeat    = 15 * time.Second
)

type APIHandlers struct {
	graphs      persistence.Persistence
	runner      Runner
	validator   *validator.Validate
	logger      *slog.Logger
	stopTimeout time.Duration
}

// Option configures APIHandlers.
type Option func(*APIHandlers)

// WithStopTimeout bounds how long stop, reset and delete wait for a run to end.
func WithStopTimeout(timeout time.Duration) Option {
	return func(h *APIHandlers) {
		h.stopTimeout = timeout
	}
}

func NewAPIHandlers(
	graphs persistence.Persistence,
	runner Runner,
	validator *validator.Validate,
	logger *slog.Logger,
	opts ...Option,
) *APIHandlers {
	h := &APIHandlers{
		graphs:      graphs,
		runner:      runner,
		validator:   validator,
		logger:      logger.With("module", "api"),
		stopTimeout: defaultStopTimeout,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *APIHandlers) GetGraphs(c fiber.Ctx) error {
	graphs, err := h.graphs.Graphs(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(GraphListResponse{Graphs: graphs, TotalCount: len(graphs)})
}

func (h *APIHandlers) GetGraph(c fiber.Ctx) error {
	definition, err := h.graphs.GraphByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(definition)
}

// SaveGraph creates or replaces a graph. The graph is validated before it is stored.
func (h *APIHandlers) SaveGraph(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Graph ID is required")
	}

	var req SaveGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	definition := &models.GraphDefinition{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
		Edges:       req.Edges,
	}

	if existing, err := h.graphs.GraphByID(c.Context(), id); err == nil {
		definition.CreatedAt = existing.CreatedAt
	}

	if err := graph.Validate(definition); err != nil {
		return handleError(c, err)
	}

	if err := h.graphs.SaveGraph(c.Context(), definition); err != nil {
		return handleError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Graph saved", "graph_id", id, "steps", len(definition.Steps))

	return c.JSON(definition)
}

func (h *APIHandlers) DeleteGraph(c fiber.Ctx) error {
	id := c.Params("id")

	ctx, cancel := context.WithTimeout(c.Context(), h.stopTimeout)
	defer cancel()

	if _, err := h.runner.Stop(ctx, id); err != nil {
		return handleError(c, err)
	}

	if err := h.graphs.DeleteGraph(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	snapshot, err := h.runner.Start(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(snapshot)
}

func (h *APIHandlers) StopRun(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.stopTimeout)
	defer cancel()

	snapshot, err := h.runner.Stop(ctx, c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *APIHandlers) ResetRun(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.stopTimeout)
	defer cancel()

	snapshot, err := h.runner.Reset(ctx, c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *APIHandlers) GetStatus(c fiber.Ctx) error {
	return c.JSON(h.runner.Status(c.Params("id")))
}

// StreamEvents streams status updates of a graph as server-sent events. The
// first event is the current snapshot; the stream ends once the run is over.
func (h *APIHandlers) StreamEvents(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.graphs.GraphByID(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	updates, unsubscribe := h.runner.Subscribe(id, streamBuffer)
	current := h.runner.Status(id)
	encode := c.App().Config().JSONEncoder
	logger := h.logger.With("graph_id", id)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		if err := writeEvent(w, encode, "snapshot", current); err != nil || current.Status.IsTerminal() {
			return
		}

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}

				if err := writeEvent(w, encode, string(update.Change.Kind), update.Snapshot); err != nil {
					logger.Debug("Event stream closed", "error", err)

					return
				}

				if update.Snapshot.Status.IsTerminal() {
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}

				if err := w.Flush(); err != nil {
					logger.Debug("Event stream closed", "error", err)

					return
				}
			}
		}
	})
}

func writeEvent(w *bufio.Writer, encode func(any) ([]byte, error), name string, snapshot models.Snapshot) error {
	data, err := encode(snapshot)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}

	return w.Flush()
}

// GetSchema returns the JSON schema of graph definition documents.
func (h *APIHandlers) GetSchema(c fiber.Ctx) error {
	return c.JSON(graph.Schema())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "sfcflow API is healthy"
	httpStatus := http.StatusOK
	repositoryCheck := "ok"

	if err := h.graphs.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "sfcflow API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// RegisterRoutes mounts every handler on app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/schema", h.GetSchema)

	g := app.Group("/graphs")
	g.Get("/", h.GetGraphs)
	g.Get("/:id", h.GetGraph)
	g.Put("/:id", h.SaveGraph)
	g.Delete("/:id", h.DeleteGraph)
	g.Post("/:id/start", h.StartRun)
	g.Post("/:id/stop", h.StopRun)
	g.Post("/:id/reset", h.ResetRun)
	g.Get("/:id/status", h.GetStatus)
	g.Get("/:id/events", h.StreamEvents)
}
