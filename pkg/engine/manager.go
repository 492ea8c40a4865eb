package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/sfcflow/pkg/endpoint"
	"github.com/dukex/sfcflow/pkg/models"
)

// GraphSource looks up graph definitions by id.
type GraphSource interface {
	GraphByID(ctx context.Context, id string) (*models.GraphDefinition, error)
}

// Manager keeps one coordinator per graph, all sharing a single endpoint
// and publisher.
type Manager struct {
	graphs    GraphSource
	writer    endpoint.Writer
	publisher *Publisher
	opts      []Option
	logger    *slog.Logger

	mu           sync.Mutex
	coordinators map[string]*Coordinator
}

// NewManager creates a manager. Options are applied to every coordinator it creates.
func NewManager(graphs GraphSource, writer endpoint.Writer, logger *slog.Logger, opts ...Option) *Manager {
	o := newOptions(opts)

	return &Manager{
		graphs:       graphs,
		writer:       writer,
		publisher:    o.publisher,
		opts:         append(slices.Clone(opts), WithPublisher(o.publisher), WithLogger(logger)),
		logger:       logger.With("module", "engine_manager"),
		coordinators: make(map[string]*Coordinator),
	}
}

func (m *Manager) coordinator(graphID string) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coordinators[graphID]
	if !ok {
		c = NewCoordinator(graphID, m.writer, m.opts...)
		m.coordinators[graphID] = c
	}

	return c
}

func (m *Manager) existing(graphID string) (*Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coordinators[graphID]

	return c, ok
}

// Start loads the graph and starts a run of it.
func (m *Manager) Start(ctx context.Context, graphID string) (models.Snapshot, error) {
	definition, err := m.graphs.GraphByID(ctx, graphID)
	if err != nil {
		return models.Snapshot{}, err
	}

	return m.coordinator(graphID).Start(ctx, definition)
}

// Stop stops the active run of a graph.
func (m *Manager) Stop(ctx context.Context, graphID string) (models.Snapshot, error) {
	c, ok := m.existing(graphID)
	if !ok {
		return m.publisher.Latest(graphID), nil
	}

	return c.Stop(ctx)
}

// Reset stops the active run of a graph and discards its state.
func (m *Manager) Reset(ctx context.Context, graphID string) (models.Snapshot, error) {
	c, ok := m.existing(graphID)
	if !ok {
		return m.publisher.Reset(graphID), nil
	}

	return c.Reset(ctx)
}

// Status returns the latest snapshot of a graph.
func (m *Manager) Status(graphID string) models.Snapshot {
	return m.publisher.Latest(graphID)
}

// Wait blocks until the current run of a graph ends.
func (m *Manager) Wait(ctx context.Context, graphID string) (models.Snapshot, error) {
	c, ok := m.existing(graphID)
	if !ok {
		return m.publisher.Latest(graphID), nil
	}

	return c.Wait(ctx)
}

// Subscribe returns updates for graphID, or for every graph when graphID is empty.
func (m *Manager) Subscribe(graphID string, buffer int) (<-chan Update, func()) {
	return m.publisher.Subscribe(graphID, buffer)
}

// StopAll stops every active run.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	coordinators := make([]*Coordinator, 0, len(m.coordinators))
	for _, c := range m.coordinators {
		coordinators = append(coordinators, c)
	}
	m.mu.Unlock()

	var errs []error

	for _, c := range coordinators {
		if _, err := c.Stop(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to stop run", "graph_id", c.GraphID(), "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
