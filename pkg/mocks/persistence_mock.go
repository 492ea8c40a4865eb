// Package mocks provides testify mocks for the repository and event bus interfaces.
package mocks

import (
	"context"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/dukex/sfcflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

var _ persistence.Persistence = (*MockPersistence)(nil)

func (m *MockPersistence) Graphs(ctx context.Context) ([]*models.GraphDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.GraphDefinition), args.Error(1)
}

func (m *MockPersistence) SaveGraph(ctx context.Context, graph *models.GraphDefinition) error {
	args := m.Called(ctx, graph)

	return args.Error(0)
}

func (m *MockPersistence) GraphByID(ctx context.Context, id string) (*models.GraphDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.GraphDefinition), args.Error(1)
}

func (m *MockPersistence) DeleteGraph(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
