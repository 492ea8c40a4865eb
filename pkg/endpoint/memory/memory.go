// Package memory provides an in-process endpoint used for simulation, local runs and tests.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukex/sfcflow/pkg/endpoint"
	"github.com/dukex/sfcflow/pkg/models"
)

// Write is a recorded write.
type Write struct {
	Address   string
	Value     any
	ValueType models.ValueType
}

// Endpoint keeps values in memory and records every write in order.
type Endpoint struct {
	mu       sync.Mutex
	logger   *slog.Logger
	prefix   string
	values   map[string]any
	seeds    map[string]any
	writes   []Write
	failures map[string]error
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithPrefix resolves relative addresses against prefix.
func WithPrefix(prefix string) Option {
	return func(e *Endpoint) {
		e.prefix = prefix
	}
}

// WithValue seeds the value at address.
func WithValue(address string, value any) Option {
	return func(e *Endpoint) {
		e.seeds[address] = value
	}
}

// WithWriteError makes every write to address fail with err.
func WithWriteError(address string, err error) Option {
	return func(e *Endpoint) {
		e.failures[address] = err
	}
}

// WithLogger sets the logger used for write tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Endpoint) {
		e.logger = logger
	}
}

// New creates an in-memory endpoint.
func New(opts ...Option) *Endpoint {
	e := &Endpoint{
		logger:   slog.Default(),
		values:   make(map[string]any),
		seeds:    make(map[string]any),
		failures: make(map[string]error),
	}

	for _, opt := range opts {
		opt(e)
	}

	for address, value := range e.seeds {
		e.values[endpoint.ResolveAddress(e.prefix, address)] = value
	}

	return e
}

// Write stores value at address.
func (e *Endpoint) Write(ctx context.Context, address string, value any, valueType models.ValueType) error {
	resolved := endpoint.ResolveAddress(e.prefix, address)

	if err := ctx.Err(); err != nil {
		return endpoint.NewError("write", resolved, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err, ok := e.failures[address]; ok {
		return endpoint.NewError("write", resolved, err)
	}

	e.values[resolved] = value
	e.writes = append(e.writes, Write{Address: resolved, Value: value, ValueType: valueType})

	e.logger.DebugContext(ctx, "Value written", "address", resolved, "value", value)

	return nil
}

// Read returns the value stored at address.
func (e *Endpoint) Read(ctx context.Context, address string) (any, error) {
	resolved := endpoint.ResolveAddress(e.prefix, address)

	if err := ctx.Err(); err != nil {
		return nil, endpoint.NewError("read", resolved, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	value, ok := e.values[resolved]
	if !ok {
		return nil, endpoint.NewError("read", resolved, endpoint.ErrAddressNotFound)
	}

	return value, nil
}

// Set replaces the value at address without recording a write.
func (e *Endpoint) Set(address string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.values[endpoint.ResolveAddress(e.prefix, address)] = value
}

// Writes returns every recorded write in order.
func (e *Endpoint) Writes() []Write {
	e.mu.Lock()
	defer e.mu.Unlock()

	writes := make([]Write, len(e.writes))
	copy(writes, e.writes)

	return writes
}

// ValuesWritten returns the values written to address in order.
func (e *Endpoint) ValuesWritten(address string) []any {
	resolved := endpoint.ResolveAddress(e.prefix, address)

	e.mu.Lock()
	defer e.mu.Unlock()

	values := make([]any, 0)

	for _, write := range e.writes {
		if write.Address == resolved {
			values = append(values, write.Value)
		}
	}

	return values
}
