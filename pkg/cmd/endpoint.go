package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/sfcflow/pkg/endpoint"
	"github.com/dukex/sfcflow/pkg/endpoint/memory"
	"github.com/dukex/sfcflow/pkg/endpoint/opcua"
	"github.com/dukex/sfcflow/pkg/endpoint/redis"
)

// Endpoint is a connected endpoint together with the func that releases it.
type Endpoint struct {
	Writer endpoint.Writer
	Close  func(ctx context.Context) error
}

// NewEndpoint connects to the endpoint named by url:
// opc.tcp:// for OPC UA, redis:// or rediss:// for Redis, memory:// (or empty)
// for an in-process simulation.
func NewEndpoint(ctx context.Context, logger *slog.Logger, url, prefix string) (*Endpoint, error) {
	scheme, _, _ := strings.Cut(url, "://")

	switch scheme {
	case "opc.tcp":
		adapter := opcua.New(url, prefix, logger)
		if err := adapter.Connect(ctx); err != nil {
			return nil, err
		}

		return &Endpoint{Writer: adapter, Close: adapter.Close}, nil
	case "redis", "rediss":
		adapter, err := redis.Connect(ctx, url, logger, redis.WithPrefix(prefix))
		if err != nil {
			return nil, err
		}

		return &Endpoint{
			Writer: adapter,
			Close:  func(context.Context) error { return adapter.Close() },
		}, nil
	case "", "memory":
		adapter := memory.New(memory.WithPrefix(prefix), memory.WithLogger(logger))

		return &Endpoint{
			Writer: adapter,
			Close:  func(context.Context) error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme: %s", scheme)
	}
}
