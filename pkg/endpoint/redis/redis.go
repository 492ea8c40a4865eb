// Package redis provides an endpoint that keeps values as Redis keys, for
// tag stores and soft PLCs that expose their address space through Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/sfcflow/pkg/endpoint"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

const connectTimeout = 5 * time.Second

// Endpoint reads and writes values stored under Redis keys.
type Endpoint struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	prefix  string
	channel string
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithPrefix resolves relative addresses against prefix.
func WithPrefix(prefix string) Option {
	return func(e *Endpoint) {
		e.prefix = prefix
	}
}

// WithChannel publishes every write as a JSON message on channel.
func WithChannel(channel string) Option {
	return func(e *Endpoint) {
		e.channel = channel
	}
}

// New wraps an existing client.
func New(client redis.UniversalClient, logger *slog.Logger, opts ...Option) *Endpoint {
	e := &Endpoint{
		client: client,
		logger: logger.With("module", "redis_endpoint"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Connect parses a redis:// URL, opens a client and verifies it answers.
func Connect(ctx context.Context, url string, logger *slog.Logger, opts ...Option) (*Endpoint, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return New(client, logger, opts...), nil
}

type writeNotification struct {
	Address string `json:"address"`
	Value   any    `json:"value"`
}

// Write stores the value under the resolved address.
func (e *Endpoint) Write(ctx context.Context, address string, value any, valueType models.ValueType) error {
	key := endpoint.ResolveAddress(e.prefix, address)

	encoded, err := encode(value, valueType)
	if err != nil {
		return endpoint.NewError("write", key, err)
	}

	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, encoded, 0)

		if e.channel != "" {
			payload, err := json.Marshal(writeNotification{Address: key, Value: value})
			if err != nil {
				return err
			}

			pipe.Publish(ctx, e.channel, payload)
		}

		return nil
	})
	if err != nil {
		return endpoint.NewError("write", key, err)
	}

	e.logger.DebugContext(ctx, "Value written", "address", key, "value", encoded)

	return nil
}

// Read returns the value stored under the resolved address as a float64 or
// bool when it parses as one, otherwise as the raw string.
func (e *Endpoint) Read(ctx context.Context, address string) (any, error) {
	key := endpoint.ResolveAddress(e.prefix, address)

	raw, err := e.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, endpoint.NewError("read", key, endpoint.ErrAddressNotFound)
		}

		return nil, endpoint.NewError("read", key, err)
	}

	return decode(raw), nil
}

// Close releases the client.
func (e *Endpoint) Close() error {
	return e.client.Close()
}

func encode(value any, valueType models.ValueType) (string, error) {
	switch valueType {
	case models.ValueTypeBoolean:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return "", err
		}

		return strconv.FormatBool(b), nil
	default:
		number, err := cast.ToFloat64E(value)
		if err != nil {
			return "", err
		}

		return strconv.FormatFloat(number, 'f', -1, 64), nil
	}
}

func decode(raw string) any {
	if number, err := strconv.ParseFloat(raw, 64); err == nil {
		return number
	}

	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}

	return raw
}
