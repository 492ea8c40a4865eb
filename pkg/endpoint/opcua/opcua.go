// Package opcua provides an OPC UA endpoint backed by gopcua.
package opcua

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/sfcflow/pkg/endpoint"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"github.com/spf13/cast"
)

const defaultRequestTimeout = 5 * time.Second

// Endpoint writes values to OPC UA nodes. Numeric values are converted to the
// data type the node currently holds, which is looked up once per address.
type Endpoint struct {
	url    string
	prefix string
	logger *slog.Logger

	client *opcua.Client

	mu    sync.RWMutex
	types map[string]ua.TypeID
}

// New creates an endpoint for the server at url (opc.tcp://host:port).
func New(url, prefix string, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		url:    url,
		prefix: prefix,
		logger: logger.With("module", "opcua_endpoint", "url", url),
		types:  make(map[string]ua.TypeID),
	}
}

// Connect opens an unsecured session with the server.
func (e *Endpoint) Connect(ctx context.Context) error {
	client, err := opcua.NewClient(e.url,
		opcua.SecurityMode(ua.MessageSecurityModeNone),
		opcua.AutoReconnect(true),
		opcua.RequestTimeout(defaultRequestTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OPC UA client: %w", err)
	}

	err = client.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to OPC UA server: %w", err)
	}

	e.client = client
	e.logger.InfoContext(ctx, "Connected to OPC UA server")

	return nil
}

// Close ends the session.
func (e *Endpoint) Close(ctx context.Context) error {
	if e.client == nil {
		return nil
	}

	return e.client.Close(ctx)
}

// Write converts value to the node's data type and writes it.
func (e *Endpoint) Write(ctx context.Context, address string, value any, valueType models.ValueType) error {
	resolved := endpoint.ResolveAddress(e.prefix, address)

	if e.client == nil {
		return endpoint.NewError("write", resolved, endpoint.ErrNotConnected)
	}

	nodeID, err := ua.ParseNodeID(resolved)
	if err != nil {
		return endpoint.NewError("write", resolved, fmt.Errorf("invalid node id: %w", err))
	}

	typeID, err := e.typeOf(ctx, resolved, nodeID)
	if err != nil {
		return endpoint.NewError("write", resolved, err)
	}

	converted, err := Coerce(typeID, value, valueType)
	if err != nil {
		return endpoint.NewError("write", resolved, err)
	}

	variant, err := ua.NewVariant(converted)
	if err != nil {
		return endpoint.NewError("write", resolved, err)
	}

	response, err := e.client.Write(ctx, &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{{
			NodeID:      nodeID,
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask: ua.DataValueValue,
				Value:        variant,
			},
		}},
	})
	if err != nil {
		return endpoint.NewError("write", resolved, err)
	}

	if len(response.Results) > 0 && response.Results[0] != ua.StatusOK {
		return endpoint.NewError("write", resolved, response.Results[0])
	}

	e.logger.DebugContext(ctx, "Value written", "address", resolved, "value", converted)

	return nil
}

// Read returns the current value of a node.
func (e *Endpoint) Read(ctx context.Context, address string) (any, error) {
	resolved := endpoint.ResolveAddress(e.prefix, address)

	if e.client == nil {
		return nil, endpoint.NewError("read", resolved, endpoint.ErrNotConnected)
	}

	nodeID, err := ua.ParseNodeID(resolved)
	if err != nil {
		return nil, endpoint.NewError("read", resolved, fmt.Errorf("invalid node id: %w", err))
	}

	variant, err := e.readValue(ctx, nodeID)
	if err != nil {
		return nil, endpoint.NewError("read", resolved, err)
	}

	return variant.Value(), nil
}

func (e *Endpoint) readValue(ctx context.Context, nodeID *ua.NodeID) (*ua.Variant, error) {
	response, err := e.client.Read(ctx, &ua.ReadRequest{
		MaxAge:             2000,
		NodesToRead:        []*ua.ReadValueID{{NodeID: nodeID, AttributeID: ua.AttributeIDValue}},
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	})
	if err != nil {
		return nil, err
	}

	if len(response.Results) == 0 {
		return nil, endpoint.ErrAddressNotFound
	}

	result := response.Results[0]
	if result.Status != ua.StatusOK {
		if errors.Is(result.Status, ua.StatusBadNodeIDUnknown) {
			return nil, endpoint.ErrAddressNotFound
		}

		return nil, result.Status
	}

	if result.Value == nil {
		return nil, endpoint.ErrAddressNotFound
	}

	return result.Value, nil
}

func (e *Endpoint) typeOf(ctx context.Context, address string, nodeID *ua.NodeID) (ua.TypeID, error) {
	e.mu.RLock()
	typeID, ok := e.types[address]
	e.mu.RUnlock()

	if ok {
		return typeID, nil
	}

	variant, err := e.readValue(ctx, nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to read current value: %w", err)
	}

	typeID = variant.Type()

	e.mu.Lock()
	e.types[address] = typeID
	e.mu.Unlock()

	return typeID, nil
}

// Coerce converts value to the Go type gopcua uses for typeID.
func Coerce(typeID ua.TypeID, value any, valueType models.ValueType) (any, error) {
	if valueType == models.ValueTypeBoolean && typeID != ua.TypeIDBoolean {
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, err
		}

		if b {
			value = 1
		} else {
			value = 0
		}
	}

	switch typeID {
	case ua.TypeIDBoolean:
		return cast.ToBoolE(value)
	case ua.TypeIDSByte:
		return cast.ToInt8E(value)
	case ua.TypeIDByte:
		return cast.ToUint8E(value)
	case ua.TypeIDInt16:
		return cast.ToInt16E(value)
	case ua.TypeIDUint16:
		return cast.ToUint16E(value)
	case ua.TypeIDInt32:
		return cast.ToInt32E(value)
	case ua.TypeIDUint32:
		return cast.ToUint32E(value)
	case ua.TypeIDInt64:
		return cast.ToInt64E(value)
	case ua.TypeIDUint64:
		return cast.ToUint64E(value)
	case ua.TypeIDFloat:
		return cast.ToFloat32E(value)
	case ua.TypeIDDouble:
		return cast.ToFloat64E(value)
	case ua.TypeIDString:
		return cast.ToStringE(value)
	default:
		return nil, fmt.Errorf("unsupported node data type %s", typeID)
	}
}
