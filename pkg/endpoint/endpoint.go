// Package endpoint defines how the engine reads and writes values on a controlled endpoint.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/sfcflow/pkg/models"
)

var (
	// ErrReadUnsupported indicates the adapter cannot read values.
	ErrReadUnsupported = errors.New("endpoint does not support reads")

	// ErrAddressNotFound indicates the address does not exist on the endpoint.
	ErrAddressNotFound = errors.New("address not found")

	// ErrNotConnected indicates the adapter has no live connection.
	ErrNotConnected = errors.New("endpoint not connected")
)

// Writer writes a value to an address. Implementations must be safe for
// concurrent use and should return promptly once ctx is cancelled.
type Writer interface {
	Write(ctx context.Context, address string, value any, valueType models.ValueType) error
}

// Reader reads the current value at an address.
type Reader interface {
	Read(ctx context.Context, address string) (any, error)
}

// Adapter is an endpoint that supports both writes and reads.
type Adapter interface {
	Writer
	Reader
}

// Error wraps adapter failures with the operation and address involved.
type Error struct {
	Op      string
	Address string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Address, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error comparison for endpoint errors.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates an endpoint error for the given operation.
func NewError(op, address string, err error) *Error {
	return &Error{Op: op, Address: address, Err: err}
}

// ResolveAddress prefixes a relative address. Addresses that already carry a
// namespace ("ns=...") are returned unchanged.
func ResolveAddress(prefix, address string) string {
	if prefix == "" || strings.HasPrefix(address, "ns=") {
		return address
	}

	return prefix + "." + address
}

// Read reads address through w when it supports reads.
func Read(ctx context.Context, w Writer, address string) (any, error) {
	reader, ok := w.(Reader)
	if !ok {
		return nil, NewError("read", address, ErrReadUnsupported)
	}

	return reader.Read(ctx, address)
}
