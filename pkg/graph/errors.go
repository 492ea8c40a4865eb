package graph

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph matches every ValidationError through errors.Is.
var ErrInvalidGraph = errors.New("invalid graph")

// ErrorKind classifies why a graph was rejected.
type ErrorKind string

const (
	ErrorKindInvalidDocument  ErrorKind = "invalid_document"
	ErrorKindDuplicateStep    ErrorKind = "duplicate_step"
	ErrorKindMalformedConfig  ErrorKind = "malformed_config"
	ErrorKindNoStart          ErrorKind = "no_start"
	ErrorKindMultipleStart    ErrorKind = "multiple_start"
	ErrorKindNoEnd            ErrorKind = "no_end"
	ErrorKindDanglingEdge     ErrorKind = "dangling_edge"
	ErrorKindCycle            ErrorKind = "cycle"
	ErrorKindDisconnectedStep ErrorKind = "disconnected_step"
)

// ValidationError reports the first problem found in a graph definition.
type ValidationError struct {
	Kind    ErrorKind
	StepID  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s: step '%s': %s", e.Kind, e.StepID, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidGraph
}

func newValidationError(kind ErrorKind, stepID, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, StepID: stepID, Message: fmt.Sprintf(format, args...)}
}

// NewDocumentError reports a definition document that could not be read.
func NewDocumentError(format string, args ...any) *ValidationError {
	return newValidationError(ErrorKindInvalidDocument, "", format, args...)
}

// IsValidationError checks if an error was produced by graph validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidGraph)
}

// KindOf returns the kind of a validation error.
func KindOf(err error) (ErrorKind, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Kind, true
	}

	return "", false
}
